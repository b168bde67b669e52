// Package stub invokes remote generation capabilities. Each capability is an
// opaque id mapped to a service endpoint; requests and responses are
// structured maps. The stub reports failures and applies no fallback logic
// of its own.
package stub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteServiceError is returned when a capability call errors, returns an
// empty response, or omits an expected field.
type RemoteServiceError struct {
	Capability string
	Reason     string
	Err        error
}

func (e *RemoteServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote service %s: %s: %v", e.Capability, e.Reason, e.Err)
	}
	return fmt.Sprintf("remote service %s: %s", e.Capability, e.Reason)
}

func (e *RemoteServiceError) Unwrap() error { return e.Err }

// ServiceInvoker is the contract for calling a named remote capability.
type ServiceInvoker interface {
	Call(ctx context.Context, capabilityID string, request map[string]any, callerID string) (map[string]any, error)
	Schema(ctx context.Context, capabilityID, direction string) (map[string]any, error)
}

// Stub is the HTTP-backed ServiceInvoker.
type Stub struct {
	baseURL    string
	httpClient *http.Client
}

func NewStub(baseURL string, timeout time.Duration) *Stub {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Stub{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Call executes the capability with the given request on behalf of callerID.
func (s *Stub) Call(ctx context.Context, capabilityID string, request map[string]any, callerID string) (map[string]any, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, &RemoteServiceError{Capability: capabilityID, Reason: "failed to encode request", Err: err}
	}

	url := fmt.Sprintf("%s/%s/execution", s.baseURL, capabilityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &RemoteServiceError{Capability: capabilityID, Reason: "failed to build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", callerID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &RemoteServiceError{Capability: capabilityID, Reason: "call failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &RemoteServiceError{
			Capability: capabilityID,
			Reason:     fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(text)),
		}
	}

	var response map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, &RemoteServiceError{Capability: capabilityID, Reason: "failed to decode response", Err: err}
	}
	if len(response) == 0 {
		return nil, &RemoteServiceError{Capability: capabilityID, Reason: "empty response"}
	}

	return response, nil
}

// Schema fetches the input or output schema descriptor for a capability.
func (s *Stub) Schema(ctx context.Context, capabilityID, direction string) (map[string]any, error) {
	if direction != "input" && direction != "output" {
		return nil, &RemoteServiceError{Capability: capabilityID, Reason: fmt.Sprintf("invalid schema direction %q", direction)}
	}

	url := fmt.Sprintf("%s/%s/schema?type=%s", s.baseURL, capabilityID, direction)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &RemoteServiceError{Capability: capabilityID, Reason: "failed to build schema request", Err: err}
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &RemoteServiceError{Capability: capabilityID, Reason: "schema call failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteServiceError{
			Capability: capabilityID,
			Reason:     fmt.Sprintf("schema endpoint returned status %d", resp.StatusCode),
		}
	}

	var schema map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&schema); err != nil {
		return nil, &RemoteServiceError{Capability: capabilityID, Reason: "failed to decode schema", Err: err}
	}

	return schema, nil
}
