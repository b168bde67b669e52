package llm

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarkhan/dreamforge/logger"
)

func newTestEnhancer(endpoint string) *OllamaEnhancer {
	return NewOllamaEnhancer(&EnhancerConfig{
		Endpoint: endpoint,
		Model:    "llama2",
	}, rand.New(rand.NewSource(1)), logger.NewNullLogger())
}

func TestEnhance_RemoteSuccess(t *testing.T) {
	var gotBody generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(generateResponse{Response: "a vivid, detailed dragon scene"})
	}))
	defer server.Close()

	enhancer := newTestEnhancer(server.URL)
	result := enhancer.Enhance(context.Background(), "a dragon")

	assert.Equal(t, "a vivid, detailed dragon scene", result)
	assert.Equal(t, "llama2", gotBody.Model)
	assert.False(t, gotBody.Stream)
	// The user prompt is embedded verbatim in the instruction template.
	assert.Contains(t, gotBody.Prompt, "User Request: a dragon")
}

func TestEnhance_FallbackOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	enhancer := newTestEnhancer(server.URL)
	result := enhancer.Enhance(context.Background(), "a dragon")

	assert.NotEmpty(t, result)
	assert.True(t, strings.HasPrefix(result, "a dragon, "))
	assert.True(t, strings.HasSuffix(result, "masterfully crafted, 8k resolution"))
}

func TestEnhance_FallbackWhenUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	enhancer := newTestEnhancer(server.URL)
	result := enhancer.Enhance(context.Background(), "a dragon")

	assert.NotEmpty(t, result)
	assert.True(t, strings.HasPrefix(result, "a dragon, "))
}

func TestEnhance_FallbackOnEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Response: ""})
	}))
	defer server.Close()

	enhancer := newTestEnhancer(server.URL)
	result := enhancer.Enhance(context.Background(), "a dragon")

	assert.NotEmpty(t, result)
	assert.Contains(t, result, "8k resolution")
}

func TestEnhance_WithExchangeLogging(t *testing.T) {
	tellmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer tellmServer.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{
			Response:        "a vivid, detailed dragon scene",
			PromptEvalCount: 12,
			EvalCount:       48,
		})
	}))
	defer server.Close()

	enhancer := NewOllamaEnhancer(&EnhancerConfig{
		Endpoint: server.URL,
		Model:    "llama2",
		TellmURL: tellmServer.URL,
	}, rand.New(rand.NewSource(1)), logger.NewNullLogger())

	// Exchange logging is best-effort; the enhanced prompt comes through
	// regardless of what the log sink does.
	result := enhancer.Enhance(context.Background(), "a dragon")
	assert.Equal(t, "a vivid, detailed dragon scene", result)
}

func TestFallbackEnhancer_UsesConfiguredOptions(t *testing.T) {
	fallback := newFallbackEnhancer(rand.New(rand.NewSource(7)))
	result := fallback.Enhance("a castle")

	parts := strings.Split(result, ", ")
	require.Len(t, parts, 6)
	assert.Equal(t, "a castle", parts[0])
	assert.Contains(t, fallbackArtStyles, parts[1])
	assert.Contains(t, fallbackLighting, parts[2])
	assert.Contains(t, fallbackDetails, parts[3])
	assert.Equal(t, "masterfully crafted", parts[4])
	assert.Equal(t, "8k resolution", parts[5])
}

func TestEnsureBatchID(t *testing.T) {
	generated := EnsureBatchID("")
	assert.Len(t, generated, 24)

	assert.Equal(t, "0123456789abcdef01234567", EnsureBatchID("0123456789abcdef01234567"))

	// Malformed ids are replaced, never passed through.
	replaced := EnsureBatchID("not-a-hex-id")
	assert.Len(t, replaced, 24)
	assert.NotEqual(t, "not-a-hex-id", replaced)
}
