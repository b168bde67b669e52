package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	tellm "github.com/santiagomed/tellm/sdk"

	"github.com/omarkhan/dreamforge/logger"
)

// EnhancerConfig carries the settings for the Ollama-backed enhancer.
type EnhancerConfig struct {
	Endpoint string
	Model    string
	Timeout  time.Duration
	TellmURL string
	BatchID  string
}

// OllamaEnhancer enhances prompts through an Ollama text-generation endpoint.
// Any remote failure degrades to a local algorithmic enhancement; Enhance
// always returns text.
type OllamaEnhancer struct {
	endpoint    string
	model       string
	httpClient  *http.Client
	tellmClient *tellm.Client
	batchID     string
	fallback    *fallbackEnhancer
	logger      logger.Logger
}

// NewOllamaEnhancer creates a new enhancer. The random source drives
// fallback option selection and is injected for testability.
func NewOllamaEnhancer(cfg *EnhancerConfig, rng *rand.Rand, l logger.Logger) *OllamaEnhancer {
	if l == nil {
		l = logger.NewNullLogger()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	var tellmClient *tellm.Client
	if cfg.TellmURL != "" {
		tellmClient = tellm.NewClient(cfg.TellmURL)
	}
	return &OllamaEnhancer{
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		httpClient:  &http.Client{Timeout: timeout},
		tellmClient: tellmClient,
		batchID:     EnsureBatchID(cfg.BatchID),
		fallback:    newFallbackEnhancer(rng),
		logger:      l,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Enhance sends the user prompt to the text-generation backend and returns
// the enriched description. On any failure it falls back to the local
// enhancement and never returns an error.
func (e *OllamaEnhancer) Enhance(ctx context.Context, userPrompt string) string {
	enhanced, err := e.enhanceRemote(ctx, userPrompt)
	if err != nil {
		e.logger.WithField("error", err.Error()).Warn("Remote prompt enhancement failed, using local fallback")
		return e.fallback.Enhance(userPrompt)
	}
	return enhanced
}

func (e *OllamaEnhancer) enhanceRemote(ctx context.Context, userPrompt string) (string, error) {
	payload := generateRequest{
		Model:  e.model,
		Prompt: getEnhancementPrompt(userPrompt),
		Stream: false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode enhancement request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build enhancement request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("enhancement request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("enhancement endpoint returned status %d: %s", resp.StatusCode, string(text))
	}

	var data generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("failed to decode enhancement response: %w", err)
	}
	if data.Response == "" {
		return "", fmt.Errorf("enhancement response is empty")
	}

	if e.tellmClient != nil {
		if err := e.tellmClient.Log(e.batchID, payload.Prompt, data.Response); err != nil {
			e.logger.WithField("warning", err).Warn("failed to log to tellm")
		}
	}

	e.logger.WithField("prompt_tokens", data.PromptEvalCount).
		WithField("completion_tokens", data.EvalCount).
		Debug("Prompt enhanced by remote backend")
	return data.Response, nil
}
