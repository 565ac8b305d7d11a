package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// OllamaConfig configures the Ollama HTTP model.
type OllamaConfig struct {
	BaseURL   string
	Model     string
	Dimension int
	// Pull downloads the model during construction when Ollama does not have it.
	Pull bool
}

// OllamaModel embeds text through a local Ollama server.
type OllamaModel struct {
	client *resty.Client
	model  string
	dim    int
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

type ollamaErrorResponse struct {
	Error string `json:"error"`
}

// NewOllamaModel checks that the model exists, pulling it when allowed.
func NewOllamaModel(ctx context.Context, cfg OllamaConfig) (*OllamaModel, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}

	m := &OllamaModel{
		client: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetHeader("Content-Type", "application/json").
			SetTimeout(5 * time.Minute),
		model: cfg.Model,
		dim:   cfg.Dimension,
	}

	var apiErr ollamaErrorResponse
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"name": cfg.Model}).
		SetError(&apiErr).
		Post("/api/show")
	if err != nil {
		return nil, fmt.Errorf("ollama show: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusOK:
		return m, nil
	case resp.StatusCode() == http.StatusNotFound && cfg.Pull:
		if err := m.pull(ctx); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("ollama show %q: status %d: %s", cfg.Model, resp.StatusCode(), apiErr.Error)
	}
}

func (m *OllamaModel) pull(ctx context.Context) error {
	var apiErr ollamaErrorResponse
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"name": m.model, "stream": false}).
		SetError(&apiErr).
		Post("/api/pull")
	if err != nil {
		return fmt.Errorf("ollama pull: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("ollama pull %q: status %d: %s", m.model, resp.StatusCode(), apiErr.Error)
	}
	return nil
}

// EmbedQuery embeds text.
func (m *OllamaModel) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return m.embed(ctx, text)
}

// EmbedPassage embeds text.
func (m *OllamaModel) EmbedPassage(ctx context.Context, text string) ([]float32, error) {
	return m.embed(ctx, text)
}

func (m *OllamaModel) embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(&ollamaEmbedRequest{Model: m.model, Prompt: text}).
		Post("/api/embeddings")
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("ollama embeddings: status %d: %s", resp.StatusCode(), resp.String())
	}

	var out ollamaEmbedResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("ollama embeddings: decode response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("ollama embeddings: empty vector")
	}

	vec := make([]float32, len(out.Embedding))
	for i, v := range out.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Dimension returns the configured vector size.
func (m *OllamaModel) Dimension() int {
	return m.dim
}

// Close is a no-op; the HTTP client holds no per-model resources.
func (m *OllamaModel) Close() error {
	return nil
}
