package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// modelDimensions maps known models to their embedding dimensions.
var modelDimensions = map[string]int{
	"nomic-embed-text":  768,
	"mxbai-embed-large": 1024,
	"bge-m3":            1024,
	"all-minilm":        384,
}

// OllamaEngine generates embeddings through an Ollama-compatible HTTP API.
type OllamaEngine struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

// OllamaOptions configures the engine.
type OllamaOptions struct {
	BaseURL string        // default http://localhost:11434
	Model   string        // default nomic-embed-text
	Timeout time.Duration // default 30s
}

// NewOllamaEngine creates an HTTP embedding engine.
func NewOllamaEngine(opts OllamaOptions) *OllamaEngine {
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:11434"
	}
	if opts.Model == "" {
		opts.Model = "nomic-embed-text"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	dims := 768
	if d, ok := modelDimensions[opts.Model]; ok {
		dims = d
	}
	return &OllamaEngine{
		baseURL:    opts.BaseURL,
		model:      opts.Model,
		dimensions: dims,
		client:     &http.Client{Timeout: opts.Timeout},
	}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

func (e *OllamaEngine) embedOne(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding server error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	vec := make([]float32, len(decoded.Embedding))
	for i, v := range decoded.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// EmbedBatch embeds each text in order. The API has no native batch call.
func (e *OllamaEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.embedOne(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d of %d: %w", i+1, len(texts), err)
		}
		out[i] = vec
	}
	return out, nil
}

func (e *OllamaEngine) Dimensions() int { return e.dimensions }
func (e *OllamaEngine) Model() string   { return e.model }
