package embedprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/WessleyAI/knowcore/pkg/resilience"
)

// ErrEmptyText is returned when Embed/EmbedBatch is asked to embed an
// empty string, per spec §6 ("Must fail on empty text").
var ErrEmptyText = errors.New("embedprovider: cannot embed empty text")

// OllamaProvider implements Provider over Ollama's raw HTTP embeddings
// API. The teacher talks to Ollama this way rather than through a Go SDK
// (no ollama client library appears in any pack repo's go.mod), so this
// adapter keeps the same raw net/http approach. EmbedBatch issues one
// request per text with no native batch endpoint to fall back on, so a
// limiter throttles the sequential fan-out rather than hammering the
// local Ollama server.
type OllamaProvider struct {
	baseURL   string
	model     string
	dims      int
	maxLength int
	client    *http.Client
	limiter   *resilience.Limiter
}

// NewOllamaProvider creates an Ollama-backed embedding provider. dims and
// maxLength describe the configured model's known output size and input
// limit (Ollama does not report either over the embeddings endpoint).
func NewOllamaProvider(baseURL, model string, dims, maxLength int) *OllamaProvider {
	return &OllamaProvider{
		baseURL:   baseURL,
		model:     model,
		dims:      dims,
		maxLength: maxLength,
		client:    &http.Client{},
		limiter:   resilience.NewLimiter(resilience.LimiterOpts{Rate: 20, Burst: 5}),
	}
}

var _ Provider = (*OllamaProvider)(nil)

type ollamaEmbedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Embed embeds a single piece of text.
func (c *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	var out []float32
	err := c.limiter.CallWait(ctx, func(ctx context.Context) error {
		vec, err := c.doEmbed(ctx, text)
		if err != nil {
			return err
		}
		out = vec
		return nil
	})
	return out, err
}

func (c *OllamaProvider) doEmbed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedReq{Model: c.model, Prompt: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedprovider: ollama embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedprovider: ollama embed: status %d", resp.StatusCode)
	}

	var result ollamaEmbedResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embedprovider: ollama embed decode: %w", err)
	}

	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

// EmbedBatch embeds each text sequentially; Ollama's embeddings endpoint
// has no native batch form.
func (c *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedprovider: embed batch [%d]: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the configured embedding width.
func (c *OllamaProvider) Dimensions() int { return c.dims }

// Model returns the configured Ollama model name.
func (c *OllamaProvider) Model() string { return c.model }

// MaxLength returns the configured maximum input length in characters.
func (c *OllamaProvider) MaxLength() int { return c.maxLength }
