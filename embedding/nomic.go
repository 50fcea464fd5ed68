package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/aixlab/aix/errors"
)

const (
	NomicEmbedderTextEndpoint = "https://api-atlas.nomic.ai/v1/embedding/text"
	NomicTextEmbedderModel    = "nomic-embed-text-v1.5"

	nomicEmbedSize = 768
)

type (
	// NomicEmbedder embeds text through the Nomic Atlas HTTP API.
	NomicEmbedder struct {
		client   *http.Client
		apiKey   string
		endpoint string
	}

	NomicOption func(*NomicEmbedder)
)

var _ Embedder = (*NomicEmbedder)(nil)

// WithEndpoint overrides the embedding endpoint, for proxies and tests.
func WithEndpoint(endpoint string) NomicOption {
	return func(e *NomicEmbedder) {
		e.endpoint = endpoint
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) NomicOption {
	return func(e *NomicEmbedder) {
		e.client = client
	}
}

func NewNomicEmbedder(apiKey string, opts ...NomicOption) *NomicEmbedder {
	e := &NomicEmbedder{
		client:   http.DefaultClient,
		apiKey:   apiKey,
		endpoint: NomicEmbedderTextEndpoint,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EmbedTexts implements Embedder.EmbedTexts
func (e *NomicEmbedder) EmbedTexts(ctx context.Context, taskType TaskType, texts ...string) ([][]float32, error) {
	var requestBody bytes.Buffer
	if err := json.NewEncoder(&requestBody).Encode(struct {
		TaskType string   `json:"task_type"`
		Model    string   `json:"model"`
		Texts    []string `json:"texts"`
	}{
		TaskType: taskType.String(),
		Model:    NomicTextEmbedderModel,
		Texts:    texts,
	}); err != nil {
		return nil, errors.Wrapf(err, "failed to encode request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, &requestBody)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("failed to embed text: HTTP %d", resp.StatusCode)
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, errors.Wrapf(err, "failed to decode response")
	}

	return response.Embeddings, nil
}

// Dimension implements Embedder.Dimension
func (e *NomicEmbedder) Dimension() int {
	return nomicEmbedSize
}
