package ollama

import (
	"context"
	"fmt"
)

// EmbedClient implements semantic.Embedder using Ollama's embeddings API.
type EmbedClient struct {
	client *Client
	model  string
}

// NewEmbedClient creates an Ollama embedding client.
func NewEmbedClient(client *Client, model string) *EmbedClient {
	return &EmbedClient{client: client, model: model}
}

type embedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns the embedding vector for a single text.
func (c *EmbedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var result embedResp
	if err := c.client.post(ctx, "/api/embeddings", embedReq{Model: c.model, Prompt: text}, &result); err != nil {
		return nil, err
	}
	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

// EmbedBatch embeds each text in order. Ollama has no batch endpoint, so
// this is sequential; a failure aborts with the failing index.
func (c *EmbedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d]: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}
