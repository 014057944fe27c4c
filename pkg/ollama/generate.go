package ollama

import "context"

// GenerateClient implements rag.Generator using Ollama's generate API.
type GenerateClient struct {
	client *Client
	model  string
}

// NewGenerateClient creates an Ollama text generation client.
func NewGenerateClient(client *Client, model string) *GenerateClient {
	return &GenerateClient{client: client, model: model}
}

type generateReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResp struct {
	Response string `json:"response"`
}

// Generate returns the model's completion for prompt.
func (c *GenerateClient) Generate(ctx context.Context, prompt string) (string, error) {
	var result generateResp
	if err := c.client.post(ctx, "/api/generate", generateReq{Model: c.model, Prompt: prompt, Stream: false}, &result); err != nil {
		return "", err
	}
	return result.Response, nil
}
