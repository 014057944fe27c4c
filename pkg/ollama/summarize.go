package ollama

import (
	"context"
	"fmt"
	"strings"
)

// SummarizeClient implements theme.Summarizer on top of the generate API.
type SummarizeClient struct {
	gen       *GenerateClient
	minLength int
	maxLength int
}

// NewSummarizeClient creates a summarizer with a target summary length in
// words.
func NewSummarizeClient(client *Client, model string, minLength, maxLength int) *SummarizeClient {
	if minLength <= 0 {
		minLength = 30
	}
	if maxLength <= minLength {
		maxLength = minLength + 100
	}
	return &SummarizeClient{
		gen:       NewGenerateClient(client, model),
		minLength: minLength,
		maxLength: maxLength,
	}
}

// Summarize returns a concise summary of text.
func (c *SummarizeClient) Summarize(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(
		"Summarize the following text in %d to %d words. Reply with the summary only.\n\n%s",
		c.minLength, c.maxLength, text,
	)
	out, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
