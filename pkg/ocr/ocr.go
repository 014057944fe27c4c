// Package ocr provides an HTTP client for an OCR sidecar that accepts a
// page image and returns its recognized text.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/DocMesh/docmesh-mvp/pkg/fn"
)

// Client posts PNG page images to the sidecar's /recognize endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	retry   fn.RetryOpts
}

// New creates an OCR client for the sidecar at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   60 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		retry: fn.RetryOpts{MaxAttempts: 3, InitialWait: time.Second, MaxWait: 10 * time.Second, Jitter: true},
	}
}

type recognizeResp struct {
	Text string `json:"text"`
}

// Recognize returns the text found in a PNG image. Transient failures are
// retried with backoff.
func (c *Client) Recognize(ctx context.Context, image []byte) (string, error) {
	result := fn.Retry(ctx, c.retry, func(ctx context.Context) fn.Result[string] {
		return fn.FromPair(c.recognize(ctx, image))
	})
	return result.Unwrap()
}

func (c *Client) recognize(ctx context.Context, image []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/recognize", bytes.NewReader(image))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr recognize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr recognize: status %d", resp.StatusCode)
	}
	var result recognizeResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("ocr recognize decode: %w", err)
	}
	return result.Text, nil
}
