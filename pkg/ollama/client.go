// Package ollama provides HTTP clients for a local Ollama server, backing
// the embedding, generation, and summarization ports.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/DocMesh/docmesh-mvp/pkg/resilience"
)

// Client holds the shared transport for all Ollama calls. Requests pass
// through a token bucket and a circuit breaker so a stuck model server
// cannot pile up goroutines.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
}

// Opts configures the shared Ollama client.
type Opts struct {
	BaseURL string
	// RequestsPerSecond caps outbound calls. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
}

// NewClient creates a client for the Ollama server at opts.BaseURL.
func NewClient(opts Opts) *Client {
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return &Client{
		baseURL: opts.BaseURL,
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		limiter: limiter,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
}

// post runs a JSON request/response round trip through the limiter and
// breaker.
func (c *Client) post(ctx context.Context, path string, reqBody, respBody any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return c.breaker.Call(ctx, func(ctx context.Context) error {
		body, err := json.Marshal(reqBody)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("ollama %s: %w", path, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("ollama %s: status %d", path, resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return fmt.Errorf("ollama %s decode: %w", path, err)
		}
		return nil
	})
}
