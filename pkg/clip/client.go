// Package clip provides a client for a CLIP-style image-embedding sidecar.
// The sidecar is optional corroboration infrastructure: callers must treat
// any failure here as "backend unavailable" and degrade, never abort.
package clip

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/credent-works/certverify-cli/internal/resilience"
)

// Client defines the embedding operations.
type Client interface {
	// Embed reads an image file and returns its embedding vector.
	Embed(ctx context.Context, imagePath string) ([]float64, error)
	// Ping reports whether the embedding backend is reachable.
	Ping(ctx context.Context) error
}

type embedRequest struct {
	Image string `json:"image"` // base64-encoded image bytes
	Model string `json:"model,omitempty"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
	Model     string    `json:"model"`
}

// Option configures the clip client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps requests per second against the sidecar.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithModel selects the embedding model the sidecar should use.
func WithModel(model string) Option {
	return func(c *httpClient) {
		c.model = model
	}
}

// WithRetry overrides the retry policy for embed requests.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	baseURL string
	model   string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a new embedding-sidecar client.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		retry:   defaultRetry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return eris.Wrap(err, "clip: build health request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "clip: health check")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("clip: health check returned %d", resp.StatusCode)
	}
	return nil
}

func (c *httpClient) Embed(ctx context.Context, imagePath string) ([]float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "clip: rate limit wait")
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, eris.Wrapf(err, "clip: read image %s", imagePath)
	}

	body, err := json.Marshal(embedRequest{
		Image: base64.StdEncoding.EncodeToString(data),
		Model: c.model,
	})
	if err != nil {
		return nil, eris.Wrap(err, "clip: marshal request")
	}

	respBody, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/v1/embeddings/image", bytes.NewReader(body))
		if err != nil {
			return nil, eris.Wrap(err, "clip: build request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "clip: embed request")
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "clip: read response")
		}

		if resp.StatusCode != http.StatusOK {
			statusErr := eris.Errorf("clip: embed returned %d: %s", resp.StatusCode, truncate(respBody, 200))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
			}
			return nil, statusErr
		}

		return respBody, nil
	})
	if err != nil {
		return nil, err
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, eris.Wrap(err, "clip: parse response")
	}
	if len(parsed.Embedding) == 0 {
		return nil, eris.New("clip: empty embedding in response")
	}

	return parsed.Embedding, nil
}

func defaultRetry() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxBackoff = 5 * time.Second
	cfg.OnRetry = resilience.RetryLogger("clip", "embed")
	return cfg
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return fmt.Sprintf("%s...", b[:n])
}

// CosineSimilarity computes the cosine similarity of two embedding vectors.
// Mismatched lengths or zero vectors yield 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
