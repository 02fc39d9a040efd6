package embedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"civicgrid.dev/grievdedup/internal/config"
)

// ErrEmbeddingUnavailable is returned once every configured endpoint has
// exhausted its retries. Callers must never substitute a synthetic vector.
var ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

// Embedder acquires dense vectors for a batch of texts, preserving order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Endpoint is one embedding service the client will try in declared order —
// the Provider-equivalent of the teacher's translation.Provider, minus the
// persistent-cache concerns that don't apply here.
//
// MaxAttempts overrides the client's default retry count for this endpoint;
// zero means "use the client default". The custom endpoint gets a single
// attempt before falling through — only the fallback endpoint retries.
type Endpoint struct {
	Name        string
	URL         string
	MaxAttempts int
}

// Client owns the retry/backoff loop across a declared endpoint priority
// list, the same shape as translation.Manager trying providers in order.
type Client struct {
	endpoints   []Endpoint
	httpClient  *http.Client
	dimensions  int
	maxRetries  int
	retryWait   time.Duration
	modelName   string
	modelVer    string
}

// NewClient builds an embedclient.Client from configuration. A custom
// endpoint, when configured, is tried first; the local all-MiniLM-L6-v2
// fallback is always present as the last resort.
func NewClient(cfg *config.Config) *Client {
	var endpoints []Endpoint
	if custom := strings.TrimSpace(cfg.EmbeddingCustomEndpoint); custom != "" {
		endpoints = append(endpoints, Endpoint{Name: "custom", URL: custom, MaxAttempts: 1})
	}
	endpoints = append(endpoints, Endpoint{Name: "fallback", URL: cfg.EmbeddingFallbackEndpoint})

	retryWait := time.Duration(cfg.EmbeddingRetryWaitSeconds) * time.Second
	if retryWait <= 0 {
		retryWait = 2 * time.Second
	}
	maxRetries := cfg.EmbeddingMaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &Client{
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		dimensions: cfg.EmbeddingDimensions,
		maxRetries: maxRetries,
		retryWait:  retryWait,
		modelName:  cfg.EmbeddingModelName,
		modelVer:   cfg.EmbeddingModelVersion,
	}
}

// ModelName and ModelVersion report the provenance recorded on each
// acquired embedding, per §2.3's default since the reference service
// does not advertise one.
func (c *Client) ModelName() string    { return c.modelName }
func (c *Client) ModelVersion() string { return c.modelVer }

// Embed acquires vectors for texts in order, trying each endpoint in turn
// and retrying each up to maxRetries times with a pause between attempts.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, _, err := c.EmbedWithMeta(ctx, texts)
	return vectors, err
}

// EmbedWithMeta behaves like Embed but also reports which endpoint served
// the request and how long it took, for Embedding provenance columns.
func (c *Client) EmbedWithMeta(ctx context.Context, texts []string) ([][]float32, CallMeta, error) {
	if len(texts) == 0 {
		return nil, CallMeta{}, nil
	}

	var lastErr error
	for _, endpoint := range c.endpoints {
		started := time.Now()
		vectors, err := c.embedFromEndpoint(ctx, endpoint, texts)
		if err == nil {
			return vectors, CallMeta{Endpoint: endpoint.URL, LatencyMS: int(time.Since(started).Milliseconds())}, nil
		}
		lastErr = err
	}

	return nil, CallMeta{}, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, lastErr)
}

// CallMeta captures provenance for a successful Embed call.
type CallMeta struct {
	Endpoint  string
	LatencyMS int
}

func (c *Client) embedFromEndpoint(ctx context.Context, endpoint Endpoint, texts []string) ([][]float32, error) {
	maxAttempts := c.maxRetries
	if endpoint.MaxAttempts > 0 {
		maxAttempts = endpoint.MaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		vectors, err := c.requestOnce(ctx, endpoint, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryWait):
			}
		}
	}
	return nil, fmt.Errorf("endpoint %s exhausted %d attempts: %w", endpoint.Name, maxAttempts, lastErr)
}

func (c *Client) requestOnce(ctx context.Context, endpoint Endpoint, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Inputs: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send embedding request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding endpoint %s status %d: %s", endpoint.Name, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	vectors, err := decodeEmbeddingResponse(respBody)
	if err != nil {
		return nil, fmt.Errorf("embedding endpoint %s: %w", endpoint.Name, err)
	}

	if err := validateShape(vectors, len(texts), c.dimensions); err != nil {
		return nil, fmt.Errorf("embedding endpoint %s: %w", endpoint.Name, err)
	}

	return vectors, nil
}

type embedRequest struct {
	Inputs []string `json:"inputs"`
}

// decodeEmbeddingResponse normalizes the singleton-or-array response shape
// at this boundary so internal code always sees list-of-lists.
func decodeEmbeddingResponse(raw []byte) ([][]float32, error) {
	var nested [][]float32
	if err := json.Unmarshal(raw, &nested); err == nil {
		return nested, nil
	}

	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil {
		return [][]float32{flat}, nil
	}

	return nil, fmt.Errorf("unrecognized embedding response shape")
}

func validateShape(vectors [][]float32, expectedCount, expectedDims int) error {
	if len(vectors) != expectedCount {
		return fmt.Errorf("expected %d vectors, got %d", expectedCount, len(vectors))
	}
	for i, v := range vectors {
		if expectedDims > 0 && len(v) != expectedDims {
			return fmt.Errorf("vector %d has %d dimensions, expected %d", i, len(v), expectedDims)
		}
	}
	return nil
}
