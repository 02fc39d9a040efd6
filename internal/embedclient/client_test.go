package embedclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDecodeEmbeddingResponseNormalizesSingleton(t *testing.T) {
	t.Parallel()

	raw := []byte(`[0.1, 0.2, 0.3]`)
	vectors, err := decodeEmbeddingResponse(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(vectors) != 1 || len(vectors[0]) != 3 {
		t.Fatalf("expected 1 vector of length 3, got %#v", vectors)
	}
}

func TestDecodeEmbeddingResponseNormalizesNested(t *testing.T) {
	t.Parallel()

	raw := []byte(`[[0.1, 0.2], [0.3, 0.4]]`)
	vectors, err := decodeEmbeddingResponse(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
}

func TestValidateShapeRejectsMismatch(t *testing.T) {
	t.Parallel()

	vectors := [][]float32{{0.1, 0.2}}
	if err := validateShape(vectors, 1, 384); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
	if err := validateShape(vectors, 2, 2); err == nil {
		t.Fatalf("expected count mismatch error")
	}
}

func TestClientFallsBackToSecondEndpoint(t *testing.T) {
	t.Parallel()

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([][]float32{{0.1, 0.2}})
	}))
	defer fallback.Close()

	client := &Client{
		endpoints: []Endpoint{
			{Name: "custom", URL: primary.URL},
			{Name: "fallback", URL: fallback.URL},
		},
		httpClient: http.DefaultClient,
		dimensions: 2,
		maxRetries: 1,
		retryWait:  0,
	}

	vectors, err := client.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vectors) != 1 || len(vectors[0]) != 2 {
		t.Fatalf("unexpected vectors: %#v", vectors)
	}
}

func TestClientGivesCustomEndpointOnlyOneAttempt(t *testing.T) {
	t.Parallel()

	var customHits int
	custom := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customHits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer custom.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([][]float32{{0.1, 0.2}})
	}))
	defer fallback.Close()

	client := &Client{
		endpoints: []Endpoint{
			{Name: "custom", URL: custom.URL, MaxAttempts: 1},
			{Name: "fallback", URL: fallback.URL},
		},
		httpClient: http.DefaultClient,
		dimensions: 2,
		maxRetries: 3,
		retryWait:  0,
	}

	if _, err := client.Embed(context.Background(), []string{"hello"}); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if customHits != 1 {
		t.Fatalf("expected exactly one attempt against the custom endpoint, got %d", customHits)
	}
}

func TestClientReturnsErrEmbeddingUnavailableWhenAllEndpointsFail(t *testing.T) {
	t.Parallel()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	client := &Client{
		endpoints:  []Endpoint{{Name: "fallback", URL: down.URL}},
		httpClient: http.DefaultClient,
		dimensions: 2,
		maxRetries: 1,
		retryWait:  0,
	}

	_, err := client.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestFakeEmbedderIsDeterministic(t *testing.T) {
	t.Parallel()

	fake := NewFake(16)
	a, err := fake.Embed(context.Background(), []string{"same text"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	b, err := fake.Embed(context.Background(), []string{"same text"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("expected deterministic vectors, differed at index %d", i)
		}
	}
}
