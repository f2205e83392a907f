package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ricesearch/rice-eval/internal/pkg/errors"
)

func TestNewOpenAI_RequiresKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{})
	if !errors.IsConfiguration(err) {
		t.Errorf("NewOpenAI() error = %v, want configuration error", err)
	}
}

func TestOpenAI_EmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %s, want /embeddings", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req struct {
			Input      []string `json:"input"`
			Model      string   `json:"model"`
			Dimensions int      `json:"dimensions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != defaultOpenAIModel || req.Dimensions != 2 {
			t.Errorf("request = %+v", req)
		}

		// Return out of order; the backend must place results by index.
		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(i), 1},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
		})
	}))
	defer server.Close()

	o, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL, Dimensions: 2})
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}

	got, err := o.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	for i, v := range got {
		if int(v[0]) != i {
			t.Errorf("embedding %d = %v", i, v)
		}
	}
}

func TestOpenAI_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	o, err := NewOpenAI(OpenAIConfig{APIKey: "nope", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}
	if _, err := o.EmbedBatch(context.Background(), []string{"a"}); !errors.IsEmbedding(err) {
		t.Errorf("EmbedBatch() error = %v, want embedding error", err)
	}
}
