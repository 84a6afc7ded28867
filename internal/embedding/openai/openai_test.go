package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedBatch(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Input) != 2 || req.Model != "custom-embed" {
			t.Errorf("request = %+v", req)
		}
		// out of order on purpose
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"custom-embed","data":[
			{"object":"embedding","index":1,"embedding":[0.0,1.0,0.0]},
			{"object":"embedding","index":0,"embedding":[1.0,0.0,0.0]}
		]}`))
	})

	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "TEST_OPENAI_KEY", Model: "custom-embed"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if c.Dimension() != 0 {
		t.Errorf("unknown model should start with dimension 0")
	}

	vecs, err := c.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("vectors not in input order: %v", vecs)
	}
	if c.Dimension() != 3 {
		t.Errorf("Dimension() = %d, want 3", c.Dimension())
	}
}

func TestEmbedServerError(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad input","type":"invalid_request_error"}}`))
	})

	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "TEST_OPENAI_KEY"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, err := c.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error from 400 response")
	}
}

func TestEmbedTimeout(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "TEST_OPENAI_KEY", Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	_, err = c.Embed(context.Background(), "slow")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("EMPTY_KEY_ENV", "")
	if _, err := NewClient(Config{APIKeyEnv: "EMPTY_KEY_ENV"}); err == nil {
		t.Error("expected error when key env is empty")
	}
}

func TestKnownModelDimension(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	c, err := NewClient(Config{APIKeyEnv: "TEST_OPENAI_KEY", Model: "text-embedding-3-large"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if c.Dimension() != 3072 {
		t.Errorf("Dimension() = %d, want 3072", c.Dimension())
	}
}
