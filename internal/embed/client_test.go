package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"supplyaudit/internal/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.Config{
		EmbedAPIBaseURL:   srv.URL,
		EmbedAPIToken:     "test-token",
		EmbedModel:        "test-model",
		EmbedRateLimitRPS: 100,
		EmbedTimeoutMs:    2000,
	}
	return NewClient(cfg)
}

func TestEmbed(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("missing auth header")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{0.1, 0.2, 0.3}}},
		})
	})

	vec, err := c.Embed(context.Background(), "HP 64 Black Ink")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 3 {
		t.Fatalf("len=%d", len(vec))
	}
}

func TestEmbedRetriesThenSucceeds(t *testing.T) {
	var calls int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{1}}},
		})
	})

	if _, err := c.Embed(context.Background(), "toner"); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("calls=%d", calls)
	}
}

func TestEmbedNonRetryableStatus(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	if _, err := c.Embed(context.Background(), "toner"); err == nil {
		t.Fatal("expected error")
	}
}

func TestEmbedMissingToken(t *testing.T) {
	c := NewClient(config.Config{EmbedRateLimitRPS: 1, EmbedTimeoutMs: 100})
	if _, err := c.Embed(context.Background(), "toner"); err == nil {
		t.Fatal("expected error for missing token")
	}
}
