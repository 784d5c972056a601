package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientRateLimiterPerKey(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := newClientRateLimiter(1, 2, func() time.Time { return now })

	if !limiter.Allow("10.0.0.1") || !limiter.Allow("10.0.0.1") {
		t.Fatal("expected burst of two to be allowed")
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatal("expected third request to be limited")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Fatal("expected other client to be unaffected")
	}

	now = now.Add(time.Second)
	if !limiter.Allow("10.0.0.1") {
		t.Fatal("expected token to refill after one second")
	}
}

func TestClientRateLimiterPrunesIdleVisitors(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := newClientRateLimiter(1, 1, func() time.Time { return now }).(*clientRateLimiter)

	limiter.Allow("a")
	now = now.Add(visitorIdleTTL + time.Second)
	limiter.Allow("b")

	if _, ok := limiter.visitors["a"]; ok {
		t.Fatal("expected idle visitor to be pruned")
	}
	if len(limiter.visitors) != 1 {
		t.Fatalf("expected one visitor, got %d", len(limiter.visitors))
	}
}

func TestNewClientRateLimiterDisabled(t *testing.T) {
	if limiter := newClientRateLimiter(0, 5, nil); limiter != nil {
		t.Fatal("expected nil limiter when rps is zero")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := RateLimitMiddleware(0.001, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/a/stock-status", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	handler.ServeHTTP(first, req)
	if first.Code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}
