package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kozaktomas/face-id/internal/metrics"
)

func TestRateLimiter_BurstThenReject(t *testing.T) {
	m := metrics.New()
	rl := NewRateLimiter(1, 2, m)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	handler := rl.Middleware(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/recognize", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusTeapot || codes[1] != http.StatusTeapot {
		t.Errorf("expected burst of 2 to pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("expected third request to be limited, got %d", codes[2])
	}
	if got := testutil.ToFloat64(m.RateLimitHits); got != 1 {
		t.Errorf("expected 1 rate limit hit, got %v", got)
	}

	// A second later one token is back.
	now = now.Add(time.Second)
	if !rl.Allow("10.0.0.1") {
		t.Error("expected token to refill")
	}
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)

	if !rl.Allow("10.0.0.1") {
		t.Fatal("first request from client A should pass")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("client B should have its own bucket")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("client A should be limited")
	}
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("10.0.0.1")
	now = now.Add(limiterIdle + time.Second)
	rl.Allow("10.0.0.2")

	if _, ok := rl.clients["10.0.0.1"]; ok {
		t.Error("expected idle client to be evicted")
	}
}

func TestRateLimit_DisabledPassesThrough(t *testing.T) {
	handler := RateLimit(0, 10, nil)(okHandler())

	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		if rec.Code != http.StatusTeapot {
			t.Fatalf("request %d was limited", i)
		}
	}
}
