package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flash-promo-service/internal/config"
	"flash-promo-service/internal/services"
)

type stubLimiter struct {
	allowSeq []bool
	idx      int
	limit    int64
	enabled  bool
	err      error
	usageErr error
	scopes   []string
	clients  []string
}

func (s *stubLimiter) Allow(_ context.Context, scope, client string) (services.RateDecision, error) {
	s.scopes = append(s.scopes, scope)
	s.clients = append(s.clients, client)
	if s.err != nil {
		return services.RateDecision{}, s.err
	}
	if s.idx >= len(s.allowSeq) {
		return services.RateDecision{Limit: s.limit, ResetAt: time.Now()}, nil
	}
	val := s.allowSeq[s.idx]
	s.idx++
	remaining := s.limit - int64(s.idx)
	if remaining < 0 {
		remaining = 0
	}
	return services.RateDecision{
		Allowed:   val,
		Limit:     s.limit,
		Used:      int64(s.idx),
		Remaining: remaining,
		ResetAt:   time.Now().Add(time.Minute),
	}, nil
}

func (s *stubLimiter) Usage(_ context.Context, _, _ string) (services.RateDecision, error) {
	if s.usageErr != nil {
		return services.RateDecision{}, s.usageErr
	}
	return services.RateDecision{Allowed: true, Limit: s.limit, Used: 1, Remaining: s.limit - 1, ResetAt: time.Now().Add(time.Minute)}, nil
}

func (s *stubLimiter) Enabled() bool {
	return s.enabled || len(s.allowSeq) > 0
}

func TestRateLimitMiddleware_BlocksAfterLimit(t *testing.T) {
	limiter := &stubLimiter{allowSeq: []bool{true, false}, limit: 1}

	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	wrapped := RateLimitMiddleware(limiter, RateScopeReserve, newTestLogger(), handler)
	req := httptest.NewRequest(http.MethodPost, "/api/promos/1/reserve", nil)
	req.RemoteAddr = "1.2.3.4:1234"

	rr1 := httptest.NewRecorder()
	wrapped(rr1, req)
	if rr1.Code != http.StatusOK || calls != 1 {
		t.Fatalf("first request expected 200, calls=1; got %d, calls=%d", rr1.Code, calls)
	}
	if rr1.Header().Get("X-RateLimit-Limit") != "1" || rr1.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("unexpected rate limit headers: %v", rr1.Header())
	}

	rr2 := httptest.NewRecorder()
	wrapped(rr2, req)
	if rr2.Code != http.StatusTooManyRequests || calls != 1 {
		t.Fatalf("second request expected 429, calls still 1; got %d, calls=%d", rr2.Code, calls)
	}
	if rr2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header on 429")
	}

	if limiter.scopes[0] != RateScopeReserve || limiter.clients[0] != "ip:1.2.3.4" {
		t.Fatalf("unexpected limiter key: scope=%s client=%s", limiter.scopes[0], limiter.clients[0])
	}
}

func TestRateLimitMiddleware_KeysByUser(t *testing.T) {
	limiter := &stubLimiter{allowSeq: []bool{true}, limit: 5}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/api/promos", nil)
	req.Header.Set(services.HeaderUserID, "42")
	RateLimitMiddleware(limiter, RateScopeAPI, newTestLogger(), handler)(httptest.NewRecorder(), req)

	if limiter.clients[0] != "user:42" {
		t.Fatalf("expected user key, got %s", limiter.clients[0])
	}
}

func TestRateLimitMiddleware_DisabledSkips(t *testing.T) {
	limiter := &stubLimiter{enabled: false}
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	wrapped := RateLimitMiddleware(limiter, RateScopeAPI, newTestLogger(), handler)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/promos", nil)
	wrapped(rr, req)

	if calls != 1 || rr.Code != http.StatusOK {
		t.Fatalf("expected middleware to skip limiter, code=%d calls=%d", rr.Code, calls)
	}
	if len(limiter.scopes) != 0 {
		t.Fatalf("limiter should not be consulted when disabled")
	}
}

func TestRateLimitMiddleware_NilLimiter(t *testing.T) {
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ })
	RateLimitMiddleware(nil, RateScopeAPI, newTestLogger(), handler)(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if calls != 1 {
		t.Fatalf("expected pass-through with nil limiter")
	}
}

func TestRateLimitMiddleware_Error(t *testing.T) {
	limiter := &stubLimiter{allowSeq: []bool{true}, limit: 1, enabled: true, err: errors.New("fail")}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/promos", nil)
	RateLimitMiddleware(limiter, RateScopeAPI, newTestLogger(), handler)(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on limiter error, got %d", rr.Code)
	}
}

func TestRateLimitStatus_Disabled(t *testing.T) {
	handler := NewRateLimitHandler(nil, newTestLogger(), &config.RateLimitConfig{Enabled: false})
	req := httptest.NewRequest(http.MethodGet, "/api/rate-limit/status", nil)
	rr := httptest.NewRecorder()

	handler.Status(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["enabled"] != false {
		t.Fatalf("expected enabled=false, got %v", body["enabled"])
	}
}

func TestRateLimitStatus_Enabled(t *testing.T) {
	limiter := &stubLimiter{enabled: true, limit: 10}
	cfg := &config.RateLimitConfig{Enabled: true, Requests: 10, WindowSeconds: 60}
	handler := NewRateLimitHandler(limiter, newTestLogger(), cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/rate-limit/status", nil)
	req.Header.Set(services.HeaderUserID, "7")
	rr := httptest.NewRecorder()
	handler.Status(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		Enabled bool                              `json:"enabled"`
		Limit   int                               `json:"limit"`
		Key     string                            `json:"key"`
		Scopes  map[string]map[string]interface{} `json:"scopes"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.Enabled || body.Limit != 10 || body.Key != "user:7" {
		t.Fatalf("unexpected status body: %+v", body)
	}
	if _, ok := body.Scopes[RateScopeReserve]; !ok {
		t.Fatalf("expected reserve scope in status")
	}
	if body.Scopes[RateScopeAPI]["remaining"] != float64(9) {
		t.Fatalf("unexpected remaining: %v", body.Scopes[RateScopeAPI]["remaining"])
	}
}

func TestRateLimitStatus_Error(t *testing.T) {
	limiter := &stubLimiter{enabled: true, limit: 5, usageErr: errors.New("usage error")}
	handler := NewRateLimitHandler(limiter, newTestLogger(), &config.RateLimitConfig{Enabled: true})

	req := httptest.NewRequest(http.MethodGet, "/api/rate-limit/status", nil)
	rr := httptest.NewRecorder()

	handler.Status(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestRateLimitStatus_MethodNotAllowed(t *testing.T) {
	handler := NewRateLimitHandler(nil, newTestLogger(), &config.RateLimitConfig{Enabled: true})
	req := httptest.NewRequest(http.MethodPost, "/api/rate-limit/status", nil)
	rr := httptest.NewRecorder()
	handler.Status(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
