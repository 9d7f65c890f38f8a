package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func testRateLimiter(t *testing.T, generalBurst, loginBurst int) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    generalBurst,
		LoginRate:       1,
		LoginBurst:      loginBurst,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(rl.Stop)
	return rl
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func userRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/babies", nil)
	return req.WithContext(ContextWithUserID(req.Context(), userID))
}

// --- API全般のテスト ---

func TestGeneralMiddleware_AllowsBurstThenRejects(t *testing.T) {
	rl := testRateLimiter(t, 3, 10)
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, userRequest("user-1"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, userRequest("user-1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if ra, err := strconv.Atoi(w.Header().Get("Retry-After")); err != nil || ra < 1 {
		t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("429 body should be JSON: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" || body.Category != "system" {
		t.Errorf("body = %+v", body)
	}
}

func TestGeneralMiddleware_IsolatesUsers(t *testing.T) {
	rl := testRateLimiter(t, 1, 10)
	handler := rl.GeneralMiddleware()(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, userRequest("user-A"))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, userRequest("user-A"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("user-A second request: status = %d, want 429", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, userRequest("user-B"))
	if w.Code != http.StatusOK {
		t.Errorf("user-B: status = %d, want 200", w.Code)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", rl.GeneralLimiterCount())
	}
}

func TestGeneralMiddleware_NoUserID_Returns401(t *testing.T) {
	rl := testRateLimiter(t, 1, 1)
	w := httptest.NewRecorder()
	rl.GeneralMiddleware()(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/babies", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// --- ログインのテスト ---

func loginRequest(remoteAddr, forwarded string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = remoteAddr
	if forwarded != "" {
		req.Header.Set("X-Forwarded-For", forwarded)
	}
	return req
}

func TestLoginMiddleware_LimitsPerIP(t *testing.T) {
	rl := testRateLimiter(t, 10, 2)
	handler := rl.LoginMiddleware()(okHandler())

	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, loginRequest("203.0.113.7:5000", ""))
		if w.Code != want {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, want)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, loginRequest("203.0.113.8:5000", ""))
	if w.Code != http.StatusOK {
		t.Errorf("other IP: status = %d, want 200", w.Code)
	}
	if rl.LoginLimiterCount() != 2 {
		t.Errorf("LoginLimiterCount = %d, want 2", rl.LoginLimiterCount())
	}
}

func TestLoginMiddleware_IndependentFromGeneralLimit(t *testing.T) {
	rl := testRateLimiter(t, 1, 1)

	w := httptest.NewRecorder()
	rl.LoginMiddleware()(okHandler()).ServeHTTP(w, loginRequest("198.51.100.1:1", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("login: status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	rl.GeneralMiddleware()(okHandler()).ServeHTTP(w, userRequest("user-indep"))
	if w.Code != http.StatusOK {
		t.Errorf("general: status = %d, want 200", w.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote    string
		forwarded string
		want      string
	}{
		{"192.0.2.1:1234", "", "192.0.2.1"},
		{"192.0.2.1:1234", "203.0.113.5, 10.0.0.1", "203.0.113.5"},
		{"[2001:db8::1]:443", "", "2001:db8::1"},
		{"unix-socket", "", "unix-socket"},
	}
	for _, tt := range tests {
		if got := ClientIP(loginRequest(tt.remote, tt.forwarded)); got != tt.want {
			t.Errorf("ClientIP(%q, %q) = %q, want %q", tt.remote, tt.forwarded, got, tt.want)
		}
	}
}

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate: 1, GeneralBurst: 5,
		LoginRate: 1, LoginBurst: 5,
		CleanupInterval: time.Millisecond,
	})
	defer rl.Stop()

	rl.GeneralMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), userRequest("user-cleanup"))
	rl.LoginMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), loginRequest("192.0.2.9:1", ""))

	time.Sleep(50 * time.Millisecond)

	if rl.GeneralLimiterCount() != 0 || rl.LoginLimiterCount() != 0 {
		t.Errorf("counts = %d/%d, want 0/0", rl.GeneralLimiterCount(), rl.LoginLimiterCount())
	}
}

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	if cfg.GeneralBurst != 120 || cfg.LoginBurst != 10 {
		t.Errorf("bursts = %d/%d, want 120/10", cfg.GeneralBurst, cfg.LoginBurst)
	}
	if cfg.GeneralRate != 2 {
		t.Errorf("GeneralRate = %v, want 2", cfg.GeneralRate)
	}
}
