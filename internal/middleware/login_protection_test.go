package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spherelink/spherelink/internal/config"
)

func TestLoginProtection_AccountLockout(t *testing.T) {
	lp := NewLoginProtection(config.Config{
		LoginMaxFailures:   3,
		LoginLockout:       time.Minute,
		LoginFailureWindow: time.Minute,
	})

	const user = "victim"

	for i := 0; i < 2; i++ {
		if locked, _ := lp.RecordFailedAttempt(user); locked {
			t.Fatalf("locked after %d attempts, want 3", i+1)
		}
	}

	locked, duration := lp.RecordFailedAttempt(user)
	if !locked {
		t.Fatal("expected lockout after 3 failed attempts")
	}
	if duration != time.Minute {
		t.Errorf("duration = %v, want %v", duration, time.Minute)
	}

	if stillLocked, remaining := lp.IsAccountLocked(user); !stillLocked || remaining <= 0 {
		t.Errorf("IsAccountLocked = (%v, %v), want locked with remaining time", stillLocked, remaining)
	}
}

func TestLoginProtection_ExponentialBackoff(t *testing.T) {
	lp := NewLoginProtection(config.Config{
		LoginMaxFailures:   2,
		LoginLockout:       time.Minute,
		LoginFailureWindow: time.Hour,
	})

	lp.RecordFailedAttempt("u")
	locked, first := lp.RecordFailedAttempt("u")
	if !locked {
		t.Fatal("expected first lockout")
	}

	lp.RecordFailedAttempt("u")
	locked, second := lp.RecordFailedAttempt("u")
	if !locked {
		t.Fatal("expected second lockout")
	}

	if second != 2*first {
		t.Errorf("second lockout = %v, want %v", second, 2*first)
	}
}

func TestLoginProtection_BackoffIsCapped(t *testing.T) {
	lp := NewLoginProtection(config.Config{
		LoginMaxFailures:   1,
		LoginLockout:       10 * time.Hour,
		LoginFailureWindow: time.Hour,
	})

	var last time.Duration
	for i := 0; i < 3; i++ {
		locked, d := lp.RecordFailedAttempt("u")
		if !locked {
			t.Fatalf("attempt %d: expected lockout", i+1)
		}
		last = d
	}
	// 10h, 20h, then capped instead of 40h.
	if last != 24*time.Hour {
		t.Errorf("third lockout = %v, want 24h cap", last)
	}
}

func TestLoginProtection_SuccessClearsAttempts(t *testing.T) {
	// An empty config gets the documented defaults (5 attempts).
	lp := NewLoginProtection(config.Config{})

	lp.RecordFailedAttempt("user")
	lp.RecordFailedAttempt("user")
	if got := lp.GetRemainingAttempts("user"); got != 3 {
		t.Errorf("remaining = %d, want 3", got)
	}

	lp.RecordSuccessfulLogin("user")
	if got := lp.GetRemainingAttempts("user"); got != 5 {
		t.Errorf("remaining after success = %d, want 5", got)
	}
}

func TestLoginProtection_Middleware_OnlyPostLimited(t *testing.T) {
	lp := NewLoginProtection(config.Config{
		LoginIPRate:  0.001, // effectively one request
		LoginIPBurst: 1,
	})
	handler := lp.Middleware()(okHandler())

	// GET requests are never limited.
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/login", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET status = %d, want %d", rec.Code, http.StatusOK)
		}
	}

	// First POST passes, second is limited.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.Header.Set("X-Real-IP", "10.0.0.1")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first POST status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second POST status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
}

func TestGlobalRateLimiter(t *testing.T) {
	rl := NewGlobalRateLimiter(0.001, 2)
	handler := rl.Middleware()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.Header.Set("X-Real-IP", "10.0.0.2")

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	if ip := getClientIP(r); ip != "192.0.2.1:1234" {
		t.Errorf("ip = %q, want RemoteAddr", ip)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	if ip := getClientIP(r); ip != "203.0.113.7" {
		t.Errorf("ip = %q, want X-Forwarded-For value", ip)
	}

	r.Header.Set("X-Real-IP", "198.51.100.9")
	if ip := getClientIP(r); ip != "198.51.100.9" {
		t.Errorf("ip = %q, want X-Real-IP value", ip)
	}
}
