// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/spherelink/spherelink/internal/config"
)

var (
	loginFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "login_failures_total",
		Help: "Failed login attempts",
	})
	accountLockoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "account_lockouts_total",
		Help: "Accounts locked after repeated login failures",
	})
)

// lockoutCap bounds the exponential backoff on repeat lockouts.
const lockoutCap = 24 * time.Hour

// LoginProtection rate-limits login POSTs per client IP and locks
// accounts after repeated password failures. Failure counting and
// lockout thresholds come from the application config.
type LoginProtection struct {
	ips *limiterCache[string]

	mu       sync.Mutex
	accounts map[string]*accountState

	maxFailures int
	baseLockout time.Duration
	window      time.Duration
}

// accountState tracks login failures for a single account.
type accountState struct {
	failures    int
	windowStart time.Time
	lockedUntil time.Time
	lockouts    int
}

// NewLoginProtection builds the protector from the application config
// and starts its background janitor. Zero config values fall back to
// the documented defaults so tests can construct a bare config.Config.
func NewLoginProtection(cfg config.Config) *LoginProtection {
	rate, burst := cfg.LoginIPRate, cfg.LoginIPBurst
	if rate <= 0 {
		rate = 0.5
	}
	if burst <= 0 {
		burst = 5
	}

	lp := &LoginProtection{
		ips:         newLimiterCache[string](rate, burst),
		accounts:    make(map[string]*accountState),
		maxFailures: cfg.LoginMaxFailures,
		baseLockout: cfg.LoginLockout,
		window:      cfg.LoginFailureWindow,
	}
	if lp.maxFailures <= 0 {
		lp.maxFailures = 5
	}
	if lp.baseLockout <= 0 {
		lp.baseLockout = 15 * time.Minute
	}
	if lp.window <= 0 {
		lp.window = 15 * time.Minute
	}

	go lp.janitor()
	return lp
}

// IsAccountLocked reports whether the account is locked and for how
// much longer.
func (lp *LoginProtection) IsAccountLocked(username string) (bool, time.Duration) {
	lp.mu.Lock()
	s := lp.accounts[username]
	lp.mu.Unlock()

	if s == nil {
		return false, 0
	}
	if remaining := time.Until(s.lockedUntil); remaining > 0 {
		return true, remaining
	}
	return false, 0
}

// RecordFailedAttempt notes a failed login for the account. It returns
// true and the lockout duration when this failure crosses the limit.
func (lp *LoginProtection) RecordFailedAttempt(username string) (bool, time.Duration) {
	loginFailuresTotal.Inc()

	lp.mu.Lock()
	defer lp.mu.Unlock()

	now := time.Now()
	s := lp.accounts[username]
	if s == nil {
		s = &accountState{windowStart: now}
		lp.accounts[username] = s
	} else if now.Sub(s.windowStart) > lp.window {
		s.failures = 0
		s.windowStart = now
	}

	s.failures++
	if s.failures < lp.maxFailures {
		return false, 0
	}

	d := lp.baseLockout << uint(min(s.lockouts, 16))
	if d <= 0 || d > lockoutCap {
		d = lockoutCap
	}
	s.lockedUntil = now.Add(d)
	s.lockouts++
	s.failures = 0

	accountLockoutsTotal.Inc()
	slog.Warn("account locked after repeated login failures",
		"username", username, "lockouts", s.lockouts, "duration", d)
	return true, d
}

// RecordSuccessfulLogin clears the failure state for the account.
func (lp *LoginProtection) RecordSuccessfulLogin(username string) {
	lp.mu.Lock()
	delete(lp.accounts, username)
	lp.mu.Unlock()
}

// GetRemainingAttempts returns how many more failures the account can
// absorb before it locks.
func (lp *LoginProtection) GetRemainingAttempts(username string) int {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	s := lp.accounts[username]
	if s == nil || time.Since(s.windowStart) > lp.window {
		return lp.maxFailures
	}
	return max(lp.maxFailures-s.failures, 0)
}

// janitor drops expired account state and keeps the IP limiter cache
// bounded.
func (lp *LoginProtection) janitor() {
	for range time.Tick(10 * time.Minute) {
		if lp.ips.clearIfExceeds(10000) {
			slog.Info("login IP limiter cache cleared")
		}

		now := time.Now()
		lp.mu.Lock()
		for name, s := range lp.accounts {
			if now.After(s.lockedUntil) && now.Sub(s.windowStart) > lp.window {
				delete(lp.accounts, name)
			}
		}
		lp.mu.Unlock()
	}
}

// Middleware rate-limits login POSTs per client IP. Reads pass through
// untouched.
func (lp *LoginProtection) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				ip := ClientIP(r)
				if !lp.ips.get(ip).Allow() {
					slog.Warn("login rate limit exceeded", "ip", ip)
					WriteAPIError(w, http.StatusTooManyRequests, "rate_limit_exceeded",
						"Too many login attempts. Please wait a moment and try again.", nil)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
