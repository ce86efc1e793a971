// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/spherelink/spherelink/internal/model"
	"github.com/spherelink/spherelink/internal/store"
)

// JWT validation errors.
var (
	ErrInvalidToken = errors.New("invalid token")
)

// DefaultTokenTTL is the lifetime of issued API tokens.
const DefaultTokenTTL = 24 * time.Hour

// IssueToken creates a signed HS256 token for the given user.
func IssueToken(secret []byte, user model.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatInt(user.ID, 10),
		"username": user.Username,
		"iat":      jwt.NewNumericDate(now),
		"exp":      jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates a signed token and returns the subject user ID.
func ParseToken(secret []byte, tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return 0, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || userID <= 0 {
		return 0, ErrInvalidToken
	}
	return userID, nil
}

// JWTAuth creates middleware that authenticates requests carrying a
// Bearer token. Requests without an Authorization header pass through so
// session authentication can take over; a present but invalid token is
// rejected.
func JWTAuth(db *sql.DB, secret []byte) func(http.Handler) http.Handler {
	queries := store.New(db)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(authHeader, bearerPrefix) {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Invalid Authorization header format. Use: Bearer <token>", nil)
				return
			}
			tokenString := authHeader[len(bearerPrefix):]
			if tokenString == "" {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Token is empty", nil)
				return
			}

			userID, err := ParseToken(secret, tokenString)
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					WriteAPIError(w, http.StatusUnauthorized, "token_expired", "Access token has expired", nil)
					return
				}
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Invalid access token", nil)
				return
			}

			user, err := queries.GetUserByID(r.Context(), userID)
			if err != nil || !user.IsActive {
				if err != nil && !errors.Is(err, sql.ErrNoRows) {
					WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to load user", nil)
					return
				}
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Unknown or inactive account", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), queries, user)))
		})
	}
}
