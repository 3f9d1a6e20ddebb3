// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides bearer-token authentication. Auth() verifies an HS256
// JWT from the Authorization header and stores its subject in the Gin context
// under "userID", where handlers and the rate limiter pick it up. With no
// signing secret configured, verification is disabled and the X-User-ID
// header (or the demo fallback) identifies the caller, which keeps local
// development and tests friction-free.
package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthOptions configures the bearer-token verifier.
type AuthOptions struct {
	// SigningSecret is the HS256 key. Empty disables verification.
	SigningSecret []byte
	// Issuer, when set, must match the token's iss claim.
	Issuer string
	// Clock overrides time.Now for validation; used by tests.
	Clock func() time.Time
}

// Auth returns a Gin middleware that resolves the caller identity.
//
// With a signing secret configured, a syntactically present bearer token is
// verified (signature, algorithm, expiry, issuer) and its subject becomes the
// user id; a malformed or invalid token aborts with 401. Requests without an
// Authorization header pass through unauthenticated and fall back to the
// X-User-ID header resolution in the handlers.
func Auth(opt AuthOptions) gin.HandlerFunc {
	clock := opt.Clock
	if clock == nil {
		clock = time.Now
	}
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if raw == "" || len(opt.SigningSecret) == 0 {
			c.Next()
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(raw, prefix) {
			unauthorized(c, "authorization header must be a bearer token")
			return
		}
		subject, err := validateToken(strings.TrimSpace(raw[len(prefix):]), opt, clock)
		if err != nil {
			unauthorized(c, "invalid or expired token")
			return
		}

		c.Set("userID", subject)
		c.Next()
	}
}

// validateToken parses and verifies an HS256 JWT, returning its subject.
func validateToken(tokenString string, opt AuthOptions, clock func() time.Time) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parseOpts := []jwt.ParserOption{jwt.WithTimeFunc(clock)}
	if opt.Issuer != "" {
		parseOpts = append(parseOpts, jwt.WithIssuer(opt.Issuer))
	}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
			}
			return opt.SigningSecret, nil
		},
		parseOpts...,
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}

// unauthorized aborts the request with the standard 401 envelope.
func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(401, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       "unauthorized",
		"message":    msg,
	})
}
