package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mifdirfan/climatetrack/internal/logging"
)

// userHeader names the caller when authenticating with the static API key
// or when authentication is disabled. JWT callers are named by the subject.
const userHeader = "X-ClimateTrack-User"

type callerKey struct{}

// caller identifies who sent a request. verified is false when the name
// came from userHeader with authentication disabled.
type caller struct {
	username string
	verified bool
}

func withCaller(ctx context.Context, username string, verified bool) context.Context {
	return context.WithValue(ctx, callerKey{}, caller{username: username, verified: verified})
}

// usernameFrom returns the caller's name, or "" for anonymous requests.
func usernameFrom(ctx context.Context) string {
	c, _ := ctx.Value(callerKey{}).(caller)
	return c.username
}

// historyOwner returns the username whose stored history the request may
// read and extend. Unverified callers own no history.
func historyOwner(ctx context.Context) string {
	c, _ := ctx.Value(callerKey{}).(caller)
	if !c.verified {
		return ""
	}
	return c.username
}

// authenticator accepts either a static API key or an HS256 JWT as the
// Bearer token. With neither configured every request passes.
type authenticator struct {
	apiKey    string
	jwtSecret []byte
}

func (a authenticator) enabled() bool {
	return a.apiKey != "" || len(a.jwtSecret) > 0
}

// middleware enforces Bearer authentication and records the username in
// the request context. Rejected tokens are never logged.
func (a authenticator) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled() {
			next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), headerUser(r), false)))
			return
		}

		log := logging.FromContext(r.Context())
		token := bearerToken(r)
		if token == "" {
			log.Warn("auth: missing Authorization header")
			w.Header().Set("WWW-Authenticate", `Bearer realm="climatetrack"`)
			http.Error(w, "authorization required", http.StatusUnauthorized)
			return
		}

		username, err := a.verify(token, r)
		if err != nil {
			log.Warn("auth: rejected token", slog.String("reason", err.Error()))
			w.Header().Set("WWW-Authenticate", `Bearer realm="climatetrack" error="invalid_token"`)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), username, true)))
	})
}

// verify checks token against the API key first, then as a JWT.
func (a authenticator) verify(token string, r *http.Request) (string, error) {
	if a.apiKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(a.apiKey)) == 1 {
		return headerUser(r), nil
	}
	if len(a.jwtSecret) == 0 {
		return "", errors.New("token does not match API key")
	}
	return ParseToken(a.jwtSecret, token)
}

// ParseToken validates an HS256 token and returns its subject.
func ParseToken(secret []byte, token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("parse jwt: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("jwt has no subject")
	}
	return claims.Subject, nil
}

// IssueToken signs an HS256 token for username that expires after ttl.
// A non-positive ttl issues a token without expiry.
func IssueToken(secret []byte, username string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("server: jwt secret must not be empty")
	}
	if strings.TrimSpace(username) == "" {
		return "", errors.New("server: username must not be empty")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  username,
		Issuer:   "climatetrack",
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("server: sign jwt: %w", err)
	}
	return signed, nil
}

func headerUser(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(userHeader))
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Returns "" if the header is absent or malformed.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
