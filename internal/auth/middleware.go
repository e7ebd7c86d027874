// Package auth provides authentication middleware for the repository API server.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stacklok/gitrepo-server/internal/repopath"
)

// RFC 6750 Section 3 error codes
const (
	// errorCodeInvalidRequest indicates the request is missing a required parameter,
	// includes an unsupported parameter or parameter value, or is otherwise malformed.
	errorCodeInvalidRequest = "invalid_request"

	// errorCodeInvalidToken indicates the access token provided is expired, revoked,
	// malformed, or invalid for other reasons.
	errorCodeInvalidToken = "invalid_token"
)

// defaultRealm is the default protection space identifier
const defaultRealm = "gitrepo"

// tokenQueryParam carries the token of websocket upgrades, which browsers
// cannot send with an Authorization header
const tokenQueryParam = "token"

var (
	errMissingToken   = errors.New("missing bearer token")
	errMalformedToken = errors.New("malformed authorization header")
)

// jwtMiddleware authenticates requests with a bearer JWT
type jwtMiddleware struct {
	validator tokenValidator
	realm     string
}

func newJWTMiddleware(validator tokenValidator, realm string) *jwtMiddleware {
	if realm == "" {
		realm = defaultRealm
	}
	return &jwtMiddleware{validator: validator, realm: realm}
}

// Middleware returns an HTTP middleware function that performs authentication
// and stores the caller Identity in the request context.
func (m *jwtMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractToken(r)
		if err != nil {
			slog.Warn("Token extraction failed",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path)
			m.writeError(w, errorCodeInvalidRequest, "missing or malformed authorization header")
			return
		}

		claims, err := m.validator.ValidateToken(r.Context(), token)
		if err != nil {
			slog.Warn("Token validation failed",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path)
			m.writeError(w, errorCodeInvalidToken, "token validation failed")
			return
		}

		id, err := identityFromClaims(claims)
		if err != nil {
			slog.Warn("Token claims rejected",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path)
			m.writeError(w, errorCodeInvalidToken, "token subject is not a valid owner")
			return
		}

		slog.Debug("Authentication successful", "owner", id.OwnerID, "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// extractToken reads the bearer token from the Authorization header, or from
// the token query parameter of a websocket upgrade
func extractToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if isWebsocketUpgrade(r) {
			if token := r.URL.Query().Get(tokenQueryParam); token != "" {
				return token, nil
			}
		}
		return "", errMissingToken
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errMalformedToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errMalformedToken
	}
	return token, nil
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// identityFromClaims maps sub to the owner id and email to the commit email
func identityFromClaims(claims jwt.MapClaims) (Identity, error) {
	sub, err := claims.GetSubject()
	if err != nil {
		return Identity{}, fmt.Errorf("invalid sub claim: %w", err)
	}
	if err := repopath.ValidateName(sub); err != nil {
		return Identity{}, fmt.Errorf("sub claim: %w", err)
	}

	email, _ := claims["email"].(string)
	return Identity{OwnerID: sub, Email: email}, nil
}

// sanitizeHeaderValue removes characters that could enable header injection attacks.
// This includes newlines, carriage returns, and unescaped quotes.
func sanitizeHeaderValue(s string) string {
	if !strings.ContainsAny(s, "\r\n\"") {
		return s
	}
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	// Escape quotes for use in quoted-string (RFC 7230)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// writeError writes a 401 JSON error response with an RFC 6750 WWW-Authenticate header.
func (m *jwtMiddleware) writeError(w http.ResponseWriter, errCode, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="%s", error="%s", error_description="%s"`,
		sanitizeHeaderValue(m.realm), errCode, sanitizeHeaderValue(description)))
	w.WriteHeader(http.StatusUnauthorized)

	resp := struct {
		Error string `json:"error"`
	}{
		Error: description,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

// WrapWithPublicPaths wraps an auth middleware to bypass authentication for public paths.
// Requests to public paths are passed directly to the next handler without authentication,
// while all other requests go through the provided auth middleware.
func WrapWithPublicPaths(
	authMw func(http.Handler) http.Handler,
	publicPaths []string,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		// Pre-wrap the handler once during initialization, not per-request
		authWrappedNext := authMw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsPublicPath(r.URL.Path, publicPaths) {
				authWrappedNext.ServeHTTP(w, r)
			} else {
				next.ServeHTTP(w, r)
			}
		})
	}
}
