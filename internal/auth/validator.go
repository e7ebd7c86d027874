package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// defaultLeeway tolerates clock skew between the issuer and this server
const defaultLeeway = 30 * time.Second

// tokenValidator abstracts token validation for testability
type tokenValidator interface {
	ValidateToken(ctx context.Context, token string) (jwt.MapClaims, error)
}

// hmacValidator verifies HS256 tokens signed with a shared secret
type hmacValidator struct {
	secret []byte
	parser *jwt.Parser
}

// newHMACValidator creates a validator. Empty issuer or audience are not checked.
func newHMACValidator(secret []byte, issuer, audience string) (*hmacValidator, error) {
	if len(secret) == 0 {
		return nil, errors.New("JWT secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(defaultLeeway),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	return &hmacValidator{
		secret: secret,
		parser: jwt.NewParser(opts...),
	}, nil
}

// ValidateToken checks the signature and registered claims of token
func (v *hmacValidator) ValidateToken(_ context.Context, token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}
