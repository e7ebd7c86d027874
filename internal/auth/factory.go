package auth

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/stacklok/gitrepo-server/internal/config"
)

// NewAuthMiddleware creates authentication middleware based on config
func NewAuthMiddleware(cfg *config.AuthConfig) (func(http.Handler) http.Handler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("auth configuration is required")
	}

	switch cfg.Mode {
	case config.AuthModeAnonymous:
		owner := cfg.AnonymousOwner
		if owner == "" {
			owner = config.DefaultAnonymousOwner
		}
		slog.Warn("auth: anonymous mode, every request is served as a single owner", "owner", owner)
		return anonymousMiddleware(owner), nil
	case config.AuthModeJWT:
		return createJWTMiddleware(cfg)
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", cfg.Mode)
	}
}

func createJWTMiddleware(cfg *config.AuthConfig) (func(http.Handler) http.Handler, error) {
	jwtCfg := cfg.JWT
	if jwtCfg == nil {
		jwtCfg = &config.JWTConfig{}
	}

	secret, err := jwtCfg.GetSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to read JWT secret: %w", err)
	}

	validator, err := newHMACValidator(secret, jwtCfg.Issuer, jwtCfg.Audience)
	if err != nil {
		return nil, err
	}

	slog.Info("auth: JWT mode", "issuer", jwtCfg.Issuer, "audience", jwtCfg.Audience)
	return newJWTMiddleware(validator, cfg.Realm).Middleware, nil
}

// anonymousMiddleware serves every request as owner
func anonymousMiddleware(owner string) func(http.Handler) http.Handler {
	id := Identity{OwnerID: owner}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
