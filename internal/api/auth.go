package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
	"github.com/FocuswithJustin/JuniperHelps/internal/logging"
)

// minAPIKeyLength is the shortest accepted API key.
const minAPIKeyLength = 16

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Enabled bool
	APIKey  string
}

// AuthMiddleware requires the X-API-Key header when auth is enabled. The
// root and health endpoints are always public. Websocket upgrades may pass
// the key as the api_key query parameter instead.
func AuthMiddleware(cfg AuthConfig, logger *slog.Logger, next http.Handler) http.Handler {
	logger = logging.Component(logger, "auth")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !cfg.Enabled || isPublicEndpoint(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" && r.URL.Path == "/ws" {
			apiKey = r.URL.Query().Get("api_key")
		}
		if apiKey == "" {
			logger.Warn("unauthorized request", "path", r.URL.Path, "reason", "missing API key")
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing X-API-Key header")
			return
		}
		if !constantTimeCompare(apiKey, cfg.APIKey) {
			logger.Warn("unauthorized request", "path", r.URL.Path, "reason", "invalid API key")
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isPublicEndpoint(path string) bool {
	return path == "/" || path == "/health"
}

// ValidateAuthConfig validates the authentication configuration.
func ValidateAuthConfig(cfg AuthConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.APIKey == "" {
		return errors.NewValidation("api_key", "required when authentication is enabled")
	}
	if len(cfg.APIKey) < minAPIKeyLength {
		return errors.NewValidation("api_key", "must be at least 16 characters")
	}
	return nil
}

// authorized reports whether r carries the API key, in the header or, for
// websocket clients that cannot set headers, the api_key query parameter.
func authorized(r *http.Request, cfg AuthConfig) bool {
	key := r.Header.Get("X-API-Key")
	if key == "" {
		key = r.URL.Query().Get("api_key")
	}
	return cfg.Enabled && key != "" && constantTimeCompare(key, cfg.APIKey)
}

func constantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
