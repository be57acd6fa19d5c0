package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/gqlmeta/internal/web/auth"
)

// AuthConfig holds configuration for authentication middleware
type AuthConfig struct {
	// AuthService is used to validate tokens
	AuthService *auth.AuthService
	// Required rejects requests without a valid token. Otherwise they
	// continue as anonymous callers and the ACLs decide.
	Required bool
	// SkipPaths is a list of paths to skip authentication
	SkipPaths []string
	// Logger receives rejected tokens at debug level
	Logger *zap.Logger
}

// Auth creates a middleware that identifies the caller from a bearer token
func Auth(config AuthConfig) Middleware {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skipPath := range config.SkipPaths {
				if r.URL.Path == skipPath {
					next.ServeHTTP(w, r)
					return
				}
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				if config.Required {
					writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Authorization required")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Invalid authorization format")
				return
			}

			id, err := config.AuthService.Identify(token)
			if err != nil {
				logger.Debug("token rejected", zap.Error(err))
				writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}
