package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/conduit-lang/gqlmeta/internal/orm/dataloader"
)

// Loader attaches a fresh dataloader to every request so that lookups are
// batched within a request and never shared across callers
func Loader(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := dataloader.New(dataloader.WithLogger(logger))
			next.ServeHTTP(w, r.WithContext(dataloader.WithLoader(r.Context(), l)))
		})
	}
}
