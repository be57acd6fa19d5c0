// Package middleware contains the HTTP middleware wrapped around the GraphQL
// endpoint.
package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	webcontext "github.com/conduit-lang/gqlmeta/internal/web/context"
)

// Middleware is a function that wraps an http.Handler
type Middleware func(http.Handler) http.Handler

// RequestIDHeader is read from requests and echoed on responses
const RequestIDHeader = "X-Request-ID"

// client supplied ids are only trusted when they look like ids
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// RequestID creates a middleware that tags every request with an id. A
// well-formed X-Request-ID sent by the client is kept; otherwise a UUID is
// generated.
func RequestID() Middleware {
	return RequestIDWithGenerator(uuid.NewString)
}

// RequestIDWithGenerator is RequestID with a custom id generator
func RequestIDWithGenerator(generate func() string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if !validRequestID.MatchString(requestID) {
				requestID = generate()
			}

			w.Header().Set(RequestIDHeader, requestID)
			next.ServeHTTP(w, r.WithContext(webcontext.SetRequestID(r.Context(), requestID)))
		})
	}
}
