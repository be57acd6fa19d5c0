package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	webcontext "github.com/conduit-lang/gqlmeta/internal/web/context"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "generates an id", want: "generated"},
		{name: "keeps client id", header: "abc-123", want: "abc-123"},
		{name: "replaces malformed id", header: "bad id\n", want: "generated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fromContext string
			handler := RequestIDWithGenerator(func() string { return "generated" })(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					fromContext = webcontext.GetRequestID(r.Context())
				}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if fromContext != tt.want {
				t.Errorf("context id = %q, want %q", fromContext, tt.want)
			}
			if got := rec.Header().Get(RequestIDHeader); got != tt.want {
				t.Errorf("header id = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequestID_UUID(t *testing.T) {
	var id string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id = webcontext.GetRequestID(r.Context())
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(id) != 36 {
		t.Errorf("expected a UUID, got %q", id)
	}
}
