package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/go-chi/chi/v5"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"go.uber.org/zap"

	"github.com/conduit-lang/gqlmeta/internal/graphql/builder"
	"github.com/conduit-lang/gqlmeta/internal/graphql/sdl"
	"github.com/conduit-lang/gqlmeta/internal/web/auth"
	"github.com/conduit-lang/gqlmeta/internal/web/middleware"
)

const maxBodyBytes = 1 << 20

// HandlerConfig configures the HTTP routes
type HandlerConfig struct {
	// GraphQLPath serves POST and GET GraphQL requests. Default "/graphql".
	GraphQLPath string
	// Playground serves the GraphQL playground at /playground
	Playground bool
	// AuthService verifies bearer tokens. Without one every caller is
	// anonymous.
	AuthService *auth.AuthService
	// AuthRequired rejects requests that carry no token
	AuthRequired bool
	Logger       *zap.Logger
}

// request is the body of a GraphQL request
type request struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName string                 `json:"operationName"`
}

// NewHandler routes GraphQL requests to the artifact
func NewHandler(a *builder.Artifact, cfg HandlerConfig) http.Handler {
	if cfg.GraphQLPath == "" {
		cfg.GraphQLPath = "/graphql"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(),
		middleware.Logging(logger, "/healthz"),
		middleware.Recovery(logger),
	)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})
	r.Get("/schema.graphql", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := sdl.Write(w, a.Schema); err != nil {
			logger.Error("failed to print schema", zap.Error(err))
		}
	})
	if cfg.Playground {
		r.Get("/playground", playground.Handler("gqlmeta", cfg.GraphQLPath))
	}

	r.Group(func(r chi.Router) {
		if cfg.AuthService != nil {
			r.Use(middleware.Auth(middleware.AuthConfig{
				AuthService: cfg.AuthService,
				Required:    cfg.AuthRequired,
				Logger:      logger,
			}))
		}
		r.Use(middleware.Loader(logger.Named("dataloader")))

		h := &graphqlHandler{artifact: a, logger: logger}
		r.Post(cfg.GraphQLPath, h.post)
		r.Get(cfg.GraphQLPath, h.get)
	})

	return r
}

type graphqlHandler struct {
	artifact *builder.Artifact
	logger   *zap.Logger
}

func (h *graphqlHandler) post(w http.ResponseWriter, r *http.Request) {
	var req request
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)

	switch mediaType {
	case "application/graphql":
		b, err := io.ReadAll(body)
		if err != nil {
			badRequest(w, err)
			return
		}
		req.Query = string(b)
	default:
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			badRequest(w, err)
			return
		}
	}

	h.execute(w, r, req)
}

// get serves queries encoded in the URL. Mutations are refused because GET
// requests must not have side effects.
func (h *graphqlHandler) get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := request{
		Query:         q.Get("query"),
		OperationName: q.Get("operationName"),
	}
	if v := q.Get("variables"); v != "" {
		if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
			badRequest(w, err)
			return
		}
	}

	if op := operationType(req.Query, req.OperationName); op != "" && op != ast.OperationTypeQuery {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
			"errors": []gqlerrors.FormattedError{gqlerrors.NewFormattedError("Only queries may be sent with GET")},
		})
		return
	}

	h.execute(w, r, req)
}

func (h *graphqlHandler) execute(w http.ResponseWriter, r *http.Request, req request) {
	if req.Query == "" {
		badRequest(w, errors.New("missing query"))
		return
	}

	result := h.artifact.Execute(r.Context(), req.Query, req.Variables, req.OperationName)
	if result.HasErrors() {
		h.logger.Debug("graphql errors",
			zap.String("operation", req.OperationName),
			zap.Int("errors", len(result.Errors)))
	}
	writeJSON(w, http.StatusOK, result)
}

// operationType returns the type of the operation a request would run, or
// "" when the query does not parse or the operation cannot be chosen.
func operationType(query, operationName string) string {
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	if err != nil {
		return ""
	}
	var ops []*ast.OperationDefinition
	for _, def := range doc.Definitions {
		if op, ok := def.(*ast.OperationDefinition); ok {
			ops = append(ops, op)
		}
	}
	for _, op := range ops {
		if operationName == "" && len(ops) == 1 {
			return op.Operation
		}
		if op.Name != nil && op.Name.Value == operationName {
			return op.Operation
		}
	}
	return ""
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"errors": []gqlerrors.FormattedError{gqlerrors.NewFormattedError(err.Error())},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
