package httpapi

import (
	"net/http"

	"github.com/romariotrain/holograma/internal/auth"
	"github.com/romariotrain/holograma/internal/metrics"
)

// NewRouter wires the public routes and the routes that need a principal.
// extra handlers (for example the local file server) are mounted as is.
func NewRouter(h *Handler, authn *auth.Authenticator, extra map[string]http.Handler) http.Handler {
	mux := http.NewServeMux()
	protect := authn.Middleware(h.writeError)
	secured := func(f http.HandlerFunc) http.Handler { return protect(f) }

	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /articles", h.ListArticles)
	mux.HandleFunc("GET /articles/{id}", h.GetArticle)
	mux.Handle("POST /articles", secured(h.CreateArticle))
	mux.Handle("PATCH /articles/{id}", secured(h.UpdateArticle))

	// Edit sessions
	mux.Handle("POST /articles/{id}/sessions", secured(h.OpenSession))
	mux.Handle("GET /sessions/{sid}", secured(h.GetSession))
	mux.Handle("DELETE /sessions/{sid}", secured(h.CloseSession))
	mux.Handle("POST /sessions/{sid}/files", secured(h.AddFiles))
	mux.Handle("DELETE /sessions/{sid}/items/{itemID}", secured(h.RemoveItem))
	mux.Handle("POST /sessions/{sid}/items/{itemID}/retry", secured(h.RetryItem))
	mux.Handle("PUT /sessions/{sid}/order", secured(h.Reorder))
	mux.Handle("GET /sessions/{sid}/payload", secured(h.Payload))
	mux.Handle("POST /sessions/{sid}/commit", secured(h.Commit))

	for pattern, handler := range extra {
		mux.Handle(pattern, handler)
	}

	return instrument(mux, h.logger)
}
