package handlers

import (
	"net/http"

	"github.com/Lllllllleong/queuedesk/internal/config"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
)

// NewRouter wires the routes behind Middleware.
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	router := httprouter.New()
	router.HandlerFunc(http.MethodGet, "/api/get_document", h.GetDocument)
	router.HandlerFunc(http.MethodGet, "/api/get_multiple_documents", h.GetMultipleDocuments)
	router.HandlerFunc(http.MethodGet, "/api/form_config", h.FormConfig)
	router.HandlerFunc(http.MethodGet, "/health", h.Health)
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return Middleware(cfg)(router)
}

// Middleware builds the chain shared by the router and the function entry
// points: request id → access log → CORS → rate limit. Rate-limit buckets are
// shared by every handler wrapped with the returned func.
func Middleware(cfg *config.Config) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(cfg.Network.RateLimit, cfg.Network.RateBurst)
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.Network.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
	})

	return func(next http.Handler) http.Handler {
		if limiter != nil {
			next = limiter.Limit(next)
		}
		return RequestID(AccessLog(c.Handler(next)))
	}
}
