package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/queuedesk/internal/config"
	"github.com/Lllllllleong/queuedesk/internal/handlers"
	"github.com/Lllllllleong/queuedesk/internal/services"
)

// app is what each function instance builds once: the handler and the
// middleware chain shared by every entry point.
type app struct {
	handler *handlers.Handler
	wrap    func(http.Handler) http.Handler
}

var (
	instance *app
	once     sync.Once
	initErr  error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// One function per route; the entry point names are configured in GCP.
	functions.HTTP("GetDocument", serve(func(h *handlers.Handler) http.HandlerFunc { return h.GetDocument }))
	functions.HTTP("GetMultipleDocuments", serve(func(h *handlers.Handler) http.HandlerFunc { return h.GetMultipleDocuments }))
	functions.HTTP("FormConfig", serve(func(h *handlers.Handler) http.HandlerFunc { return h.FormConfig }))
}

// main is required by the Go Functions Framework.
func main() {}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := services.NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	queue, err := services.NewQueueService(cfg, store)
	if err != nil {
		return nil, err
	}
	return &app{
		handler: handlers.New(queue, cfg),
		wrap:    handlers.Middleware(cfg),
	}, nil
}

func (a *app) route(route func(*handlers.Handler) http.HandlerFunc) http.Handler {
	return a.wrap(route(a.handler))
}

// setup builds the app once per instance.
func setup() (*app, error) {
	once.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			initErr = err
			return
		}
		slog.SetDefault(cfg.Log.NewLogger(os.Stdout))
		instance, initErr = newApp(context.Background(), cfg)
	})
	return instance, initErr
}

func serve(route func(*handlers.Handler) http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := setup()
		if err != nil {
			slog.Error("CRITICAL: queue API initialization failed", "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"failed to initialize service"}`))
			return
		}
		a.route(route).ServeHTTP(w, r)
	}
}
