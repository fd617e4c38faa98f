package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Lllllllleong/queuedesk/internal/config"
	"github.com/Lllllllleong/queuedesk/internal/handlers"
	"github.com/Lllllllleong/queuedesk/internal/services"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.Log.NewLogger(os.Stdout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := services.NewStore(ctx, cfg)
	if err != nil {
		slog.Error("Failed to create document store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	queue, err := services.NewQueueService(cfg, store)
	if err != nil {
		slog.Error("Failed to create queue service", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              cfg.Network.Addr(),
		Handler:           handlers.NewRouter(handlers.New(queue, cfg), cfg),
		ReadTimeout:       cfg.Network.ReadTimeout,
		ReadHeaderTimeout: cfg.Network.ReadTimeout,
		WriteTimeout:      cfg.Network.WriteTimeout,
	}

	go func() {
		slog.Info("Listening.", "addr", server.Addr, "collection", cfg.Database.Collection, "backend", cfg.Database.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("ListenAndServe failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutdown signal received; shutting down gracefully.")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Network.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
		return
	}
	slog.Info("Server stopped cleanly.")
}
