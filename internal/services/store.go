package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Lllllllleong/queuedesk/internal/config"
	"github.com/Lllllllleong/queuedesk/internal/gcp"
)

// Store is a DocumentStore that holds connections.
type Store interface {
	DocumentStore
	io.Closer
}

// NewStore builds the document store selected by database.backend.
func NewStore(ctx context.Context, cfg *config.Config) (Store, error) {
	db := cfg.Database
	tokens := gcp.NewTokenProvider(db.ServiceAccountKeyPath,
		gcp.WithScopes(db.Scopes...),
		gcp.WithCache(db.CacheToken),
		gcp.WithTokenHTTPClient(&http.Client{Timeout: db.RequestTimeout}),
	)

	switch db.Backend {
	case config.BackendREST:
		client := gcp.NewDocumentClient(
			gcp.WithBaseURL(db.BaseURL),
			gcp.WithDatabaseID(db.DatabaseID),
			gcp.WithPageSize(db.PageSize),
			gcp.WithHTTPClient(&http.Client{Timeout: db.RequestTimeout}),
		)
		slog.Info("Using Firestore REST backend.", "baseUrl", db.BaseURL, "projectId", db.FirebaseProjectID)
		return gcp.NewRESTStore(tokens, client), nil

	case config.BackendSDK:
		// The client library picks up FIRESTORE_EMULATOR_HOST on its own.
		store, err := gcp.NewSDKStore(ctx, db.FirebaseProjectID, db.DatabaseID, tokens)
		if err != nil {
			return nil, fmt.Errorf("failed to create firestore sdk store: %w", err)
		}
		slog.Info("Using Firestore SDK backend.", "projectId", db.FirebaseProjectID)
		return store, nil
	}
	return nil, fmt.Errorf("unknown database backend %q", db.Backend)
}
