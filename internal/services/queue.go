package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/queuedesk/internal/appointments"
	"github.com/Lllllllleong/queuedesk/internal/config"
	"github.com/Lllllllleong/queuedesk/internal/models"
)

// ErrMissingID is returned when a single-document request carries no id.
var ErrMissingID = errors.New("missing document 'id' in the request")

// DocumentStore is the read side of the remote document store.
type DocumentStore interface {
	GetDocument(ctx context.Context, ref models.DocumentRef) (models.RawDocument, error)
	ListDocuments(ctx context.Context, ref models.DocumentRef) ([]models.RawDocument, error)
}

// QueueConfig holds what the queue service needs from the process configuration.
type QueueConfig struct {
	ProjectID     string
	Collection    string
	Location      *time.Location
	DefaultAmount int
	MaxAmount     int
}

// QueueService answers the appointment queries of the desk front-end.
type QueueService struct {
	store  DocumentStore
	config QueueConfig
	now    func() time.Time
}

// NewQueueService creates a QueueService over store.
func NewQueueService(cfg *config.Config, store DocumentStore) (*QueueService, error) {
	if store == nil {
		return nil, fmt.Errorf("a document store must be provided")
	}
	loc, err := cfg.Queue.Location()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve queue timezone: %w", err)
	}

	return &QueueService{
		store: store,
		config: QueueConfig{
			ProjectID:     cfg.Database.FirebaseProjectID,
			Collection:    cfg.Database.Collection,
			Location:      loc,
			DefaultAmount: cfg.Queue.DefaultAmount,
			MaxAmount:     cfg.Queue.MaxAmount,
		},
		now: time.Now,
	}, nil
}

// WithClock replaces the clock used to decide what today is.
func (s *QueueService) WithClock(now func() time.Time) *QueueService {
	if now != nil {
		s.now = now
	}
	return s
}

// GetDocument fetches one document by id.
func (s *QueueService) GetDocument(ctx context.Context, id string) (models.RawDocument, error) {
	if id == "" {
		return models.RawDocument{}, ErrMissingID
	}

	logCtx := slog.With("requestId", RequestIDFrom(ctx), "collection", s.config.Collection, "documentId", id)
	logCtx.Info("Starting document fetch.")

	doc, err := s.store.GetDocument(ctx, models.DocumentRef{
		ProjectID:  s.config.ProjectID,
		Collection: s.config.Collection,
		ID:         id,
	})
	if err != nil {
		logCtx.Error("Failed to fetch document", "error", err)
		return models.RawDocument{}, err
	}
	logCtx.Info("Document fetch complete.")
	return doc, nil
}

// GetMultipleDocuments returns up to amount of today's appointments in desk
// order. A nil amount uses the configured default.
func (s *QueueService) GetMultipleDocuments(ctx context.Context, amount *uint64) ([]models.RawDocument, error) {
	n := s.resolveAmount(amount)
	logCtx := slog.With("requestId", RequestIDFrom(ctx), "collection", s.config.Collection, "amount", n)
	logCtx.Info("Starting appointment listing.")

	docs, err := s.store.ListDocuments(ctx, models.DocumentRef{
		ProjectID:  s.config.ProjectID,
		Collection: s.config.Collection,
	})
	if err != nil {
		logCtx.Error("Failed to list documents", "error", err)
		return nil, err
	}

	selected := appointments.Select(docs, n, s.now(), s.config.Location)
	logCtx.Info("Appointment listing complete.", "fetched", len(docs), "returned", len(selected))
	return selected, nil
}

func (s *QueueService) resolveAmount(amount *uint64) int {
	n := s.config.DefaultAmount
	if amount != nil {
		n = clampAmount(*amount)
	}
	if s.config.MaxAmount > 0 && n > s.config.MaxAmount {
		n = s.config.MaxAmount
	}
	return n
}

func clampAmount(v uint64) int {
	const maxInt = int(^uint(0) >> 1)
	if v > uint64(maxInt) {
		return maxInt
	}
	return int(v)
}
