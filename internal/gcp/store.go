package gcp

import (
	"context"

	"github.com/Lllllllleong/queuedesk/internal/models"
)

// RESTStore pairs a TokenProvider with a DocumentClient: every call acquires a
// token first and reaches the document store only if that succeeded.
type RESTStore struct {
	tokens *TokenProvider
	client *DocumentClient
}

// NewRESTStore creates a RESTStore.
func NewRESTStore(tokens *TokenProvider, client *DocumentClient) *RESTStore {
	return &RESTStore{tokens: tokens, client: client}
}

// GetDocument fetches the document ref points at.
func (s *RESTStore) GetDocument(ctx context.Context, ref models.DocumentRef) (models.RawDocument, error) {
	tok, err := s.tokens.Token(ctx)
	if err != nil {
		return models.RawDocument{}, err
	}
	return s.client.GetByID(ctx, ref, tok.Value)
}

// ListDocuments fetches every document in ref's collection.
func (s *RESTStore) ListDocuments(ctx context.Context, ref models.DocumentRef) ([]models.RawDocument, error) {
	tok, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.ListCollection(ctx, ref, tok.Value)
}

// Close releases nothing; REST connections belong to the http.Client pool.
func (s *RESTStore) Close() error {
	return nil
}
