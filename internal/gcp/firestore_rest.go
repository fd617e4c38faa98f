package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Lllllllleong/queuedesk/internal/models"
	"google.golang.org/api/googleapi"
)

const (
	// DefaultBaseURL is the Firestore v1 REST endpoint.
	DefaultBaseURL = "https://firestore.googleapis.com/v1"
	// DefaultDatabaseID names the database every project starts with.
	DefaultDatabaseID = "(default)"
)

// DocumentClient reads documents through the Firestore REST API. It never
// writes and holds no per-request state, so one client serves every request.
type DocumentClient struct {
	baseURL    string
	databaseID string
	pageSize   int
	httpClient *http.Client
}

// ClientOption configures a DocumentClient.
type ClientOption func(*DocumentClient)

// WithBaseURL points the client at another endpoint, such as the emulator.
func WithBaseURL(u string) ClientOption {
	return func(c *DocumentClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithDatabaseID selects a named database.
func WithDatabaseID(id string) ClientOption {
	return func(c *DocumentClient) {
		if id != "" {
			c.databaseID = id
		}
	}
}

// WithPageSize sets pageSize on list requests. Zero leaves it to the server.
func WithPageSize(n int) ClientOption {
	return func(c *DocumentClient) {
		if n >= 0 {
			c.pageSize = n
		}
	}
}

// WithHTTPClient replaces the default client, which times out after 15 seconds.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *DocumentClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewDocumentClient creates a REST client for Firestore.
func NewDocumentClient(opts ...ClientOption) *DocumentClient {
	c := &DocumentClient{
		baseURL:    DefaultBaseURL,
		databaseID: DefaultDatabaseID,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetByID fetches exactly one document.
func (c *DocumentClient) GetByID(ctx context.Context, ref models.DocumentRef, token string) (models.RawDocument, error) {
	const op = "get_by_id"
	if err := checkDocumentID(op, ref.ID); err != nil {
		return models.RawDocument{}, err
	}
	collectionURL, err := c.collectionURL(op, ref)
	if err != nil {
		return models.RawDocument{}, err
	}

	body, err := c.get(ctx, op, collectionURL+"/"+url.PathEscape(ref.ID), token)
	if err != nil {
		return models.RawDocument{}, err
	}
	return DecodeDocument(body)
}

// listResponse is one page of documents.list. Documents is nil when the key is
// absent or null.
type listResponse struct {
	Documents     *[]json.RawMessage `json:"documents"`
	NextPageToken string             `json:"nextPageToken"`
}

// ListCollection fetches every document in the collection, in server order. The
// first page must carry a documents array; an empty array is a valid result.
func (c *DocumentClient) ListCollection(ctx context.Context, ref models.DocumentRef, token string) ([]models.RawDocument, error) {
	const op = "list_collection"
	collectionURL, err := c.collectionURL(op, ref)
	if err != nil {
		return nil, err
	}

	docs := make([]models.RawDocument, 0)
	pageToken := ""
	for page := 0; ; page++ {
		body, err := c.get(ctx, op, c.pageURL(collectionURL, pageToken), token)
		if err != nil {
			return nil, err
		}

		var listing listResponse
		if err := json.Unmarshal(body, &listing); err != nil {
			return nil, WrapError(KindDecode, op, "error decoding documents list", err)
		}
		if listing.Documents == nil {
			if page == 0 {
				return nil, NewError(KindShape, op, "response has no documents array")
			}
			break
		}

		for _, raw := range *listing.Documents {
			doc, err := DecodeDocument(raw)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}

		if listing.NextPageToken == "" {
			break
		}
		pageToken = listing.NextPageToken
	}
	return docs, nil
}

func (c *DocumentClient) get(ctx context.Context, op, rawURL, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, WrapError(KindTransport, op, "error building request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, WrapError(KindTransport, op, "error fetching document", err)
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return nil, WrapError(KindNotFound, op, fmt.Sprintf("document store request failed with status: %d", resp.StatusCode), err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(KindTransport, op, "error reading response body", err)
	}
	return body, nil
}

func (c *DocumentClient) collectionURL(op string, ref models.DocumentRef) (string, error) {
	if ref.ProjectID == "" || ref.Collection == "" {
		return "", NewError(KindInvalid, op, "project id and collection must be provided")
	}
	return fmt.Sprintf("%s/projects/%s/databases/%s/documents/%s",
		c.baseURL, url.PathEscape(ref.ProjectID), c.databaseID, escapePath(ref.Collection)), nil
}

// checkDocumentID accepts a single path segment. A slash would address a
// subcollection instead of the document.
func checkDocumentID(op, id string) error {
	switch {
	case id == "":
		return NewError(KindInvalid, op, "document id must be provided")
	case id == "." || id == ".." || strings.Contains(id, "/"):
		return NewError(KindInvalid, op, fmt.Sprintf("invalid document id %q", id))
	}
	return nil
}

func (c *DocumentClient) pageURL(collectionURL, pageToken string) string {
	q := url.Values{}
	if c.pageSize > 0 {
		q.Set("pageSize", strconv.Itoa(c.pageSize))
	}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	if len(q) == 0 {
		return collectionURL
	}
	return collectionURL + "?" + q.Encode()
}

// escapePath escapes each segment of a collection path so nested collections
// keep their slashes. Document ids go through checkDocumentID instead.
func escapePath(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
