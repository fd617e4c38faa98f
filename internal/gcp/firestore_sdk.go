package gcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/queuedesk/internal/models"
	firestorev1 "google.golang.org/api/firestore/v1"
	"google.golang.org/api/option"
	"google.golang.org/genproto/googleapis/type/latlng"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// SDKStore reads queue documents through the Firestore gRPC client library and
// hands them out in the same REST envelope the DocumentClient returns.
type SDKStore struct {
	client    *firestore.Client
	projectID string
}

// NewSDKStore opens a Firestore client authenticated with tokens from the provider.
// Extra options (an emulator endpoint, for instance) are applied after the token source.
func NewSDKStore(ctx context.Context, projectID, databaseID string, tokens *TokenProvider, opts ...option.ClientOption) (*SDKStore, error) {
	// The client outlives ctx, so the token source must not be tied to it.
	all := append([]option.ClientOption{option.WithTokenSource(tokens.TokenSource(context.Background()))}, opts...)
	client, err := NewFirestoreClient(ctx, projectID, databaseID, all...)
	if err != nil {
		return nil, err
	}
	return &SDKStore{client: client, projectID: projectID}, nil
}

// GetDocument fetches the document ref points at.
func (s *SDKStore) GetDocument(ctx context.Context, ref models.DocumentRef) (models.RawDocument, error) {
	const op = "get_by_id"
	if err := s.checkRef(op, ref); err != nil {
		return models.RawDocument{}, err
	}
	if err := checkDocumentID(op, ref.ID); err != nil {
		return models.RawDocument{}, err
	}

	coll := s.client.Collection(ref.Collection)
	if coll == nil {
		return models.RawDocument{}, NewError(KindInvalid, op, fmt.Sprintf("invalid collection path %q", ref.Collection))
	}
	docRef := coll.Doc(ref.ID)
	if docRef == nil {
		return models.RawDocument{}, NewError(KindInvalid, op, fmt.Sprintf("invalid document id %q", ref.ID))
	}

	snap, err := docRef.Get(ctx)
	if err != nil {
		return models.RawDocument{}, grpcError(op, err)
	}
	return snapshotDocument(snap)
}

// ListDocuments fetches every document in ref's collection.
func (s *SDKStore) ListDocuments(ctx context.Context, ref models.DocumentRef) ([]models.RawDocument, error) {
	const op = "list_collection"
	if err := s.checkRef(op, ref); err != nil {
		return nil, err
	}

	coll := s.client.Collection(ref.Collection)
	if coll == nil {
		return nil, NewError(KindInvalid, op, fmt.Sprintf("invalid collection path %q", ref.Collection))
	}

	snaps, err := coll.Documents(ctx).GetAll()
	if err != nil {
		return nil, grpcError(op, err)
	}

	docs := make([]models.RawDocument, 0, len(snaps))
	for _, snap := range snaps {
		doc, err := snapshotDocument(snap)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Close closes the underlying gRPC connection.
func (s *SDKStore) Close() error {
	return s.client.Close()
}

func (s *SDKStore) checkRef(op string, ref models.DocumentRef) error {
	if ref.Collection == "" {
		return NewError(KindInvalid, op, "collection must be provided")
	}
	if ref.ProjectID != "" && ref.ProjectID != s.projectID {
		return NewError(KindInvalid, op, fmt.Sprintf("client is bound to project %q, not %q", s.projectID, ref.ProjectID))
	}
	return nil
}

func grpcError(op string, err error) error {
	if status.Code(err) == codes.NotFound {
		return WrapError(KindNotFound, op, "document not found", err)
	}
	return WrapError(KindTransport, op, "error fetching from firestore", err)
}

func snapshotDocument(snap *firestore.DocumentSnapshot) (models.RawDocument, error) {
	doc := encodeDocument(snap.Ref.Path, snap.CreateTime, snap.UpdateTime, snap.Data())
	raw, err := json.Marshal(doc)
	if err != nil {
		return models.RawDocument{}, WrapError(KindDecode, "encode_document", "error encoding document", err)
	}
	return DecodeDocument(raw)
}

// encodeDocument builds the REST representation of a document.
func encodeDocument(name string, created, updated time.Time, data map[string]interface{}) *firestorev1.Document {
	doc := &firestorev1.Document{
		Name:   name,
		Fields: make(map[string]firestorev1.Value, len(data)),
	}
	if !created.IsZero() {
		doc.CreateTime = created.UTC().Format(time.RFC3339Nano)
	}
	if !updated.IsZero() {
		doc.UpdateTime = updated.UTC().Format(time.RFC3339Nano)
	}
	for k, v := range data {
		doc.Fields[k] = encodeValue(v)
	}
	return doc
}

// encodeValue maps a value from DocumentSnapshot.Data to its typed-value envelope.
// Zero values are force-sent so that false, 0 and "" survive marshalling.
func encodeValue(v interface{}) firestorev1.Value {
	switch x := v.(type) {
	case nil:
		return firestorev1.Value{NullValue: "NULL_VALUE"}
	case bool:
		return firestorev1.Value{BooleanValue: x, ForceSendFields: []string{"BooleanValue"}}
	case string:
		return firestorev1.Value{StringValue: x, ForceSendFields: []string{"StringValue"}}
	case int64:
		return firestorev1.Value{IntegerValue: x, ForceSendFields: []string{"IntegerValue"}}
	case int:
		return firestorev1.Value{IntegerValue: int64(x), ForceSendFields: []string{"IntegerValue"}}
	case float64:
		return firestorev1.Value{DoubleValue: x, ForceSendFields: []string{"DoubleValue"}}
	case []byte:
		return firestorev1.Value{BytesValue: base64.StdEncoding.EncodeToString(x), ForceSendFields: []string{"BytesValue"}}
	case time.Time:
		return firestorev1.Value{TimestampValue: x.UTC().Format(time.RFC3339Nano)}
	case *latlng.LatLng:
		return firestorev1.Value{GeoPointValue: &firestorev1.LatLng{
			Latitude:        x.GetLatitude(),
			Longitude:       x.GetLongitude(),
			ForceSendFields: []string{"Latitude", "Longitude"},
		}}
	case *firestore.DocumentRef:
		return firestorev1.Value{ReferenceValue: x.Path}
	case []interface{}:
		values := make([]*firestorev1.Value, 0, len(x))
		for _, item := range x {
			ev := encodeValue(item)
			values = append(values, &ev)
		}
		return firestorev1.Value{ArrayValue: &firestorev1.ArrayValue{Values: values}}
	case map[string]interface{}:
		fields := make(map[string]firestorev1.Value, len(x))
		for k, item := range x {
			fields[k] = encodeValue(item)
		}
		return firestorev1.Value{MapValue: &firestorev1.MapValue{Fields: fields}}
	default:
		return firestorev1.Value{StringValue: fmt.Sprint(x), ForceSendFields: []string{"StringValue"}}
	}
}
