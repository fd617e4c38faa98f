package models

import (
	"encoding/json"
	"time"
)

// DocumentRef points at a collection, or a single document when ID is set,
// inside a Firestore project. It is built per request and never stored.
type DocumentRef struct {
	ProjectID  string
	Collection string
	ID         string
}

// Appointment is the typed view of the scheduling fields of a queue document.
// Scheduled is false when scheduled_date was absent or not a valid timestamp.
type Appointment struct {
	ScheduledDate time.Time
	Scheduled     bool
	TimeSlot      string
	QueueNumber   int64
}

// RawDocument is a document exactly as the document store returned it, plus the
// Appointment decoded from its fields envelope.
type RawDocument struct {
	Name        string
	Raw         json.RawMessage
	Appointment Appointment
}

// MarshalJSON writes the untouched remote payload.
func (d RawDocument) MarshalJSON() ([]byte, error) {
	if len(d.Raw) == 0 {
		return []byte("null"), nil
	}
	return d.Raw, nil
}

// AccessToken is a bearer token for the document store API.
type AccessToken struct {
	Value  string
	Expiry time.Time
}

// ExpiredAt reports whether the token is unusable at t. A zero expiry never expires.
func (t AccessToken) ExpiredAt(at time.Time) bool {
	return !t.Expiry.IsZero() && !at.Before(t.Expiry)
}
