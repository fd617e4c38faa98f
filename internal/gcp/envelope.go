package gcp

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/Lllllllleong/queuedesk/internal/models"
)

// Field names of a queue document.
const (
	FieldScheduledDate = "scheduled_date"
	FieldTimeSlot      = "time_slot"
	FieldQueueNumber   = "queue_number"
)

// documentEnvelope is the part of a Firestore v1 REST document we read. Field
// values stay raw so one odd field cannot fail the whole document.
type documentEnvelope struct {
	Name   string                     `json:"name"`
	Fields map[string]json.RawMessage `json:"fields"`
}

type timestampValue struct {
	TimestampValue *string `json:"timestampValue"`
}

type stringValue struct {
	StringValue *string `json:"stringValue"`
}

type integerValue struct {
	IntegerValue json.RawMessage `json:"integerValue"`
}

// DecodeDocument reads a REST document and its typed-value envelope into a
// RawDocument. Only a body that is not a JSON object is an error; missing or
// malformed scheduling fields leave the zero Appointment values in place.
func DecodeDocument(raw []byte) (models.RawDocument, error) {
	const op = "decode_document"

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return models.RawDocument{}, NewError(KindDecode, op, "document is not a JSON object")
	}

	var env documentEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return models.RawDocument{}, WrapError(KindDecode, op, "error decoding document", err)
	}

	doc := models.RawDocument{
		Name: env.Name,
		Raw:  append(json.RawMessage(nil), trimmed...),
	}
	if ts, ok := decodeTimestamp(env.Fields[FieldScheduledDate]); ok {
		doc.Appointment.ScheduledDate = ts
		doc.Appointment.Scheduled = true
	}
	doc.Appointment.TimeSlot = decodeString(env.Fields[FieldTimeSlot])
	doc.Appointment.QueueNumber = decodeInteger(env.Fields[FieldQueueNumber])
	return doc, nil
}

func decodeTimestamp(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}
	var v timestampValue
	if err := json.Unmarshal(raw, &v); err != nil || v.TimestampValue == nil {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, *v.TimestampValue)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func decodeString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v stringValue
	if err := json.Unmarshal(raw, &v); err != nil || v.StringValue == nil {
		return ""
	}
	return *v.StringValue
}

// decodeInteger accepts the int64-as-string wire form and a bare JSON number.
func decodeInteger(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var v integerValue
	if err := json.Unmarshal(raw, &v); err != nil || len(v.IntegerValue) == 0 {
		return 0
	}

	var s string
	if err := json.Unmarshal(v.IntegerValue, &s); err == nil {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0
		}
		return n
	}

	var n int64
	if err := json.Unmarshal(v.IntegerValue, &n); err != nil {
		return 0
	}
	return n
}
