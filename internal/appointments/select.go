// Package appointments turns a fetched queue collection into the list shown at
// the desk: today's appointments, ordered by time slot and queue number.
// Every function here is pure and leaves its input slice untouched.
package appointments

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/Lllllllleong/queuedesk/internal/models"
)

// DefaultAmount is used when a caller does not say how many documents it wants.
const DefaultAmount = 10

// Select filters docs to the calendar day of now in loc, sorts them and keeps the
// first amount. now is read once, so a call straddling midnight sees one day.
func Select(docs []models.RawDocument, amount int, now time.Time, loc *time.Location) []models.RawDocument {
	return Limit(Sort(FilterToday(docs, now, loc)), amount)
}

// FilterToday keeps documents whose scheduled date falls on the same calendar day
// as now, both taken in loc. A nil loc means time.Local. Documents without a
// valid scheduled date are dropped.
func FilterToday(docs []models.RawDocument, now time.Time, loc *time.Location) []models.RawDocument {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := now.In(loc).Date()

	out := make([]models.RawDocument, 0, len(docs))
	for _, doc := range docs {
		if !doc.Appointment.Scheduled {
			continue
		}
		dy, dm, dd := doc.Appointment.ScheduledDate.In(loc).Date()
		if dy == y && dm == m && dd == d {
			out = append(out, doc)
		}
	}
	return out
}

// Sort returns a copy of docs ordered by time slot, then queue number. Ties keep
// their original order.
func Sort(docs []models.RawDocument) []models.RawDocument {
	out := slices.Clone(docs)
	slices.SortStableFunc(out, compare)
	return out
}

func compare(a, b models.RawDocument) int {
	if c := strings.Compare(a.Appointment.TimeSlot, b.Appointment.TimeSlot); c != 0 {
		return c
	}
	return cmp.Compare(a.Appointment.QueueNumber, b.Appointment.QueueNumber)
}

// Limit returns at most amount documents, never padding. A non-positive amount
// yields an empty, non-nil slice.
func Limit(docs []models.RawDocument, amount int) []models.RawDocument {
	if amount <= 0 || len(docs) == 0 {
		return []models.RawDocument{}
	}
	if amount >= len(docs) {
		return docs[:len(docs):len(docs)]
	}
	return docs[:amount:amount]
}
