package appointments

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/Lllllllleong/queuedesk/internal/models"
)

var (
	utc  = time.UTC
	noon = time.Date(2026, 3, 14, 12, 0, 0, 0, utc)
)

func appt(name string, scheduled time.Time, slot string, queue int64) models.RawDocument {
	raw, _ := json.Marshal(map[string]string{"name": name})
	return models.RawDocument{
		Name: name,
		Raw:  raw,
		Appointment: models.Appointment{
			ScheduledDate: scheduled,
			Scheduled:     true,
			TimeSlot:      slot,
			QueueNumber:   queue,
		},
	}
}

func undated(name, slot string) models.RawDocument {
	return models.RawDocument{Name: name, Appointment: models.Appointment{TimeSlot: slot}}
}

func names(docs []models.RawDocument) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Name
	}
	return out
}

func equalNames(t *testing.T, got []models.RawDocument, want ...string) {
	t.Helper()
	g := names(got)
	if fmt.Sprint(g) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", g, want)
	}
}

func TestSelect_Scenario(t *testing.T) {
	yesterday := noon.AddDate(0, 0, -1)
	docs := []models.RawDocument{
		appt("a", noon, "09:00", 3),
		appt("b", noon, "09:00", 1),
		appt("c", yesterday, "08:00", 1),
	}

	got := Select(docs, 5, noon, utc)
	equalNames(t, got, "b", "a")
	if got[0].Appointment.QueueNumber != 1 || got[1].Appointment.QueueNumber != 3 {
		t.Errorf("unexpected queue order: %d, %d", got[0].Appointment.QueueNumber, got[1].Appointment.QueueNumber)
	}
}

func TestFilterToday(t *testing.T) {
	tests := []struct {
		name string
		docs []models.RawDocument
		want []string
	}{
		{
			name: "keeps any time of day",
			docs: []models.RawDocument{
				appt("start", time.Date(2026, 3, 14, 0, 0, 0, 0, utc), "", 0),
				appt("end", time.Date(2026, 3, 14, 23, 59, 59, 999, utc), "", 0),
			},
			want: []string{"start", "end"},
		},
		{
			name: "drops other days",
			docs: []models.RawDocument{
				appt("yesterday", noon.AddDate(0, 0, -1), "", 0),
				appt("tomorrow", noon.AddDate(0, 0, 1), "", 0),
				appt("last-year", noon.AddDate(-1, 0, 0), "", 0),
			},
			want: []string{},
		},
		{
			name: "drops documents without a scheduled date",
			docs: []models.RawDocument{
				undated("no-date", "08:00"),
				appt("today", noon, "09:00", 1),
			},
			want: []string{"today"},
		},
		{
			name: "empty input",
			docs: nil,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			equalNames(t, FilterToday(tt.docs, noon, utc), tt.want...)
		})
	}
}

func TestFilterToday_ComparesInConfiguredZone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	// 20:00 UTC on the 13th is 05:00 on the 14th in Tokyo.
	late := appt("late", time.Date(2026, 3, 13, 20, 0, 0, 0, utc), "", 0)
	now := time.Date(2026, 3, 14, 1, 0, 0, 0, utc)

	equalNames(t, FilterToday([]models.RawDocument{late}, now, tokyo), "late")
	equalNames(t, FilterToday([]models.RawDocument{late}, now, utc))
}

func TestSort_StableForEqualKeys(t *testing.T) {
	docs := []models.RawDocument{
		appt("first", noon, "10:00", 2),
		appt("second", noon, "10:00", 2),
		appt("early", noon, "09:00", 5),
		appt("third", noon, "10:00", 2),
		appt("no-slot", noon, "", 7),
		appt("no-slot-low", noon, "", 0),
	}

	equalNames(t, Sort(docs), "no-slot-low", "no-slot", "early", "first", "second", "third")
}

func TestSort_DoesNotMutateInput(t *testing.T) {
	docs := []models.RawDocument{
		appt("b", noon, "10:00", 1),
		appt("a", noon, "09:00", 1),
	}
	before := string(docs[0].Raw)

	_ = Sort(docs)

	equalNames(t, docs, "b", "a")
	if string(docs[0].Raw) != before {
		t.Errorf("raw payload changed: %s", docs[0].Raw)
	}
}

func TestSelect_Amount(t *testing.T) {
	docs := []models.RawDocument{
		appt("c", noon, "11:00", 1),
		appt("a", noon, "09:00", 1),
		appt("b", noon, "10:00", 1),
	}

	tests := []struct {
		name   string
		amount int
		want   []string
	}{
		{"zero yields empty", 0, []string{}},
		{"negative yields empty", -3, []string{}},
		{"truncates", 2, []string{"a", "b"}},
		{"exact", 3, []string{"a", "b", "c"}},
		{"no padding", 50, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Select(docs, tt.amount, noon, utc)
			if got == nil {
				t.Fatal("Select returned nil slice")
			}
			equalNames(t, got, tt.want...)
		})
	}
}

func TestSelect_EmptyCollection(t *testing.T) {
	got := Select([]models.RawDocument{}, DefaultAmount, noon, utc)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil result, got %#v", got)
	}
}

func TestSelect_ExcludesOtherDaysEvenWhenFirst(t *testing.T) {
	docs := []models.RawDocument{
		appt("old", noon.AddDate(0, 0, -2), "00:00", 0),
		appt("today", noon, "23:00", 99),
	}
	equalNames(t, Select(docs, 1, noon, utc), "today")
}

func TestLimit_DoesNotShareCapacity(t *testing.T) {
	docs := []models.RawDocument{appt("a", noon, "", 0), appt("b", noon, "", 0)}
	got := Limit(docs, 1)
	got = append(got, appt("x", noon, "", 0))
	equalNames(t, docs, "a", "b")
}
