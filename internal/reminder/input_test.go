package reminder

import (
	"encoding/json"
	"testing"
	"time"
)

func TestInputAcceptsISODates(t *testing.T) {
	cases := map[string]time.Time{
		`"2030-01-01"`:                time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		`"2030-01-01T17:30"`:          time.Date(2030, 1, 1, 17, 30, 0, 0, time.UTC),
		`"2030-01-01T17:30:00Z"`:      time.Date(2030, 1, 1, 17, 30, 0, 0, time.UTC),
		`"2030-01-01T17:30:00+02:00"`: time.Date(2030, 1, 1, 15, 30, 0, 0, time.UTC),
	}
	for raw, want := range cases {
		var in Input
		if err := json.Unmarshal([]byte(`{"title":"Pay rent","due_date":`+raw+`}`), &in); err != nil {
			t.Fatalf("%s: unmarshal: %v", raw, err)
		}
		if in.Title != "Pay rent" || in.DueDate == nil || !in.DueDate.Equal(want) {
			t.Fatalf("%s: got %+v, want due %v", raw, in, want)
		}
	}
}

func TestInputOptionalAndInvalidDueDate(t *testing.T) {
	for _, body := range []string{`{"title":"x"}`, `{"title":"x","due_date":null}`, `{"title":"x","due_date":""}`} {
		var in Input
		if err := json.Unmarshal([]byte(body), &in); err != nil {
			t.Fatalf("%s: unmarshal: %v", body, err)
		}
		if in.DueDate != nil {
			t.Fatalf("%s: expected no due date, got %v", body, in.DueDate)
		}
	}

	var in Input
	if err := json.Unmarshal([]byte(`{"title":"x","due_date":"next friday"}`), &in); err == nil {
		t.Fatalf("expected error for an unparsable due date")
	}
}
