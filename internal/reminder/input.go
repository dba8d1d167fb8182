package reminder

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// dueDateLayouts are the ISO-8601 forms accepted for due_date, most precise first.
var dueDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDueDate parses an ISO-8601 timestamp or calendar date. Values without
// an offset are read as UTC.
func ParseDueDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dueDateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("due_date %q is not an ISO-8601 date", value)
}

// UnmarshalJSON accepts due_date as a full timestamp or a date such as "2030-01-01".
func (in *Input) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		DueDate     *string `json:"due_date"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	in.Title = raw.Title
	in.Description = raw.Description
	in.DueDate = nil
	if raw.DueDate != nil && strings.TrimSpace(*raw.DueDate) != "" {
		due, err := ParseDueDate(*raw.DueDate)
		if err != nil {
			return err
		}
		in.DueDate = &due
	}
	return nil
}
