package models

import (
	"encoding/json"
	"time"
)

// isoMillis matches the layout clients produce with Date.prototype.toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type Reminder struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	FireAt time.Time `json:"date"`
}

// reminderJSON is the wire shape of a Reminder in list replies.
type reminderJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Date string `json:"date"`
}

func (r Reminder) MarshalJSON() ([]byte, error) {
	return json.Marshal(reminderJSON{
		ID:   r.ID,
		Name: r.Name,
		Date: FormatTime(r.FireAt),
	})
}

func (r *Reminder) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID   string          `json:"id"`
		Name string          `json:"name"`
		Date json.RawMessage `json:"date"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fireAt, err := ParseDate(raw.Date)
	if err != nil {
		return err
	}
	*r = Reminder{ID: raw.ID, Name: raw.Name, FireAt: fireAt}
	return nil
}

// FormatTime renders t in UTC with millisecond precision.
func FormatTime(t time.Time) string {
	return t.UTC().Format(isoMillis)
}
