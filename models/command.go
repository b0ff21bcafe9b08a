package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Inbound command types
const (
	CommandRegisterReminder   = "register-event-reminder"
	CommandListReminders      = "list-event-reminders"
	CommandUnregisterReminder = "unregister-event-reminder"
	CommandNow                = "now"
)

// maxEpochMillis is the largest distance from the epoch a client-side
// Date can represent (±100,000,000 days).
const maxEpochMillis = 8.64e15

var (
	minInstant = time.UnixMilli(-maxEpochMillis)
	maxInstant = time.UnixMilli(maxEpochMillis)
)

// ValidInstant reports whether t lies within the range ParseDate accepts.
// The zero time.Time is a valid instant in year 1.
func ValidInstant(t time.Time) bool {
	return !t.Before(minInstant) && !t.After(maxInstant)
}

// Command is one inbound websocket message. ID is a pointer so an
// explicit empty id can be told apart from an omitted one.
type Command struct {
	Type string          `json:"type"`
	ID   *string         `json:"id,omitempty"`
	Name string          `json:"name,omitempty"`
	Date json.RawMessage `json:"date,omitempty"`
}

// ParseCommand decodes a raw message. Anything that is not a JSON object
// carrying a non-empty string "type" is an ErrParse.
func ParseCommand(data []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, ErrParse
	}
	if strings.TrimSpace(cmd.Type) == "" {
		return nil, fmt.Errorf("%w: message type not specified", ErrParse)
	}
	return &cmd, nil
}

var dateLayouts = []struct {
	layout string
	loc    *time.Location
}{
	{time.RFC3339Nano, time.UTC},
	{"2006-01-02T15:04:05.999999999", time.Local},
	{"2006-01-02T15:04", time.Local},
	{"2006-01-02 15:04:05", time.Local},
	{"2006-01-02", time.UTC},
}

// ParseDate accepts an ISO-8601 string or a number of milliseconds since
// the epoch. Missing, unparseable and out-of-range values are ErrInvalidDate.
func ParseDate(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, fmt.Errorf("%w: date is required", ErrInvalidDate)
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, ErrInvalidDate
		}
		return parseDateString(s)
	}

	var ms float64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, ErrInvalidDate
	}
	if math.IsNaN(ms) || math.IsInf(ms, 0) || math.Abs(ms) > maxEpochMillis {
		return time.Time{}, ErrInvalidDate
	}
	return time.UnixMilli(int64(math.Trunc(ms))), nil
}

func parseDateString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, l := range dateLayouts {
		t, err := time.ParseInLocation(l.layout, s, l.loc)
		if err != nil {
			continue
		}
		if !ValidInstant(t) {
			return time.Time{}, fmt.Errorf("%w: %q is out of range", ErrInvalidDate, s)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}
