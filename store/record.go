package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"reminder-server/models"
)

// record is the persisted shape of a reminder: the fire instant is kept
// as epoch milliseconds.
type record struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Date int64  `json:"date"`
}

func toRecord(r models.Reminder) record {
	return record{ID: r.ID, Name: r.Name, Date: r.FireAt.UnixMilli()}
}

func (rec record) reminder() (models.Reminder, error) {
	if rec.ID == "" || rec.Name == "" {
		return models.Reminder{}, fmt.Errorf("corrupt reminder record %q: id and name are required", rec.ID)
	}
	return models.Reminder{ID: rec.ID, Name: rec.Name, FireAt: time.UnixMilli(rec.Date)}, nil
}

func encodeRecord(r models.Reminder) ([]byte, error) {
	return json.Marshal(toRecord(r))
}

func decodeRecord(data []byte) (models.Reminder, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.Reminder{}, fmt.Errorf("decode reminder record: %w", err)
	}
	return rec.reminder()
}

func filterByName(all []models.Reminder, name string) []models.Reminder {
	out := []models.Reminder{}
	for _, r := range all {
		if r.Name == name {
			out = append(out, r)
		}
	}
	return out
}

// sortReminders orders by fire time, then id.
func sortReminders(rs []models.Reminder) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].FireAt.Equal(rs[j].FireAt) {
			return rs[i].ID < rs[j].ID
		}
		return rs[i].FireAt.Before(rs[j].FireAt)
	})
}
