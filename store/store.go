// Package store holds the reminder repositories. The dispatcher depends
// only on Repository; which backend serves it is a deployment choice.
package store

import (
	"context"
	"errors"

	"reminder-server/models"
)

var ErrNotFound = errors.New("reminder not found")

type Repository interface {
	// Save inserts or overwrites the reminder with r.ID.
	Save(ctx context.Context, r models.Reminder) (models.Reminder, error)
	// FindByID returns ErrNotFound when no reminder has that id.
	FindByID(ctx context.Context, id string) (models.Reminder, error)
	FindByName(ctx context.Context, name string) ([]models.Reminder, error)
	FindAll(ctx context.Context) ([]models.Reminder, error)
	// Delete is a no-op for an absent id.
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
	Close() error
}
