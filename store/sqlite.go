package store

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/mattn/go-sqlite3"

	"reminder-server/models"
)

// SQLiteStore keeps reminders in a single sqlite table. fire_at holds
// epoch milliseconds, the same encoding as the file records.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers; one connection avoids "database is locked".
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reminders (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		fire_at INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_reminders_name ON reminders(name);
	CREATE INDEX IF NOT EXISTS idx_reminders_fire_at ON reminders(fire_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, r models.Reminder) (models.Reminder, error) {
	rec := toRecord(r)
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reminders (id, name, fire_at)
		VALUES (?, ?, ?)
	`, rec.ID, rec.Name, rec.Date)

	if err != nil {
		return models.Reminder{}, err
	}
	return r, nil
}

func (s *SQLiteStore) FindByID(ctx context.Context, id string) (models.Reminder, error) {
	var rec record
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, fire_at FROM reminders WHERE id = ?
	`, id).Scan(&rec.ID, &rec.Name, &rec.Date)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Reminder{}, ErrNotFound
	}
	if err != nil {
		return models.Reminder{}, err
	}
	return rec.reminder()
}

func (s *SQLiteStore) FindByName(ctx context.Context, name string) ([]models.Reminder, error) {
	return s.query(ctx, `
		SELECT id, name, fire_at
		FROM reminders
		WHERE name = ?
		ORDER BY fire_at ASC, id ASC
	`, name)
}

func (s *SQLiteStore) FindAll(ctx context.Context) ([]models.Reminder, error) {
	return s.query(ctx, `
		SELECT id, name, fire_at
		FROM reminders
		ORDER BY fire_at ASC, id ASC
	`)
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]models.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reminders := []models.Reminder{}
	for rows.Next() {
		var rec record
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Date); err != nil {
			return nil, err
		}
		r, err := rec.reminder()
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM reminders WHERE id = ?", id)
	return err
}

func (s *SQLiteStore) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM reminders")
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
