// Package setting stores free-form configuration entries edited from the UI.
package setting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/baes-monitor/baes-core/internal/fault"
	"github.com/baes-monitor/baes-core/internal/infrastructure/database"
)

const (
	maxKeyLength   = 50
	maxValueLength = 255
)

var (
	// ErrNotFound is returned when no entry has the key or id.
	ErrNotFound = fmt.Errorf("setting: %w", fault.ErrNotFound)

	// ErrKeyExists is returned when creating an entry with a taken key.
	ErrKeyExists = fmt.Errorf("setting: key already exists: %w", fault.ErrConflict)
)

// Entry is one key/value pair.
type Entry struct {
	ID        int64     `json:"id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists entries.
type Store struct {
	db *sql.DB
}

// NewStore returns a Store on db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const columns = `id, key, value, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var e Entry
	var createdAt, updatedAt string
	if err := s.Scan(&e.ID, &e.Key, &e.Value, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.CreatedAt = database.ParseTime(createdAt)
	e.UpdatedAt = database.ParseTime(updatedAt)
	return &e, nil
}

func validate(key, value string) (string, error) {
	key = strings.TrimSpace(key)
	switch {
	case key == "":
		return "", fault.Validation("key is required")
	case len(key) > maxKeyLength:
		return "", fault.Validation("key exceeds %d characters", maxKeyLength)
	case value == "":
		return "", fault.Validation("value is required")
	case len(value) > maxValueLength:
		return "", fault.Validation("value exceeds %d characters", maxValueLength)
	}
	return key, nil
}

// Create inserts an entry.
func (s *Store) Create(ctx context.Context, key, value string) (*Entry, error) {
	key, err := validate(key, value)
	if err != nil {
		return nil, err
	}
	e, err := scanEntry(s.db.QueryRowContext(ctx,
		`INSERT INTO configs (key, value) VALUES (?, ?) RETURNING `+columns, key, value))
	if fault.IsUniqueViolation(err) {
		return nil, ErrKeyExists
	}
	if err != nil {
		return nil, fmt.Errorf("creating setting %q: %w", key, fault.FromSQL(err))
	}
	return e, nil
}

// Get returns the entry with id.
func (s *Store) Get(ctx context.Context, id int64) (*Entry, error) {
	return s.getWhere(ctx, `id = ?`, id)
}

// GetByKey returns the entry with key.
func (s *Store) GetByKey(ctx context.Context, key string) (*Entry, error) {
	return s.getWhere(ctx, `key = ?`, key)
}

func (s *Store) getWhere(ctx context.Context, where string, arg any) (*Entry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM configs WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting setting: %w", err)
	}
	return e, nil
}

// List returns every entry ordered by key.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM configs ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("listing settings: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating settings: %w", err)
	}
	return entries, nil
}

// Update replaces key and value of the entry with id.
func (s *Store) Update(ctx context.Context, id int64, key, value string) (*Entry, error) {
	key, err := validate(key, value)
	if err != nil {
		return nil, err
	}
	e, err := scanEntry(s.db.QueryRowContext(ctx, `UPDATE configs SET key = ?, value = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ? RETURNING `+columns, key, value, id))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound
	case fault.IsUniqueViolation(err):
		return nil, ErrKeyExists
	case err != nil:
		return nil, fmt.Errorf("updating setting %d: %w", id, fault.FromSQL(err))
	}
	return e, nil
}

// Delete removes the entry with id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM configs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting setting %d: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
