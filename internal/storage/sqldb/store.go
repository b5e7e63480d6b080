// Package sqldb is the SQL-backed prompt store.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tracelens/playground/internal/domain"
	"github.com/tracelens/playground/internal/storage"
	"github.com/tracelens/playground/internal/storage/dialect"
)

// Store is a SQL implementation of PromptStore supporting multiple
// database dialects.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect
}

var _ storage.PromptStore = (*Store)(nil)

// Config holds database connection configuration
type Config struct {
	Driver string // sqlite, postgres
	DSN    string
}

// New creates a new SQL store with the specified configuration.
func New(cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, stmt := range d.PragmaStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db, dialect: d}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLite creates a SQLite-backed store at the given path.
func NewSQLite(dbPath string) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: dbPath})
}

// DB returns the underlying sqlx.DB for advanced operations
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) initSchema() error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS prompts (
id %s PRIMARY KEY,
name %s NOT NULL,
description %s,
instance %s NOT NULL,
created_at %s NOT NULL,
updated_at %s NOT NULL
)`, s.dialect.TextType(), s.dialect.TextType(), s.dialect.TextType(),
			s.dialect.TextType(), s.dialect.TimestampType(), s.dialect.TimestampType()),
		`CREATE INDEX IF NOT EXISTS idx_prompts_updated ON prompts(updated_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(s.dialect.Rebind(stmt)); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

type promptRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Instance    string    `db:"instance"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r *promptRow) toPrompt() (*storage.SavedPrompt, error) {
	var inst domain.PromptInstance
	if err := json.Unmarshal([]byte(r.Instance), &inst); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompt instance: %w", err)
	}
	return &storage.SavedPrompt{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Instance:    inst,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

// SavePrompt inserts or updates a prompt by id.
func (s *Store) SavePrompt(ctx context.Context, prompt *storage.SavedPrompt) error {
	instJSON, err := json.Marshal(prompt.Instance)
	if err != nil {
		return fmt.Errorf("failed to marshal prompt instance: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO prompts (id, name, description, instance, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
%s`, s.dialect.UpsertClause("id", []string{"name", "description", "instance", "updated_at"}))

	_, err = s.db.ExecContext(ctx, s.dialect.Rebind(query),
		prompt.ID, prompt.Name, prompt.Description, string(instJSON),
		prompt.CreatedAt, prompt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save prompt: %w", err)
	}
	return nil
}

// GetPrompt retrieves a prompt by id.
func (s *Store) GetPrompt(ctx context.Context, id string) (*storage.SavedPrompt, error) {
	var row promptRow
	query := s.dialect.Rebind(`SELECT id, name, description, instance, created_at, updated_at FROM prompts WHERE id = ?`)
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}
	return row.toPrompt()
}

// ListPrompts returns prompts ordered by most recently updated.
func (s *Store) ListPrompts(ctx context.Context, limit int) ([]*storage.SavedPrompt, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []promptRow
	query := s.dialect.Rebind(`SELECT id, name, description, instance, created_at, updated_at FROM prompts ORDER BY updated_at DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}

	prompts := make([]*storage.SavedPrompt, 0, len(rows))
	for i := range rows {
		prompt, err := rows[i].toPrompt()
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, prompt)
	}
	return prompts, nil
}

// DeletePrompt removes a prompt by id.
func (s *Store) DeletePrompt(ctx context.Context, id string) error {
	query := s.dialect.Rebind(`DELETE FROM prompts WHERE id = ?`)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteOlderThan removes prompts not updated since cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := s.dialect.Rebind(`DELETE FROM prompts WHERE updated_at < ?`)
	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep prompts: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check sweep result: %w", err)
	}
	return affected, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
