// Package storage defines persistence for saved playground prompts.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/tracelens/playground/internal/domain"
)

// ErrNotFound is returned when a prompt id does not exist.
var ErrNotFound = errors.New("prompt not found")

// SavedPrompt is a prompt instance persisted for later replay.
type SavedPrompt struct {
	ID          string                `json:"id" db:"id"`
	Name        string                `json:"name" db:"name"`
	Description string                `json:"description,omitempty" db:"description"`
	Instance    domain.PromptInstance `json:"instance" db:"-"`
	CreatedAt   time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at" db:"updated_at"`
}

// PromptStore persists saved prompts.
type PromptStore interface {
	// SavePrompt inserts or updates a prompt by id.
	SavePrompt(ctx context.Context, prompt *SavedPrompt) error

	// GetPrompt retrieves a prompt by id. Returns ErrNotFound when absent.
	GetPrompt(ctx context.Context, id string) (*SavedPrompt, error)

	// ListPrompts returns prompts ordered by most recently updated.
	ListPrompts(ctx context.Context, limit int) ([]*SavedPrompt, error)

	// DeletePrompt removes a prompt by id. Returns ErrNotFound when absent.
	DeletePrompt(ctx context.Context, id string) error

	// DeleteOlderThan removes prompts not updated since cutoff and reports
	// how many were removed. The retention sweeper calls this.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases store resources.
	Close() error
}
