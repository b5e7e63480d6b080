package sqldb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tracelens/playground/internal/domain"
	"github.com/tracelens/playground/internal/storage"
)

func testPrompt(id string, updatedAt time.Time) *storage.SavedPrompt {
	return &storage.SavedPrompt{
		ID:          id,
		Name:        "prompt " + id,
		Description: "test prompt",
		Instance: domain.PromptInstance{
			ID: 1,
			Model: domain.ModelConfig{
				Provider:  domain.ProviderAnthropic,
				ModelName: "claude-3-5-sonnet-20241022",
			},
			Template: domain.ChatTemplate{
				Messages: []domain.Message{
					{ID: 1, Role: domain.RoleSystem, Content: "You are a helpful assistant."},
					{ID: 2, Role: domain.RoleUser, Content: "hello"},
				},
			},
		},
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}
}

func TestSQLDBStore_SaveAndGet(t *testing.T) {
	store, err := NewSQLite("file:prompts1?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer store.Close()

	if err := store.SavePrompt(context.Background(), testPrompt("p1", time.Now())); err != nil {
		t.Fatalf("SavePrompt() error = %v", err)
	}

	retrieved, err := store.GetPrompt(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetPrompt() error = %v", err)
	}

	if retrieved.Name != "prompt p1" {
		t.Errorf("Name = %v, want prompt p1", retrieved.Name)
	}
	if retrieved.Instance.Model.Provider != domain.ProviderAnthropic {
		t.Errorf("Provider = %v, want anthropic", retrieved.Instance.Model.Provider)
	}
	if len(retrieved.Instance.Template.Messages) != 2 {
		t.Errorf("Messages = %d, want 2", len(retrieved.Instance.Template.Messages))
	}
}

func TestSQLDBStore_SaveUpserts(t *testing.T) {
	store, err := NewSQLite("file:prompts2?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer store.Close()

	now := time.Now()
	prompt := testPrompt("p1", now)
	if err := store.SavePrompt(context.Background(), prompt); err != nil {
		t.Fatalf("SavePrompt() error = %v", err)
	}

	prompt.Name = "renamed"
	prompt.UpdatedAt = now.Add(time.Minute)
	if err := store.SavePrompt(context.Background(), prompt); err != nil {
		t.Fatalf("SavePrompt() second call error = %v", err)
	}

	retrieved, err := store.GetPrompt(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetPrompt() error = %v", err)
	}
	if retrieved.Name != "renamed" {
		t.Errorf("Name = %v, want renamed", retrieved.Name)
	}

	prompts, err := store.ListPrompts(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListPrompts() error = %v", err)
	}
	if len(prompts) != 1 {
		t.Errorf("ListPrompts() returned %d prompts, want 1", len(prompts))
	}
}

func TestSQLDBStore_GetMissing(t *testing.T) {
	store, err := NewSQLite("file:prompts3?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer store.Close()

	_, err = store.GetPrompt(context.Background(), "absent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetPrompt() error = %v, want ErrNotFound", err)
	}
}

func TestSQLDBStore_Delete(t *testing.T) {
	store, err := NewSQLite("file:prompts4?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer store.Close()

	if err := store.SavePrompt(context.Background(), testPrompt("p1", time.Now())); err != nil {
		t.Fatalf("SavePrompt() error = %v", err)
	}

	if err := store.DeletePrompt(context.Background(), "p1"); err != nil {
		t.Fatalf("DeletePrompt() error = %v", err)
	}
	if err := store.DeletePrompt(context.Background(), "p1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("DeletePrompt() second call error = %v, want ErrNotFound", err)
	}
}

func TestSQLDBStore_DeleteOlderThan(t *testing.T) {
	store, err := NewSQLite("file:prompts5?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer store.Close()

	now := time.Now()
	if err := store.SavePrompt(context.Background(), testPrompt("stale", now.Add(-48*time.Hour))); err != nil {
		t.Fatalf("SavePrompt() error = %v", err)
	}
	if err := store.SavePrompt(context.Background(), testPrompt("fresh", now)); err != nil {
		t.Fatalf("SavePrompt() error = %v", err)
	}

	removed, err := store.DeleteOlderThan(context.Background(), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("DeleteOlderThan() removed = %d, want 1", removed)
	}

	if _, err := store.GetPrompt(context.Background(), "stale"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetPrompt(stale) error = %v, want ErrNotFound", err)
	}
}
