package memory

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
		ID:   id,
		Name: "prompt " + id,
		Instance: domain.PromptInstance{
			ID: 1,
			Model: domain.ModelConfig{
				Provider:  domain.ProviderOpenAI,
				ModelName: "gpt-4o",
			},
			Template: domain.ChatTemplate{
				Messages: []domain.Message{
					{ID: 1, Role: domain.RoleUser, Content: "hello"},
				},
			},
		},
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}
}

func TestMemoryStore_SaveAndGet(t *testing.T) {
	store := New()
	now := time.Now()

	if err := store.SavePrompt(context.Background(), testPrompt("p1", now)); err != nil {
		t.Fatalf("SavePrompt() error = %v", err)
	}

	retrieved, err := store.GetPrompt(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetPrompt() error = %v", err)
	}

	if retrieved.Name != "prompt p1" {
		t.Errorf("Name = %v, want prompt p1", retrieved.Name)
	}
	if retrieved.Instance.Model.ModelName != "gpt-4o" {
		t.Errorf("ModelName = %v, want gpt-4o", retrieved.Instance.Model.ModelName)
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := New()

	_, err := store.GetPrompt(context.Background(), "absent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetPrompt() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_ListOrdering(t *testing.T) {
	store := New()
	now := time.Now()

	for i, id := range []string{"old", "mid", "new"} {
		prompt := testPrompt(id, now.Add(time.Duration(i)*time.Minute))
		if err := store.SavePrompt(context.Background(), prompt); err != nil {
			t.Fatalf("SavePrompt(%s) error = %v", id, err)
		}
	}

	prompts, err := store.ListPrompts(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListPrompts() error = %v", err)
	}

	if len(prompts) != 2 {
		t.Fatalf("ListPrompts() returned %d prompts, want 2", len(prompts))
	}
	if prompts[0].ID != "new" || prompts[1].ID != "mid" {
		t.Errorf("ListPrompts() order = [%s, %s], want [new, mid]", prompts[0].ID, prompts[1].ID)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := New()

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

func TestMemoryStore_DeleteOlderThan(t *testing.T) {
	store := New()
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

	if _, err := store.GetPrompt(context.Background(), "fresh"); err != nil {
		t.Errorf("GetPrompt(fresh) error = %v, want nil", err)
	}
	if _, err := store.GetPrompt(context.Background(), "stale"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetPrompt(stale) error = %v, want ErrNotFound", err)
	}
}
