// Package provider routes replayed prompt instances to chat-completion
// backends.
package provider

import (
	"context"
	"sort"

	"github.com/tracelens/playground/internal/domain"
)

// Provider executes a composed prompt instance against one upstream API.
// Implementations receive an instance whose invocation parameters have
// already been reconciled against the model's supported definitions.
type Provider interface {
	Key() domain.ProviderKey

	// Complete runs the instance and returns the final message.
	Complete(ctx context.Context, inst *domain.PromptInstance) (*domain.CompletionResult, error)

	// Stream runs the instance and emits content deltas. The channel closes
	// when the upstream stream ends; in-stream failures arrive as events
	// with Err set.
	Stream(ctx context.Context, inst *domain.PromptInstance) (<-chan domain.CompletionEvent, error)
}

// Registry is a name-keyed provider collection.
type Registry struct {
	providers map[domain.ProviderKey]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[domain.ProviderKey]Provider)}
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider) {
	r.providers[p.Key()] = p
}

// Get returns the provider for a key.
func (r *Registry) Get(key domain.ProviderKey) (Provider, bool) {
	p, ok := r.providers[key]
	return p, ok
}

// Keys lists registered provider keys in sorted order.
func (r *Registry) Keys() []domain.ProviderKey {
	keys := make([]domain.ProviderKey, 0, len(r.providers))
	for k := range r.providers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
