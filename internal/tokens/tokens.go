// Package tokens provides token counting for composed prompt instances.
//
// Counting prefers an exact tokenizer when one is known for the model and
// falls back to a character-based estimate otherwise.
package tokens

import (
	"github.com/tracelens/playground/internal/domain"
)

// Count is a token count for a prompt instance's input side.
type Count struct {
	Tokens    int  `json:"tokens"`
	Estimated bool `json:"estimated"`
}

// Counter counts tokens for models it recognizes.
type Counter interface {
	SupportsModel(model string) bool
	CountInstance(inst *domain.PromptInstance) (Count, error)
}

// Registry routes counting to the first counter that supports the model,
// falling back to an estimator.
type Registry struct {
	counters []Counter
	fallback Counter
}

// NewRegistry creates a registry with the estimator as fallback.
func NewRegistry() *Registry {
	return &Registry{fallback: NewEstimator()}
}

// Register adds a counter.
func (r *Registry) Register(counter Counter) {
	r.counters = append(r.counters, counter)
}

// Count counts the instance's input tokens. Errors from an exact counter
// degrade to the estimator rather than failing the request.
func (r *Registry) Count(inst *domain.PromptInstance) Count {
	for _, counter := range r.counters {
		if !counter.SupportsModel(inst.Model.ModelName) {
			continue
		}
		if c, err := counter.CountInstance(inst); err == nil {
			return c
		}
	}
	c, err := r.fallback.CountInstance(inst)
	if err != nil {
		return Count{Estimated: true}
	}
	return c
}

// Estimator approximates token counts from character length. Four
// characters per token is a reasonable average for most models.
type Estimator struct {
	CharsPerToken float64
}

// NewEstimator creates an estimator with the default ratio.
func NewEstimator() *Estimator {
	return &Estimator{CharsPerToken: 4.0}
}

// SupportsModel always returns true; the estimator is a universal fallback.
func (e *Estimator) SupportsModel(string) bool { return true }

// CountInstance estimates input tokens across template messages and tools.
func (e *Estimator) CountInstance(inst *domain.PromptInstance) (Count, error) {
	totalChars := 0
	for _, msg := range inst.Template.Messages {
		totalChars += len(msg.Role) + len(msg.Content) + 4
		for _, tc := range msg.ToolCalls {
			totalChars += len(tc.Payload)
		}
	}
	for _, tool := range inst.Tools {
		totalChars += len(tool.Definition)
	}
	return Count{Tokens: int(float64(totalChars) / e.CharsPerToken), Estimated: true}, nil
}
