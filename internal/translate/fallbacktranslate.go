package translate

import (
	"context"

	"github.com/MrWong99/dubctl/internal/resilience"
)

// FallbackTranslator chains translation backends: the primary is tried
// first, and when it fails (or its circuit breaker is open after repeated
// failures) the next backend takes over for that utterance. Useful when a
// cheap HTTP service fronts a slower LLM backend, or vice versa.
type FallbackTranslator struct {
	group *resilience.FallbackGroup[Translator]
}

var _ Translator = (*FallbackTranslator)(nil)

// NewFallbackTranslator builds the chain with primary as the first entry.
func NewFallbackTranslator(primary Translator, primaryName string, cfg resilience.FallbackConfig) *FallbackTranslator {
	return &FallbackTranslator{group: resilience.NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback appends another backend, tried after all earlier entries.
func (f *FallbackTranslator) AddFallback(name string, t Translator) {
	f.group.AddFallback(name, t)
}

// Translate tries each backend in order until one returns a translation.
func (f *FallbackTranslator) Translate(ctx context.Context, req Request) (string, error) {
	return resilience.ExecuteWithResult(f.group, func(t Translator) (string, error) {
		return t.Translate(ctx, req)
	})
}
