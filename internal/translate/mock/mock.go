// Package mock provides a scriptable [translate.Translator] for tests.
package mock

import (
	"context"
	"fmt"

	"github.com/MrWong99/dubctl/internal/translate"
)

// Translator echoes back a deterministic, inspectable transformation of the
// input rather than a canned constant, so tests can assert glossary/hint
// propagation reached the backend.
type Translator struct {
	// Responses, if set, is consulted by UttID before the default echo
	// behavior; lets a test fix specific per-utterance outputs.
	Responses map[string]string

	// Err, if set, is returned by every call instead of a translation.
	Err error

	// Calls records every request seen, in order, for assertions.
	Calls []translate.Request
}

var _ translate.Translator = (*Translator)(nil)

func (m *Translator) Translate(ctx context.Context, req translate.Request) (string, error) {
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return "", m.Err
	}
	if resp, ok := m.Responses[req.UttID]; ok {
		return resp, nil
	}
	return fmt.Sprintf("[%s->%s] %s", req.SourceLang, req.TargetLang, req.SourceText), nil
}
