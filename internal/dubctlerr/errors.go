// Package dubctlerr defines the error taxonomy used across the dubbing
// pipeline: config errors, input errors, transient external
// errors, and permanent external errors. Every error names the phase and
// artifact key it concerns, so a user-visible failure always answers "which
// phase, doing what, to which artifact".
package dubctlerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of the retry policy and the
// phase runner's failure handling.
type Kind string

const (
	// KindConfig is fatal before any phase starts: missing credentials,
	// unresolvable paths, malformed glossary.
	KindConfig Kind = "config"

	// KindInput is fatal for the consuming phase, not retried: an
	// authoritative file failed schema validation.
	KindInput Kind = "input"

	// KindTransient is retried with bounded exponential backoff, then
	// fatal for the phase: network failure, 5xx, rate limit, poll timeout.
	KindTransient Kind = "transient"

	// KindPermanent is fatal for the phase, never retried: a 4xx other
	// than rate-limit.
	KindPermanent Kind = "permanent"
)

// Error is a taxonomy-tagged pipeline error.
type Error struct {
	Kind     Kind
	Phase    string
	Artifact string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	if e.Artifact != "" {
		return fmt.Sprintf("phase %s: %s (artifact %s): %v", e.Phase, e.Op, e.Artifact, e.Err)
	}
	return fmt.Sprintf("phase %s: %s: %v", e.Phase, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config wraps err as a config-class [Error].
func Config(phase, op string, err error) *Error {
	return &Error{Kind: KindConfig, Phase: phase, Op: op, Err: err}
}

// Input wraps err as an input-class [Error] for the given artifact.
func Input(phase, artifact, op string, err error) *Error {
	return &Error{Kind: KindInput, Phase: phase, Artifact: artifact, Op: op, Err: err}
}

// Transient wraps err as a transient-class [Error].
func Transient(phase, op string, err error) *Error {
	return &Error{Kind: KindTransient, Phase: phase, Op: op, Err: err}
}

// Permanent wraps err as a permanent-class [Error].
func Permanent(phase, op string, err error) *Error {
	return &Error{Kind: KindPermanent, Phase: phase, Op: op, Err: err}
}

// Is reports whether err is a dubctlerr [Error] of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
