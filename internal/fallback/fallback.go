// Package fallback implements the "try candidates in order until one works"
// pattern shared by identifier, ref and filename resolution.
package fallback

import (
	"context"
	"fmt"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
)

// Error lists why every candidate failed, in the order they were tried.
type Error struct {
	Stage    string // What was being resolved (e.g., "ref", "filename")
	Failures []errors.Failure
}

func (e *Error) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("%s: no candidates", e.Stage)
	}
	msg := fmt.Sprintf("%s: all %d candidates failed", e.Stage, len(e.Failures))
	for _, f := range e.Failures {
		msg += fmt.Sprintf("; %s: %v", f.Candidate, f.Err)
	}
	return msg
}

// AllNotFound reports whether every candidate failed with a not-found.
// An empty candidate list counts as not found.
func (e *Error) AllNotFound() bool {
	for _, f := range e.Failures {
		if !errors.IsNotFound(f.Err) {
			return false
		}
	}
	return true
}

// Unwrap exposes ErrNotFound when nothing but not-founds were seen, so callers
// can treat "nothing matched" as the normal fallback outcome. Otherwise only
// the other failures are exposed and the error never matches ErrNotFound.
func (e *Error) Unwrap() []error {
	if e.AllNotFound() {
		return []error{errors.ErrNotFound}
	}
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if !errors.IsNotFound(f.Err) {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// Option customizes First.
type Option func(*settings)

type settings struct {
	onFailure func(candidate string, err error)
}

// WithFailureHook is called for each failed candidate.
func WithFailureHook(fn func(candidate string, err error)) Option {
	return func(s *settings) {
		s.onFailure = fn
	}
}

// First calls fn for each candidate in order and returns the first success
// together with the candidate that produced it. Each candidate gets its own
// attempt; a failure only advances to the next one. Context cancellation stops
// the walk immediately.
func First[C any, T any](ctx context.Context, stage string, candidates []C, fn func(ctx context.Context, candidate C) (T, error), opts ...Option) (T, C, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	var zero T
	var zeroC C
	failures := make([]errors.Failure, 0, len(candidates))

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return zero, zeroC, err
		}
		result, err := fn(ctx, c)
		if err == nil {
			return result, c, nil
		}
		label := fmt.Sprint(c)
		failures = append(failures, errors.Failure{Candidate: label, Err: err})
		if s.onFailure != nil {
			s.onFailure(label, err)
		}
	}

	return zero, zeroC, &Error{Stage: stage, Failures: failures}
}

// Failures extracts the per-candidate failures from err, if it came from First.
func Failures(err error) []errors.Failure {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Failures
	}
	return nil
}
