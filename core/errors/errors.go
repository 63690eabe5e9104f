// Package errors provides the error taxonomy shared by the resource resolver.
//
// Every typed error unwraps to one of the sentinels below so callers can branch
// with errors.Is without depending on the concrete type.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a repository, manifest, file or article is absent.
	// It is an expected outcome that lets callers move on to the next candidate.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrRateLimited indicates the remote service answered HTTP 429
	ErrRateLimited = errors.New("rate limited")
	// ErrTransient indicates a timeout, connection failure or 5xx response
	ErrTransient = errors.New("transient network failure")
	// ErrExhaustedRetries indicates every ref and every retry failed for one candidate
	ErrExhaustedRetries = errors.New("exhausted retries")
	// ErrInternal indicates an internal system error
	ErrInternal = errors.New("internal error")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
)

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "repository", "manifest", "file")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() []error {
	return withCause(ErrNotFound, e.Err)
}

// withCause keeps the sentinel matchable when an underlying error is attached.
func withCause(sentinel, cause error) []error {
	if cause == nil {
		return []error{sentinel}
	}
	return []error{sentinel, cause}
}

// RateLimitedError is returned for HTTP 429 responses.
type RateLimitedError struct {
	URL        string
	RetryAfter time.Duration // Parsed Retry-After header, zero when absent
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: %s (retry after %s)", e.URL, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited: %s", e.URL)
}

func (e *RateLimitedError) Unwrap() error {
	return ErrRateLimited
}

// TransientNetworkError wraps failures worth retrying: timeouts, refused
// connections and 5xx responses.
type TransientNetworkError struct {
	Op         string // Operation being performed (e.g., "get contents")
	URL        string
	StatusCode int // Zero when no response was received
	Err        error
}

func (e *TransientNetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: http %d", e.Op, e.URL, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s: transient failure", e.Op, e.URL)
}

func (e *TransientNetworkError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrTransient, e.Err}
	}
	return []error{ErrTransient}
}

// Failure records why one candidate (a ref, filename or identifier) failed.
type Failure struct {
	Candidate string
	Err       error
}

// ExhaustedRetriesError is returned once every candidate and every retry has
// failed for a single fetch.
type ExhaustedRetriesError struct {
	Resource string // Repository full name
	Path     string
	Failures []Failure
}

func (e *ExhaustedRetriesError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Candidate, f.Err))
	}
	return fmt.Sprintf("exhausted retries for %s/%s [%s]", e.Resource, e.Path, strings.Join(parts, "; "))
}

// AllNotFound reports whether every recorded failure was a not-found.
func (e *ExhaustedRetriesError) AllNotFound() bool {
	if len(e.Failures) == 0 {
		return false
	}
	for _, f := range e.Failures {
		if !errors.Is(f.Err, ErrNotFound) {
			return false
		}
	}
	return true
}

func (e *ExhaustedRetriesError) Unwrap() []error {
	if e.AllNotFound() {
		return []error{ErrExhaustedRetries, ErrNotFound}
	}
	return []error{ErrExhaustedRetries}
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() []error {
	return withCause(ErrInvalidInput, e.Err)
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "TSV", "manifest", "USX")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() []error {
	return withCause(ErrInvalidInput, e.Err)
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() []error {
	return withCause(ErrUnsupported, e.Err)
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable reports whether err describes a failure that a retry may fix.
// Not-found and parse failures are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrUnsupported) {
		return false
	}
	return true
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join wraps errors.Join for convenience
func Join(errs ...error) error {
	return errors.Join(errs...)
}
