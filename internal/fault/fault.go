// Package fault defines the error taxonomy shared by the RAG core.
// Every error that crosses a package boundary carries a Kind so callers can
// distinguish caller mistakes (validation), missing entities (not found),
// unusable configuration, and upstream backend failures (provider/embedding)
// without string matching. Errors compose with the standard errors package:
// wrap with fmt.Errorf("...: %w", err) and classify with KindOf.
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation and HTTP mapping.
type Kind int

const (
	// Internal is anything unanticipated. It is the zero value so an
	// unclassified error defaults to it.
	Internal Kind = iota

	// Validation is a malformed request or bad input — the caller's fault.
	Validation

	// NotFound is an unknown task, model, or profile. A missing vector
	// namespace is NOT this: empty namespaces query as empty, not as errors.
	NotFound

	// Configuration is an entry that exists but is unusable, e.g. a routing
	// table entry with no primary model set.
	Configuration

	// Provider is an upstream generation backend failure.
	Provider

	// Embedding is an embedding backend failure.
	Embedding
)

// String returns the snake_case name of the kind, used in logs and responses.
func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Configuration:
		return "configuration"
	case Provider:
		return "provider"
	case Embedding:
		return "embedding"
	default:
		return "internal"
	}
}

// Error is a classified error. It may wrap an underlying cause.
type Error struct {
	// Kind classifies the error.
	Kind Kind
	// Msg is the human-readable description.
	Msg string
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

// Unwrap returns the underlying cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.Err }

// New constructs a classified error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error. Returns nil if err is nil.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of the outermost *Error in err's chain,
// or Internal if the chain contains no classified error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Internal
}

// Retryable reports whether the failure is worth retrying by the caller.
// Only upstream backend failures qualify; validation and configuration
// errors will fail identically on retry.
func Retryable(err error) bool {
	switch KindOf(err) {
	case Provider, Embedding:
		return true
	default:
		return false
	}
}

// HTTPStatus maps an error's kind to the status code the HTTP boundary
// should respond with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case Validation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Configuration:
		return http.StatusInternalServerError
	case Provider, Embedding:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
