// Package sinkerr classifies sink-writer failures so the retry policy in
// internal/sink can decide whether to retry, per spec §7's error-kind table.
package sinkerr

import "github.com/cockroachdb/errors"

// Transient wraps an error that a writer believes is a transport-level
// hiccup (connection reset, broker unavailable, buffer momentarily full):
// retryable per the configured retry policy.
type Transient struct {
	cause error
}

// NewTransient wraps err as a retryable transport error.
func NewTransient(err error) error {
	if err == nil {
		return nil
	}
	return &Transient{cause: err}
}

func (e *Transient) Error() string { return e.cause.Error() }
func (e *Transient) Unwrap() error { return e.cause }

// Fatal wraps an error that should never be retried (auth failure, unknown
// topic/database, malformed configuration discovered at connect time).
type Fatal struct {
	cause error
}

// NewFatal wraps err as a non-retryable transport error.
func NewFatal(err error) error {
	if err == nil {
		return nil
	}
	return &Fatal{cause: err}
}

func (e *Fatal) Error() string { return e.cause.Error() }
func (e *Fatal) Unwrap() error { return e.cause }

// IsTransient reports whether err (or something it wraps) was classified
// retryable by a sink writer.
func IsTransient(err error) bool {
	var t *Transient
	return errors.As(err, &t)
}

// IsFatal reports whether err (or something it wraps) was classified
// non-retryable by a sink writer.
func IsFatal(err error) bool {
	var f *Fatal
	return errors.As(err, &f)
}
