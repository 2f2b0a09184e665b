package model

import (
	"github.com/pkg/errors"
)

// Error kinds. Every error returned by this module wraps exactly one of these
// so that callers can classify failures with errors.Is.
var (
	// ErrConfig is a fatal configuration problem (bad order, bad hierarchy,
	// running before parameters are defined, etc). Never retried.
	ErrConfig = errors.New("configuration error")

	// ErrSampling is a transient numerical failure while drawing a single
	// value (singular precision, non-finite distribution arguments). The Gibbs
	// engine retries the whole sweep step when it sees one of these.
	ErrSampling = errors.New("sampling failure")

	// ErrConvergence means the retry budget for a sweep step was exhausted.
	ErrConvergence = errors.New("convergence error")

	// ErrNotFitted is returned when output is requested before a completed run.
	ErrNotFitted = errors.New("not fitted")

	// ErrUnknownModel is returned by a registry lookup for an unregistered
	// name. It is also an ErrConfig.
	ErrUnknownModel = errors.WithMessage(ErrConfig, "unknown model")
)

// IsRetryable reports whether err is a transient sampling failure.
func IsRetryable(err error) bool {
	return err != nil && errors.Is(err, ErrSampling)
}
