package source

import (
	"errors"
	"fmt"
)

// Sentinel errors for adapter fetch failures.
var (
	ErrUpstream         = errors.New("upstream error")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrTimeout          = errors.New("upstream timeout")
)

// FetchError describes a failed adapter call. It wraps one of the sentinel
// errors so callers can classify it with errors.Is.
type FetchError struct {
	Source string
	Op     string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("source %s: %s: %v", e.Source, e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Reason returns a short label for metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed"
	default:
		return "upstream"
	}
}

func fetchErr(source, op string, err error) *FetchError {
	return &FetchError{Source: source, Op: op, Err: err}
}
