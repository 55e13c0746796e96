package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnsupportedPair    = errors.New("unsupported pair")
	ErrInvalidObservation = errors.New("invalid observation")
	ErrInvalidRange       = errors.New("invalid range")
	ErrAllSourcesFailed   = errors.New("all rate sources failed")
)

// UpstreamError reports a failed provider call: either a non-2xx HTTP status
// or a non-zero status code inside the provider envelope.
type UpstreamError struct {
	Series     string
	HTTPStatus int
	Code       int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.HTTPStatus != 0:
		return fmt.Sprintf("upstream %s: http status %d", e.Series, e.HTTPStatus)
	case e.Err != nil:
		return fmt.Sprintf("upstream %s: %v", e.Series, e.Err)
	default:
		return fmt.Sprintf("upstream %s: code %d %s", e.Series, e.Code, e.Message)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// RepositoryError wraps a storage failure with the operation that caused it.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string { return "repository " + e.Op + ": " + e.Err.Error() }

func (e *RepositoryError) Unwrap() error { return e.Err }

// RetriesExhaustedError is the terminal failure of a scheduled run.
type RetriesExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("sync failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Err }
