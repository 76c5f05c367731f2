package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("app not found")
	ErrNoReviews     = errors.New("no reviews found")
	ErrInvalidAppID  = errors.New("invalid app id")
	ErrUnknownSource = errors.New("unknown source")
	ErrUnknownFormat = errors.New("unknown export format")
)

// TransportError is a network or HTTP failure on one request of a source path.
type TransportError struct {
	Source Source
	Op     string // e.g. "page 3"
	Status int    // 0 when no response was received
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Source, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Source, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
