package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested main article does not exist.
	ErrNotFound = errors.New("article not found")

	// ErrUnsupportedCountry rejects country codes outside SupportedCountries.
	ErrUnsupportedCountry = errors.New("unsupported country")

	// ErrDegradedSignal marks an analysis failure that was replaced by a neutral score.
	// It is only used for logging and metrics and never leaves the engine.
	ErrDegradedSignal = errors.New("degraded analysis signal")
)

// StoreError reports that a durable collaborator could not be reached.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError wraps err unless it is nil.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
