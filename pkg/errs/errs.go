package errs

import (
	cr "github.com/cockroachdb/errors"
)

var (
	ErrNotFound          = cr.New("not found")
	ErrStoreUnavailable  = cr.New("store unavailable")
	ErrGroupConflict     = cr.New("group conflict")
	ErrInvalidTransition = cr.New("invalid status transition")
)

func New(msg string) error {
	return cr.New(msg)
}

func Newf(format string, args ...interface{}) error {
	return cr.Newf(format, args...)
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

func Mark(err error, markErr error) error {
	if err == nil {
		return markErr
	}
	return cr.Mark(err, markErr)
}

func Is(err, reference error) bool {
	return cr.Is(err, reference)
}

// Unavailable marks err as a transient store failure while keeping its
// message and stack.
func Unavailable(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Mark(cr.Wrap(err, msg), ErrStoreUnavailable)
}
