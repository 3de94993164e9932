package repository

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateRecord is returned when a record with the same key already exists.
	ErrDuplicateRecord = errors.New("record already exists")
	// ErrConflict is returned when a record is no longer in the state a write expects,
	// for example a notification cancelled or sent by someone else.
	ErrConflict = errors.New("record was changed concurrently")
)
