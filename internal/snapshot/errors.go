package snapshot

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Load when no snapshot file exists.
	ErrNotFound = errors.New("snapshot: not found")

	// ErrCorrupt is returned by Load when the file cannot be decompressed or decoded.
	ErrCorrupt = errors.New("snapshot: corrupt")

	// ErrMismatch is returned by Load when the file is readable but does not
	// describe the expected collection.
	ErrMismatch = errors.New("snapshot: mismatch")

	// ErrIO is returned when the file system fails during a save, load or delete.
	ErrIO = errors.New("snapshot: i/o failure")
)

// MismatchError describes why a decoded snapshot was rejected.
type MismatchError struct {
	Field string
	Have  any
	Want  any
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("snapshot: %s mismatch: have %v, want %v", e.Field, e.Have, e.Want)
}

// Is reports whether target is ErrMismatch.
func (e *MismatchError) Is(target error) bool {
	return target == ErrMismatch
}
