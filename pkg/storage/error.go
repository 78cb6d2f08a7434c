package storage

import (
	"errors"
	"strconv"
)

// ErrEmptyMemory is returned when saving a memory with blank content.
var ErrEmptyMemory = errors.New("memory content is empty")

// ErrNotFound is returned when a conversation doesn't exist in the store.
type ErrNotFound struct {
	Kind string
	ID   int64
}

func (e ErrNotFound) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "record"
	}
	if e.ID == 0 {
		return kind + " not found"
	}

	return kind + " not found: " + strconv.FormatInt(e.ID, 10)
}

// IsNotFound reports whether err is, or wraps, an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}
