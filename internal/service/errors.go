package service

import (
	"errors"
	"fmt"
)

var (
	// ErrWatchNotFound is returned when no watcher record exists for a job
	ErrWatchNotFound = errors.New("watch record not found")
	// ErrWatcherDisabled is returned when the server-side watcher is not running
	ErrWatcherDisabled = errors.New("server-side watcher is disabled")
)

// ValidationError is a client input problem detected before any I/O
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// StorageError is a failure of the asset store
type StorageError struct {
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to store asset %s: %v", e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
