package logpipe

import (
	"errors"
)

var (
	// ErrNullArgument is returned when a required argument is nil
	ErrNullArgument = errors.New("logpipe: argument cannot be nil")
	// ErrAlreadyDisposed is returned by public operations called after Dispose
	ErrAlreadyDisposed = errors.New("logpipe: already disposed")
	// ErrOutOfRange is returned for non-positive intervals, budgets and capacities
	ErrOutOfRange = errors.New("logpipe: value out of range")
	// ErrValidation is returned when a configuration or constructor input is invalid
	ErrValidation = errors.New("logpipe: validation failed")
	// ErrNotInitialized is returned by operations on a zero-value Manager
	ErrNotInitialized = errors.New("logpipe: manager not initialized")
	// ErrFlushSkipped is returned when a flush could not start because another flush holds the lock.
	// It is distinct from a flush that found nothing to do, which returns 0 and nil.
	ErrFlushSkipped = errors.New("logpipe: flush skipped, another flush in progress")
)
