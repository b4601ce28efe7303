package tasks

import (
	"errors"
)

// Task and dispatcher errors
var (
	// ErrAlreadyAlive is returned when dispatching onto a task that is
	// still in flight. Callers are expected to check IsAlive first and
	// simply skip the dispatch; the original dispatch is unaffected.
	ErrAlreadyAlive = errors.New("task is already dispatched")

	// ErrTaskPanic wraps a panic raised inside a dispatched computation.
	// The panic is captured and delivered through Poll, never crashing
	// the worker pool.
	ErrTaskPanic = errors.New("task computation panicked")

	// ErrDispatcherClosed is returned when dispatching onto a closed pool.
	ErrDispatcherClosed = errors.New("dispatcher is closed")
)
