// Package tasks lets systems hand work off to background pools without
// blocking the control loop. A system dispatches a computation onto a Task
// handle, does nothing for the rest of the cycle, and polls the handle on
// later cycles until the result arrives.
//
// Two pools exist: the async dispatcher for I/O-bound or lightweight
// cooperative work, and the compute dispatcher for CPU-bound blocking work.
// Compute results are handed back through the async layer, so callers poll
// one uniform Task interface regardless of which pool did the work.
//
// Tasks are identified by their result type when stored as resources, so
// two tasks producing the same type would collide in storage. Declare a
// distinct result struct per task, even when the computation returns
// nothing interesting.
package tasks

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// outcome carries a finished computation's result to the poller.
type outcome[T any] struct {
	value T
	err   error
}

// Task is a single-slot handle to at most one in-flight background
// computation producing a T. A task is Idle until dispatched, Dispatched
// while in flight, and Idle again once Poll has delivered the result.
// It is a slot, not a queue: dispatching onto a live task is rejected.
//
// The zero value is an Idle task, ready to be stored as a resource.
type Task[T any] struct {
	mu           sync.Mutex
	alive        bool
	done         *outcome[T]
	dispatchID   string
	dispatchedAt time.Time
}

// IsAlive reports whether a dispatch is outstanding: true from dispatch
// until the result has been retrieved through Poll.
func (t *Task[T]) IsAlive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alive
}

// DispatchID returns the identifier assigned to the current dispatch, or ""
// when the task is idle.
func (t *Task[T]) DispatchID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.alive {
		return ""
	}
	return t.dispatchID
}

// DispatchedAt returns when the current dispatch was submitted. There are no
// dispatcher timeouts; a caller wanting a deadline compares elapsed time
// against this timestamp and chooses not to act on a late result.
func (t *Task[T]) DispatchedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dispatchedAt
}

// Poll checks the computation. While the task is idle or the work is still
// pending it returns ok == false. Once the computation finishes, exactly one
// Poll call returns ok == true together with the value or the computation's
// error, and the task resets to Idle.
func (t *Task[T]) Poll() (value T, ok bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.alive || t.done == nil {
		return value, false, nil
	}
	res := t.done
	t.done = nil
	t.alive = false
	t.dispatchID = ""
	return res.value, true, res.err
}

// begin transitions the task to Dispatched, rejecting a second dispatch
// while one is outstanding.
func (t *Task[T]) begin() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.alive {
		return fmt.Errorf("%w: dispatch %s from %s", ErrAlreadyAlive, t.dispatchID, t.dispatchedAt.Format(time.RFC3339Nano))
	}
	t.alive = true
	t.done = nil
	t.dispatchID = newDispatchID()
	t.dispatchedAt = time.Now()
	return nil
}

// reset returns the task to Idle without delivering anything. Used when a
// dispatch fails to enter the pool and the caller already has the error.
func (t *Task[T]) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.alive = false
	t.done = nil
	t.dispatchID = ""
}

// deliver stores the finished result for the next Poll. Results of an
// abandoned dispatch are kept until polled or re-dispatched; they are never
// delivered twice.
func (t *Task[T]) deliver(value T, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.alive {
		return
	}
	t.done = &outcome[T]{value: value, err: err}
}

// newDispatchID generates a time-ordered unique id for a dispatch.
func newDispatchID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}
