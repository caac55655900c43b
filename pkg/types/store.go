package types

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Store holds the authoritative ordered collection of tasks. Memory, SQLite
// and MongoDB backends implement it; the HTTP server depends only on this
// interface.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// List returns every task in insertion order (ascending ID).
	List(ctx context.Context) ([]*Task, error)

	// Get returns the task with the given ID, or ErrNotFound.
	Get(ctx context.Context, id int64) (*Task, error)

	// Create persists a new task. A zero ID, or an ID not greater than every
	// ID the store has ever assigned, is replaced by the next ID (see
	// AssignID). Completed
	// defaults to false and a zero CreatedAt is set to now. The stored task
	// is returned.
	Create(ctx context.Context, task *Task) (*Task, error)

	// Update applies the patch to the task with the given ID and returns
	// the result. Returns ErrNotFound if the task does not exist.
	Update(ctx context.Context, id int64, patch Patch) (*Task, error)

	// Delete removes the task with the given ID.
	// Returns ErrNotFound if the task does not exist.
	Delete(ctx context.Context, id int64) error

	// DeleteCompleted removes every completed task and returns how many
	// were removed.
	DeleteCompleted(ctx context.Context) (int, error)

	// Close releases backend resources. Idempotent.
	Close() error
}

// Task errors. ErrInvalidTitle, ErrInvalidData and ErrInvalidDrag are
// validation failures detected before any remote call; ErrNotFound and
// ErrTransport classify remote failures.
var (
	ErrNotFound     = errors.New("task not found")
	ErrInvalidID    = errors.New("invalid task ID")
	ErrInvalidTitle = errors.New("title must not be empty")
	ErrInvalidData  = errors.New("invalid task data")
	ErrInvalidDrag  = errors.New("invalid drag")
	ErrTransport    = errors.New("transport failure")
)

// ErrIDsExhausted is returned by Create once math.MaxInt64 has been assigned.
var ErrIDsExhausted = fmt.Errorf("%w: task IDs exhausted", ErrInvalidData)

// AssignID picks the ID of a new task from the store's high-water mark. A
// requested ID is kept when it is above the mark; math.MaxInt64 is never
// honored as a request, so one client cannot use up the ID space.
func AssignID(highWater, requested int64) (int64, error) {
	if requested > highWater && requested < math.MaxInt64 {
		return requested, nil
	}
	if highWater == math.MaxInt64 {
		return 0, ErrIDsExhausted
	}
	return highWater + 1, nil
}

// Store lifecycle errors.
var (
	ErrStoreClosed     = errors.New("store is closed")
	ErrAlreadyAttached = errors.New("store is already attached")
)

// IsValidation reports whether err is a client-side validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidTitle) ||
		errors.Is(err, ErrInvalidData) ||
		errors.Is(err, ErrInvalidDrag) ||
		errors.Is(err, ErrInvalidID)
}
