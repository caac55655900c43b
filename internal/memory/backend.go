// Package memory implements an in-process task store. It is the injected
// replacement for a process-wide task array: nothing survives a restart, but
// the contract is identical to the durable backends.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mesh-intelligence/taski/pkg/types"
)

// Compile-time interface check.
var _ types.Store = (*Backend)(nil)

// Backend is a types.Store backed by an ordered slice.
type Backend struct {
	mu     sync.RWMutex
	tasks  []*types.Task
	lastID int64 // highest ID ever assigned; IDs are never reused
	closed bool
	now    func() time.Time
}

// NewBackend returns an empty store.
func NewBackend() *Backend {
	return &Backend{now: time.Now}
}

// List returns copies of all tasks in insertion order.
func (b *Backend) List(ctx context.Context) ([]*types.Task, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, types.ErrStoreClosed
	}
	out := make([]*types.Task, len(b.tasks))
	for i, t := range b.tasks {
		out[i] = t.Clone()
	}
	return out, nil
}

// Get returns a copy of the task with the given ID.
func (b *Backend) Get(ctx context.Context, id int64) (*types.Task, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, types.ErrStoreClosed
	}
	i := b.indexOf(id)
	if i < 0 {
		return nil, types.ErrNotFound
	}
	return b.tasks[i].Clone(), nil
}

// Create appends a new task.
func (b *Backend) Create(ctx context.Context, task *types.Task) (*types.Task, error) {
	if task == nil {
		return nil, types.ErrInvalidData
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, types.ErrStoreClosed
	}

	id, err := types.AssignID(b.lastID, task.ID)
	if err != nil {
		return nil, err
	}
	stored := task.Clone()
	stored.ID = id
	b.lastID = id
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = b.now().UTC()
	}
	b.tasks = append(b.tasks, stored)
	return stored.Clone(), nil
}

// Update patches the task in place.
func (b *Backend) Update(ctx context.Context, id int64, patch types.Patch) (*types.Task, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, types.ErrStoreClosed
	}
	i := b.indexOf(id)
	if i < 0 {
		return nil, types.ErrNotFound
	}
	b.tasks[i].Apply(patch)
	return b.tasks[i].Clone(), nil
}

// Delete removes the task with the given ID.
func (b *Backend) Delete(ctx context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return types.ErrStoreClosed
	}
	i := b.indexOf(id)
	if i < 0 {
		return types.ErrNotFound
	}
	b.tasks = append(b.tasks[:i], b.tasks[i+1:]...)
	return nil
}

// DeleteCompleted removes every completed task.
func (b *Backend) DeleteCompleted(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, types.ErrStoreClosed
	}
	kept := b.tasks[:0]
	removed := 0
	for _, t := range b.tasks {
		if t.Completed {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	for i := len(kept); i < len(b.tasks); i++ {
		b.tasks[i] = nil
	}
	b.tasks = kept
	return removed, nil
}

// Close marks the store closed. Idempotent.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// indexOf returns the slice index of id, or -1. The caller must hold b.mu.
func (b *Backend) indexOf(id int64) int {
	for i, t := range b.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
