package tasklist

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/taski/internal/memory"
	"github.com/mesh-intelligence/taski/pkg/types"
)

// fakeRemote is a Remote over the memory store with per-method error
// injection and call counting.
type fakeRemote struct {
	store *memory.Backend

	mu                 sync.Mutex
	ListErr            error
	CreateErr          error
	UpdateErr          error
	DeleteErr          error
	DeleteCompletedErr error
	calls              map[string]int

	// hook runs once, during the next remote call, after the error has been
	// chosen and before the store is touched.
	hook func(op string)

	// AfterCreate runs once the store has saved a created task and before
	// the response is returned.
	AfterCreate func(created *types.Task)
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{store: memory.NewBackend(), calls: map[string]int{}}
}

// enter counts the call, runs and clears the hook, and returns the injected
// error for op.
func (f *fakeRemote) enter(op string, injected *error) error {
	f.mu.Lock()
	f.calls[op]++
	err := *injected
	hook := f.hook
	f.hook = nil
	f.mu.Unlock()

	if hook != nil {
		hook(op)
	}
	return err
}

func (f *fakeRemote) setHook(hook func(op string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hook = hook
}

func (f *fakeRemote) failAll(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListErr, f.CreateErr, f.UpdateErr, f.DeleteErr, f.DeleteCompletedErr = err, err, err, err, err
}

func (f *fakeRemote) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRemote) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeRemote) List(ctx context.Context) ([]*types.Task, error) {
	if err := f.enter("list", &f.ListErr); err != nil {
		return nil, err
	}
	return f.store.List(ctx)
}

func (f *fakeRemote) Create(ctx context.Context, task *types.Task) (*types.Task, error) {
	if err := f.enter("create", &f.CreateErr); err != nil {
		return nil, err
	}
	created, err := f.store.Create(ctx, task)
	if err == nil && f.AfterCreate != nil {
		f.AfterCreate(created.Clone())
	}
	return created, err
}

func (f *fakeRemote) Update(ctx context.Context, id int64, patch types.Patch) (*types.Task, error) {
	if err := f.enter("update", &f.UpdateErr); err != nil {
		return nil, err
	}
	return f.store.Update(ctx, id, patch)
}

func (f *fakeRemote) Delete(ctx context.Context, id int64) error {
	if err := f.enter("delete", &f.DeleteErr); err != nil {
		return err
	}
	return f.store.Delete(ctx, id)
}

func (f *fakeRemote) DeleteCompleted(ctx context.Context) error {
	if err := f.enter("deleteCompleted", &f.DeleteCompletedErr); err != nil {
		return err
	}
	_, err := f.store.DeleteCompleted(ctx)
	return err
}

// seeded describes one task to put in the store before loading.
type seeded struct {
	title     string
	completed bool
}

// newLoaded seeds the remote store and loads a State from it.
func newLoaded(t *testing.T, tasks ...seeded) (*State, *fakeRemote) {
	t.Helper()
	remote := newFakeRemote()
	for _, s := range tasks {
		_, err := remote.store.Create(context.Background(), &types.Task{Title: s.title, Completed: s.completed})
		require.NoError(t, err)
	}
	state := New(remote)
	require.NoError(t, state.Load(context.Background()))
	return state, remote
}

// ids returns the IDs of tasks in order.
func ids(tasks []*types.Task) []int64 {
	out := make([]int64, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

// titles returns the titles of tasks in order.
func titles(tasks []*types.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Title
	}
	return out
}
