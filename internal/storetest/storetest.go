// Package storetest is a conformance suite run against every types.Store
// implementation, so the memory, SQLite and MongoDB backends are held to the
// same contract.
package storetest

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/taski/pkg/types"
)

// Factory returns a new, empty store. The suite closes it when the subtest ends.
type Factory func(t *testing.T) types.Store

// Run executes the conformance suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		run  func(t *testing.T, s types.Store)
	}{
		{"create assigns sequential ids", testCreateAssignsIDs},
		{"create defaults", testCreateDefaults},
		{"create honors higher client id", testCreateClientID},
		{"ids are never reused", testIDsNeverReused},
		{"create stops at the end of the id space", testIDsExhausted},
		{"create rejects empty title", testCreateRejectsEmptyTitle},
		{"list preserves insertion order", testListOrder},
		{"get missing returns ErrNotFound", testGetMissing},
		{"update applies partial patch", testUpdatePartial},
		{"update missing returns ErrNotFound", testUpdateMissing},
		{"update rejects empty title", testUpdateRejectsEmptyTitle},
		{"delete removes task", testDelete},
		{"delete missing returns ErrNotFound", testDeleteMissing},
		{"delete completed keeps incomplete", testDeleteCompleted},
		{"concurrent creates get distinct ids", testConcurrentCreates},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { s.Close() })
			tt.run(t, s)
		})
	}
}

func mustCreate(t *testing.T, s types.Store, title string, completed bool) *types.Task {
	t.Helper()
	got, err := s.Create(context.Background(), &types.Task{Title: title, Completed: completed})
	require.NoError(t, err)
	return got
}

func testCreateAssignsIDs(t *testing.T, s types.Store) {
	a := mustCreate(t, s, "Buy groceries", false)
	b := mustCreate(t, s, "Read a book", false)
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
}

func testCreateDefaults(t *testing.T, s types.Store) {
	before := time.Now().Add(-time.Second)
	got := mustCreate(t, s, "Walk the dog", false)
	assert.False(t, got.Completed)
	assert.True(t, got.CreatedAt.After(before), "createdAt %v should be set to now", got.CreatedAt)

	fixed := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	withTime, err := s.Create(context.Background(), &types.Task{Title: "Seeded", Description: "from a file", CreatedAt: fixed})
	require.NoError(t, err)
	assert.True(t, fixed.Equal(withTime.CreatedAt))

	stored, err := s.Get(context.Background(), withTime.ID)
	require.NoError(t, err)
	assert.Equal(t, "from a file", stored.Description)
	assert.True(t, fixed.Equal(stored.CreatedAt))
}

func testCreateClientID(t *testing.T, s types.Store) {
	mustCreate(t, s, "first", false)
	got, err := s.Create(context.Background(), &types.Task{ID: 10, Title: "client chose ten"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.ID)

	next := mustCreate(t, s, "after ten", false)
	assert.Equal(t, int64(11), next.ID)

	clash, err := s.Create(context.Background(), &types.Task{ID: 10, Title: "duplicate"})
	require.NoError(t, err)
	assert.Equal(t, int64(12), clash.ID, "an id already used is replaced by the next id")
}

func testIDsNeverReused(t *testing.T, s types.Store) {
	ctx := context.Background()
	mustCreate(t, s, "one", false)
	two := mustCreate(t, s, "two", false)
	require.NoError(t, s.Delete(ctx, two.ID))

	three := mustCreate(t, s, "three", false)
	assert.Equal(t, int64(3), three.ID)

	reuse, err := s.Create(ctx, &types.Task{ID: two.ID, Title: "reuse two"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), reuse.ID)
}

func testIDsExhausted(t *testing.T, s types.Store) {
	ctx := context.Background()
	ignored, err := s.Create(ctx, &types.Task{ID: math.MaxInt64, Title: "too high"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ignored.ID)

	near, err := s.Create(ctx, &types.Task{ID: math.MaxInt64 - 1, Title: "near the end"})
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64-1), near.ID)

	last := mustCreate(t, s, "last", false)
	assert.Equal(t, int64(math.MaxInt64), last.ID)

	_, err = s.Create(ctx, &types.Task{Title: "one too many"})
	require.ErrorIs(t, err, types.ErrIDsExhausted)
	assert.ErrorIs(t, err, types.ErrInvalidData)

	tasks, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 3)
}

func testCreateRejectsEmptyTitle(t *testing.T, s types.Store) {
	_, err := s.Create(context.Background(), &types.Task{Title: " "})
	assert.ErrorIs(t, err, types.ErrInvalidTitle)

	all, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testListOrder(t *testing.T, s types.Store) {
	titles := []string{"a", "b", "c", "d"}
	for i, title := range titles {
		mustCreate(t, s, title, i%2 == 1)
	}
	all, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, len(titles))
	for i, task := range all {
		assert.Equal(t, titles[i], task.Title)
		assert.Equal(t, i%2 == 1, task.Completed)
	}
}

func testGetMissing(t *testing.T, s types.Store) {
	_, err := s.Get(context.Background(), 42)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func testUpdatePartial(t *testing.T, s types.Store) {
	ctx := context.Background()
	task, err := s.Create(ctx, &types.Task{Title: "Finish report", Description: "plan structure"})
	require.NoError(t, err)

	got, err := s.Update(ctx, task.ID, types.Patch{Completed: types.Bool(true)})
	require.NoError(t, err)
	assert.True(t, got.Completed)
	assert.Equal(t, "Finish report", got.Title)
	assert.Equal(t, "plan structure", got.Description)
	assert.True(t, task.CreatedAt.Equal(got.CreatedAt), "createdAt is immutable")

	got, err = s.Update(ctx, task.ID, types.Patch{Title: types.String("Finish the report"), Description: types.String("")})
	require.NoError(t, err)
	assert.Equal(t, "Finish the report", got.Title)
	assert.Equal(t, "", got.Description)
	assert.True(t, got.Completed)

	stored, err := s.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Title, stored.Title)
	assert.True(t, stored.Completed)
}

func testUpdateMissing(t *testing.T, s types.Store) {
	_, err := s.Update(context.Background(), 5, types.Patch{Completed: types.Bool(true)})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func testUpdateRejectsEmptyTitle(t *testing.T, s types.Store) {
	task := mustCreate(t, s, "keep me", false)
	_, err := s.Update(context.Background(), task.ID, types.Patch{Title: types.String("")})
	assert.ErrorIs(t, err, types.ErrInvalidTitle)

	stored, err := s.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep me", stored.Title)
}

func testDelete(t *testing.T, s types.Store) {
	ctx := context.Background()
	a := mustCreate(t, s, "a", false)
	b := mustCreate(t, s, "b", false)
	require.NoError(t, s.Delete(ctx, a.ID))

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, b.ID, all[0].ID)
}

func testDeleteMissing(t *testing.T, s types.Store) {
	assert.ErrorIs(t, s.Delete(context.Background(), 99), types.ErrNotFound)
}

func testDeleteCompleted(t *testing.T, s types.Store) {
	ctx := context.Background()
	mustCreate(t, s, "open 1", false)
	mustCreate(t, s, "done 1", true)
	mustCreate(t, s, "open 2", false)
	mustCreate(t, s, "done 2", true)

	n, err := s.DeleteCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "open 1", all[0].Title)
	assert.Equal(t, "open 2", all[1].Title)

	n, err = s.DeleteCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func testConcurrentCreates(t *testing.T, s types.Store) {
	const workers = 8
	var wg sync.WaitGroup
	ids := make(chan int64, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := s.Create(context.Background(), &types.Task{Title: "parallel"})
			if err == nil {
				ids <- task.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "id %d assigned twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers)
}
