package tasklist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/taski/pkg/types"
)

func mkTasks(completed bool, idList ...int64) []*types.Task {
	out := make([]*types.Task, len(idList))
	for i, id := range idList {
		out[i] = &types.Task{ID: id, Title: "t", Completed: completed}
	}
	return out
}

func at(list Partition, index int) *Location {
	return &Location{List: list, Index: index}
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name           string
		drag           Drag
		wantIncomplete []int64
		wantCompleted  []int64
		wantPersist    int64 // 0 means nothing to persist
		wantNoOp       bool
	}{
		{
			name:           "cancelled drag",
			drag:           Drag{Source: Location{PartitionIncomplete, 0}},
			wantIncomplete: []int64{1, 2, 3}, wantCompleted: []int64{4, 5},
			wantNoOp: true,
		},
		{
			name:           "same index",
			drag:           Drag{Source: Location{PartitionIncomplete, 1}, Destination: at(PartitionIncomplete, 1)},
			wantIncomplete: []int64{1, 2, 3}, wantCompleted: []int64{4, 5},
			wantNoOp: true,
		},
		{
			name:           "first to last",
			drag:           Drag{Source: Location{PartitionIncomplete, 0}, Destination: at(PartitionIncomplete, 2)},
			wantIncomplete: []int64{2, 3, 1}, wantCompleted: []int64{4, 5},
		},
		{
			name:           "last to first",
			drag:           Drag{Source: Location{PartitionCompleted, 1}, Destination: at(PartitionCompleted, 0)},
			wantIncomplete: []int64{1, 2, 3}, wantCompleted: []int64{5, 4},
		},
		{
			name:           "complete into the middle",
			drag:           Drag{Source: Location{PartitionIncomplete, 0}, Destination: at(PartitionCompleted, 1)},
			wantIncomplete: []int64{2, 3}, wantCompleted: []int64{4, 1, 5},
			wantPersist: 1,
		},
		{
			name:           "reopen onto the end",
			drag:           Drag{Source: Location{PartitionCompleted, 0}, Destination: at(PartitionIncomplete, 3)},
			wantIncomplete: []int64{1, 2, 3, 4}, wantCompleted: []int64{5},
			wantPersist: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			incomplete := mkTasks(false, 1, 2, 3)
			completed := mkTasks(true, 4, 5)

			plan, err := Plan(incomplete, completed, tt.drag)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNoOp, plan.NoOp)
			assert.Equal(t, tt.wantIncomplete, ids(plan.Incomplete))
			assert.Equal(t, tt.wantCompleted, ids(plan.Completed))

			for _, task := range plan.Incomplete {
				assert.False(t, task.Completed, "task %d", task.ID)
			}
			for _, task := range plan.Completed {
				assert.True(t, task.Completed, "task %d", task.ID)
			}

			if tt.wantPersist == 0 {
				assert.Nil(t, plan.Persist)
			} else {
				require.NotNil(t, plan.Persist)
				assert.Equal(t, tt.wantPersist, plan.Persist.ID)
			}

			// Inputs untouched.
			assert.Equal(t, []int64{1, 2, 3}, ids(incomplete))
			assert.Equal(t, []int64{4, 5}, ids(completed))
			for _, task := range incomplete {
				assert.False(t, task.Completed)
			}
		})
	}
}

func TestPlanRejectsInvalidDrags(t *testing.T) {
	tests := []struct {
		name string
		drag Drag
	}{
		{"unknown source list", Drag{Source: Location{"archived", 0}, Destination: at(PartitionCompleted, 0)}},
		{"unknown destination list", Drag{Source: Location{PartitionIncomplete, 0}, Destination: at("trash", 0)}},
		{"negative source", Drag{Source: Location{PartitionIncomplete, -1}, Destination: at(PartitionIncomplete, 0)}},
		{"source past end", Drag{Source: Location{PartitionCompleted, 2}, Destination: at(PartitionCompleted, 0)}},
		{"reorder past end", Drag{Source: Location{PartitionIncomplete, 0}, Destination: at(PartitionIncomplete, 3)}},
		{"transfer past end", Drag{Source: Location{PartitionIncomplete, 0}, Destination: at(PartitionCompleted, 3)}},
		{"negative destination", Drag{Source: Location{PartitionIncomplete, 0}, Destination: at(PartitionCompleted, -1)}},
		{"empty source list", Drag{Source: Location{PartitionIncomplete, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			incomplete := mkTasks(false, 1, 2, 3)
			completed := mkTasks(true, 4, 5)
			if tt.name == "empty source list" {
				incomplete = nil
			}
			_, err := Plan(incomplete, completed, tt.drag)
			require.ErrorIs(t, err, types.ErrInvalidDrag)
			assert.True(t, types.IsValidation(err))
		})
	}
}

func TestParsePartition(t *testing.T) {
	p, err := ParsePartition("completed")
	require.NoError(t, err)
	assert.Equal(t, PartitionCompleted, p)
	assert.Equal(t, PartitionIncomplete, p.Opposite())

	_, err = ParsePartition("done")
	assert.ErrorIs(t, err, types.ErrInvalidDrag)
}

func TestMove(t *testing.T) {
	ctx := context.Background()

	t.Run("reorder stays local", func(t *testing.T) {
		s, remote := newLoaded(t, seeded{"A", false}, seeded{"B", false}, seeded{"C", false})

		require.NoError(t, s.Move(ctx, Drag{Source: Location{PartitionIncomplete, 0}, Destination: at(PartitionIncomplete, 2)}))
		assert.Equal(t, []string{"B", "C", "A"}, titles(s.Incomplete()))
		assert.Zero(t, remote.total()-remote.count("list"))

		// A reload restores server order.
		require.NoError(t, s.Load(ctx))
		assert.Equal(t, []string{"A", "B", "C"}, titles(s.Incomplete()))
	})

	t.Run("transfer persists completion", func(t *testing.T) {
		s, remote := newLoaded(t, seeded{"A", false}, seeded{"B", true})

		require.NoError(t, s.Move(ctx, Drag{Source: Location{PartitionIncomplete, 0}, Destination: at(PartitionCompleted, 0)}))
		assert.Empty(t, s.Incomplete())
		assert.Equal(t, []string{"A", "B"}, titles(s.Completed()))
		assert.Equal(t, 1, remote.count("update"))

		stored, err := remote.store.Get(ctx, 1)
		require.NoError(t, err)
		assert.True(t, stored.Completed)
	})

	t.Run("cancelled and same-index drags do nothing", func(t *testing.T) {
		s, remote := newLoaded(t, seeded{"A", false}, seeded{"B", false})
		require.NoError(t, s.Move(ctx, Drag{Source: Location{PartitionIncomplete, 1}}))
		require.NoError(t, s.Move(ctx, Drag{Source: Location{PartitionIncomplete, 1}, Destination: at(PartitionIncomplete, 1)}))
		assert.Equal(t, []string{"A", "B"}, titles(s.Incomplete()))
		assert.Zero(t, remote.count("update"))
	})

	t.Run("invalid drag records a validation error", func(t *testing.T) {
		s, remote := newLoaded(t, seeded{"A", false})
		err := s.Move(ctx, Drag{Source: Location{PartitionCompleted, 0}, Destination: at(PartitionIncomplete, 0)})
		require.ErrorIs(t, err, types.ErrInvalidDrag)
		assert.True(t, types.IsValidation(s.LastError()))
		assert.Zero(t, remote.count("update"))
	})

	t.Run("failed transfer returns to the source position", func(t *testing.T) {
		s, remote := newLoaded(t, seeded{"A", false}, seeded{"B", false}, seeded{"C", true})
		remote.UpdateErr = errNetwork

		err := s.Move(ctx, Drag{Source: Location{PartitionIncomplete, 0}, Destination: at(PartitionCompleted, 1)})
		require.ErrorIs(t, err, types.ErrTransport)
		assert.Equal(t, []string{"A", "B"}, titles(s.Incomplete()))
		assert.Equal(t, []string{"C"}, titles(s.Completed()))
		a, _ := s.Get(1)
		assert.False(t, a.Completed)
	})
}
