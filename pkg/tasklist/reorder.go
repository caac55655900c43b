package tasklist

import (
	"fmt"

	"github.com/mesh-intelligence/taski/pkg/types"
)

// Partition names one of the two sequences.
type Partition string

// Partitions.
const (
	PartitionIncomplete Partition = "incomplete"
	PartitionCompleted  Partition = "completed"
)

// ParsePartition accepts "incomplete" or "completed".
func ParsePartition(s string) (Partition, error) {
	p := Partition(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown list %q", types.ErrInvalidDrag, s)
	}
	return p, nil
}

// Valid reports whether p is a known partition.
func (p Partition) Valid() bool {
	return p == PartitionIncomplete || p == PartitionCompleted
}

// Completed is the completion flag of tasks held in p.
func (p Partition) Completed() bool {
	return p == PartitionCompleted
}

// Opposite returns the other partition.
func (p Partition) Opposite() Partition {
	if p == PartitionCompleted {
		return PartitionIncomplete
	}
	return PartitionCompleted
}

// Location is a position within a partition.
type Location struct {
	List  Partition `json:"list"`
	Index int       `json:"index"`
}

// Drag is a drag-and-drop gesture. A nil Destination means the drop landed
// outside any list.
type Drag struct {
	Source      Location  `json:"source"`
	Destination *Location `json:"destination,omitempty"`
}

// Validate checks the gesture against partitions of the given sizes.
func (d Drag) Validate(incompleteLen, completedLen int) error {
	size := func(p Partition) int {
		if p == PartitionCompleted {
			return completedLen
		}
		return incompleteLen
	}

	if !d.Source.List.Valid() {
		return fmt.Errorf("%w: unknown source list %q", types.ErrInvalidDrag, d.Source.List)
	}
	if n := size(d.Source.List); d.Source.Index < 0 || d.Source.Index >= n {
		return fmt.Errorf("%w: source index %d out of range [0,%d)", types.ErrInvalidDrag, d.Source.Index, n)
	}
	if d.Destination == nil {
		return nil
	}
	if !d.Destination.List.Valid() {
		return fmt.Errorf("%w: unknown destination list %q", types.ErrInvalidDrag, d.Destination.List)
	}
	// A transfer may append one past the end; a reorder may not.
	limit := size(d.Destination.List)
	if d.Destination.List == d.Source.List {
		limit--
	}
	if d.Destination.Index < 0 || d.Destination.Index > limit {
		return fmt.Errorf("%w: destination index %d out of range [0,%d]", types.ErrInvalidDrag, d.Destination.Index, limit)
	}
	return nil
}

// MovePlan is the outcome of planning a drag.
type MovePlan struct {
	Incomplete []*types.Task
	Completed  []*types.Task

	// Persist is the task whose new completion state must be sent to the
	// remote, or nil when nothing needs persisting.
	Persist *types.Task

	// NoOp is set when the gesture changes nothing.
	NoOp bool
}

// Plan computes the partitions after drag without modifying its inputs. The
// moved task is cloned before its completion flag changes.
func Plan(incomplete, completed []*types.Task, drag Drag) (MovePlan, error) {
	if err := drag.Validate(len(incomplete), len(completed)); err != nil {
		return MovePlan{}, err
	}
	unchanged := MovePlan{Incomplete: incomplete, Completed: completed, NoOp: true}
	if drag.Destination == nil {
		return unchanged, nil
	}
	src, dst := drag.Source, *drag.Destination

	lists := map[Partition][]*types.Task{
		PartitionIncomplete: append([]*types.Task(nil), incomplete...),
		PartitionCompleted:  append([]*types.Task(nil), completed...),
	}
	plan := MovePlan{}

	if src.List == dst.List {
		if src.Index == dst.Index {
			return unchanged, nil
		}
		lists[src.List] = reorder(lists[src.List], src.Index, dst.Index)
	} else {
		moved := lists[src.List][src.Index].Clone()
		moved.Completed = dst.List.Completed()
		lists[src.List] = remove(lists[src.List], src.Index)
		lists[dst.List] = insert(lists[dst.List], dst.Index, moved)
		plan.Persist = moved
	}

	plan.Incomplete = lists[PartitionIncomplete]
	plan.Completed = lists[PartitionCompleted]
	return plan, nil
}

// reorder moves element from to position to. Removal happens first, so
// later indices shift down by one before insertion.
func reorder(tasks []*types.Task, from, to int) []*types.Task {
	moved := tasks[from]
	return insert(remove(tasks, from), to, moved)
}
