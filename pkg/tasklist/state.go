package tasklist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/taski/pkg/types"
)

// ErrClosed is returned by operations started after Close.
var ErrClosed = errors.New("task list is closed")

// Remote is the server side of the list. *client.Client satisfies it.
type Remote interface {
	List(ctx context.Context) ([]*types.Task, error)
	Create(ctx context.Context, task *types.Task) (*types.Task, error)
	Update(ctx context.Context, id int64, patch types.Patch) (*types.Task, error)
	Delete(ctx context.Context, id int64) error
	DeleteCompleted(ctx context.Context) error
}

// Option configures a State.
type Option func(*State)

// WithLogger sets where rollbacks are logged. The default discards.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *State) { s.log = log }
}

// WithClock overrides the time source for optimistic CreatedAt values.
func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

// State is the partitioned task list. It is safe for concurrent use; the lock
// is never held across a remote call.
//
// Tasks are tracked by pointer while a call is in flight, so a settled call
// finds its task even if it moved or was renumbered meanwhile. Callers only
// ever see clones.
type State struct {
	remote Remote
	log    logrus.FieldLogger
	now    func() time.Time

	mu         sync.Mutex
	incomplete []*types.Task
	completed  []*types.Task
	lastErr    error
	closed     bool
}

// New returns an empty State backed by remote.
func New(remote Remote, opts ...Option) *State {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	s := &State{remote: remote, log: discard, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces both partitions with the remote collection. The current
// error is cleared first; on failure the previous contents are kept.
func (s *State) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.lastErr = nil
	s.mu.Unlock()

	tasks, err := s.remote.List(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err != nil {
		return s.fail("error fetching todos", err)
	}
	incomplete := make([]*types.Task, 0, len(tasks))
	completed := make([]*types.Task, 0)
	for _, t := range tasks {
		if t.Completed {
			completed = append(completed, t.Clone())
		} else {
			incomplete = append(incomplete, t.Clone())
		}
	}
	s.incomplete, s.completed = incomplete, completed
	return nil
}

// Create appends a new task to the incomplete partition under the next local
// ID and sends it to the remote. On success the optimistic task takes the
// server's ID and CreatedAt; on failure it is removed.
func (s *State) Create(ctx context.Context, title, description string) (*types.Task, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if err := types.ValidateTitle(title); err != nil {
		defer s.mu.Unlock()
		return nil, s.fail("error creating todo", err)
	}
	id, err := types.AssignID(s.maxID(), 0)
	if err != nil {
		defer s.mu.Unlock()
		return nil, s.fail("error creating todo", err)
	}
	task := &types.Task{
		ID:          id,
		Title:       title,
		Description: description,
		CreatedAt:   s.now().UTC(),
	}
	s.incomplete = append(s.incomplete, task)
	sent := task.Clone()
	s.mu.Unlock()

	created, err := s.remote.Create(ctx, sent)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	list, i := s.find(task)
	if err != nil {
		if list != nil {
			*list = remove(*list, i)
			s.log.WithField("id", task.ID).Warn("rolled back create")
		}
		return nil, s.fail("error creating todo", err)
	}
	if list == nil {
		// Deleted locally while the create was in flight.
		return created.Clone(), nil
	}
	// Fields edited locally while the create was in flight stay; their own
	// calls carry them to the server.
	task.ID = created.ID
	task.CreatedAt = created.CreatedAt
	return task.Clone(), nil
}

// Update applies the title and description of patch to the task in
// whichever partition holds it and sends the same patch to the remote.
// Completion is changed with SetCompleted, so patch.Completed is ignored.
// On failure each patched field is restored unless it was changed again
// meanwhile.
func (s *State) Update(ctx context.Context, id int64, patch types.Patch) error {
	patch.Completed = nil
	if err := patch.Validate(); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.fail("error updating todo", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	task, _ := s.lookup(id)
	var before types.Task
	if task != nil {
		before = *task
		task.Apply(patch)
	}
	s.mu.Unlock()

	_, err := s.remote.Update(ctx, id, patch)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err == nil {
		return nil
	}
	if task != nil {
		if patch.Title != nil && task.Title == *patch.Title {
			task.Title = before.Title
		}
		if patch.Description != nil && task.Description == *patch.Description {
			task.Description = before.Description
		}
		s.log.WithField("id", id).Warn("rolled back update")
	}
	return s.fail("error updating todo", err)
}

// Delete removes the task from whichever partition holds it and deletes it
// remotely. On failure the task is reinserted at its former position unless
// the remote reports it no longer exists.
func (s *State) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	task, part := s.lookup(id)
	var index int
	if task != nil {
		list := s.partition(part)
		_, index = s.find(task)
		*list = remove(*list, index)
	}
	s.mu.Unlock()

	err := s.remote.Delete(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err == nil {
		return nil
	}
	if task != nil && !errors.Is(err, types.ErrNotFound) {
		if l, _ := s.find(task); l == nil {
			if existing, _ := s.lookup(task.ID); existing == nil {
				list := s.partition(part)
				*list = insert(*list, index, task)
				s.log.WithField("id", id).Warn("rolled back delete")
			}
		}
	}
	return s.fail("error deleting todo", err)
}

// SetCompleted moves the task from the partition opposite to completed to
// the end of the target partition and sends the full task to the remote. If
// the task is not in the source partition nothing happens. On failure the
// task is moved back to its original position.
func (s *State) SetCompleted(ctx context.Context, id int64, completed bool) error {
	source := PartitionIncomplete
	if !completed {
		source = PartitionCompleted
	}
	target := source.Opposite()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	src := s.partition(source)
	index := indexByID(*src, id)
	if index < 0 {
		s.mu.Unlock()
		return nil
	}
	task := (*src)[index]
	*src = remove(*src, index)
	task.Completed = completed
	dst := s.partition(target)
	*dst = append(*dst, task)
	sent := task.Clone()
	s.mu.Unlock()

	return s.persistTransfer(ctx, task, sent, Location{List: source, Index: index}, target)
}

// persistTransfer sends a partition change and moves the task back to from
// if the remote rejects it.
func (s *State) persistTransfer(ctx context.Context, task, sent *types.Task, from Location, to Partition) error {
	_, err := s.remote.Update(ctx, sent.ID, types.PatchFromTask(sent))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err == nil {
		return nil
	}
	dst := s.partition(to)
	if i := indexOf(*dst, task); i >= 0 {
		*dst = remove(*dst, i)
		task.Completed = from.List.Completed()
		src := s.partition(from.List)
		*src = insert(*src, from.Index, task)
		s.log.WithFields(logrus.Fields{"id": task.ID, "list": from.List}).Warn("rolled back completion change")
	}
	return s.fail("error toggling todo completion", err)
}

// DeleteAllCompleted empties the completed partition and asks the remote to
// do the same. On failure the removed tasks are restored ahead of any
// completed tasks added meanwhile.
func (s *State) DeleteAllCompleted(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	removed := s.completed
	s.completed = []*types.Task{}
	s.mu.Unlock()

	err := s.remote.DeleteCompleted(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err == nil {
		return nil
	}
	restored := make([]*types.Task, 0, len(removed)+len(s.completed))
	for _, t := range removed {
		if existing, _ := s.lookup(t.ID); existing == nil {
			restored = append(restored, t)
		}
	}
	if len(restored) > 0 {
		s.log.WithField("count", len(restored)).Warn("rolled back delete of completed todos")
	}
	s.completed = append(restored, s.completed...)
	return s.fail("error deleting all completed todos", err)
}

// Move applies a drag gesture. Reorders within one partition are local;
// transfers between partitions are persisted like SetCompleted.
func (s *State) Move(ctx context.Context, drag Drag) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	plan, err := Plan(s.incomplete, s.completed, drag)
	if err != nil {
		defer s.mu.Unlock()
		return s.fail("error moving todo", err)
	}
	if plan.NoOp {
		s.mu.Unlock()
		return nil
	}

	// Keep the original pointer in the new sequence so in-flight calls can
	// still find the task.
	task := (*s.partition(drag.Source.List))[drag.Source.Index]
	dst := plan.Incomplete
	if drag.Destination.List == PartitionCompleted {
		dst = plan.Completed
	}
	dst[drag.Destination.Index] = task
	task.Completed = drag.Destination.List.Completed()
	s.incomplete, s.completed = plan.Incomplete, plan.Completed

	if plan.Persist == nil {
		s.mu.Unlock()
		return nil
	}
	sent := task.Clone()
	s.mu.Unlock()

	return s.persistTransfer(ctx, task, sent, drag.Source, drag.Destination.List)
}

// LastError returns the most recent failure, or nil.
func (s *State) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ClearError forgets the current error.
func (s *State) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = nil
}

// Incomplete returns a copy of the incomplete partition.
func (s *State) Incomplete() []*types.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.incomplete)
}

// Completed returns a copy of the completed partition.
func (s *State) Completed() []*types.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.completed)
}

// Counts returns the sizes of both partitions.
func (s *State) Counts() (incomplete, completed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.incomplete), len(s.completed)
}

// Search returns the tasks of each partition whose title contains query,
// ignoring case. An empty query matches everything.
func (s *State) Search(query string) (incomplete, completed []*types.Task) {
	q := strings.ToLower(query)
	match := func(tasks []*types.Task) []*types.Task {
		out := []*types.Task{}
		for _, t := range tasks {
			if strings.Contains(strings.ToLower(t.Title), q) {
				out = append(out, t.Clone())
			}
		}
		return out
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return match(s.incomplete), match(s.completed)
}

// Get returns a copy of the task with the given ID.
func (s *State) Get(id int64) (*types.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, _ := s.lookup(id)
	if task == nil {
		return nil, false
	}
	return task.Clone(), true
}

// Locate returns the partition and index of a task.
func (s *State) Locate(id int64) (Location, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range []Partition{PartitionIncomplete, PartitionCompleted} {
		if i := indexByID(*s.partition(p), id); i >= 0 {
			return Location{List: p, Index: i}, true
		}
	}
	return Location{}, false
}

// Close stops settled calls from writing into the list. Later operations
// return ErrClosed.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// fail records err under prefix and returns the recorded error.
// Callers hold s.mu.
func (s *State) fail(prefix string, err error) error {
	wrapped := fmt.Errorf("%s: %w", prefix, err)
	s.lastErr = wrapped
	return wrapped
}

func (s *State) partition(p Partition) *[]*types.Task {
	if p == PartitionCompleted {
		return &s.completed
	}
	return &s.incomplete
}

// lookup finds a task by ID in either partition.
func (s *State) lookup(id int64) (*types.Task, Partition) {
	if i := indexByID(s.incomplete, id); i >= 0 {
		return s.incomplete[i], PartitionIncomplete
	}
	if i := indexByID(s.completed, id); i >= 0 {
		return s.completed[i], PartitionCompleted
	}
	return nil, ""
}

// find locates a task by identity. It returns a nil list when the task is
// in neither partition.
func (s *State) find(task *types.Task) (*[]*types.Task, int) {
	if i := indexOf(s.incomplete, task); i >= 0 {
		return &s.incomplete, i
	}
	if i := indexOf(s.completed, task); i >= 0 {
		return &s.completed, i
	}
	return nil, -1
}

func (s *State) maxID() int64 {
	var highest int64
	for _, list := range [][]*types.Task{s.incomplete, s.completed} {
		for _, t := range list {
			if t.ID > highest {
				highest = t.ID
			}
		}
	}
	return highest
}

func indexByID(tasks []*types.Task, id int64) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func indexOf(tasks []*types.Task, task *types.Task) int {
	for i, t := range tasks {
		if t == task {
			return i
		}
	}
	return -1
}

// remove returns tasks without element i, in a fresh slice.
func remove(tasks []*types.Task, i int) []*types.Task {
	out := make([]*types.Task, 0, len(tasks)-1)
	out = append(out, tasks[:i]...)
	return append(out, tasks[i+1:]...)
}

// insert returns tasks with task at index i, clamped to the ends.
func insert(tasks []*types.Task, i int, task *types.Task) []*types.Task {
	if i < 0 {
		i = 0
	}
	if i > len(tasks) {
		i = len(tasks)
	}
	out := make([]*types.Task, 0, len(tasks)+1)
	out = append(out, tasks[:i]...)
	out = append(out, task)
	return append(out, tasks[i:]...)
}

func cloneAll(tasks []*types.Task) []*types.Task {
	out := make([]*types.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
