// Package mongodb implements the task store on a MongoDB collection. Task IDs
// stay integers: a counters document holds the high-water mark and is bumped
// atomically on every create.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mesh-intelligence/taski/pkg/types"
)

// Compile-time interface check.
var _ types.Store = (*Backend)(nil)

const (
	countersCollection = "counters"
	connectTimeout     = 10 * time.Second
)

// taskDocument is the BSON shape of a task.
type taskDocument struct {
	ID          int64     `bson:"_id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Completed   bool      `bson:"completed"`
	CreatedAt   time.Time `bson:"created_at"`
}

func (d *taskDocument) toTask() *types.Task {
	return &types.Task{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Completed:   d.Completed,
		CreatedAt:   d.CreatedAt.UTC(),
	}
}

// counterDocument tracks the highest task ID ever assigned.
type counterDocument struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

// Backend implements types.Store on MongoDB.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	client   *mongo.Client
	tasks    *mongo.Collection
	counters *mongo.Collection
	counter  string // _id of this collection's counter document
	now      func() time.Time
}

// NewBackend creates a detached backend.
func NewBackend() *Backend {
	return &Backend{now: time.Now}
}

// Open creates a backend and attaches it.
func Open(config types.Config) (*Backend, error) {
	b := NewBackend()
	if err := b.Attach(config); err != nil {
		return nil, err
	}
	return b, nil
}

// Attach connects to the server named by config.Mongo.URI and pings it.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if config.Mongo == nil || config.Mongo.URI == "" {
		return types.ErrMongoURIEmpty
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.Mongo.URI))
	if err != nil {
		return fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return fmt.Errorf("pinging mongodb: %w", err)
	}

	db := client.Database(config.Mongo.GetDatabase())
	b.client = client
	b.tasks = db.Collection(config.Mongo.GetCollection())
	b.counters = db.Collection(countersCollection)
	b.counter = config.Mongo.GetCollection()
	b.attached = true
	return nil
}

// Detach disconnects the client. Idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := b.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnecting mongodb: %w", err)
	}
	b.attached = false
	b.client, b.tasks, b.counters = nil, nil, nil
	return nil
}

// Close implements types.Store by detaching.
func (b *Backend) Close() error {
	return b.Detach()
}

// collections returns the attached collections or ErrStoreClosed.
func (b *Backend) collections() (tasks, counters *mongo.Collection, err error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, nil, types.ErrStoreClosed
	}
	return b.tasks, b.counters, nil
}

// List returns all tasks sorted by ID.
func (b *Backend) List(ctx context.Context) ([]*types.Task, error) {
	tasks, _, err := b.collections()
	if err != nil {
		return nil, err
	}
	cursor, err := tasks.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("retrieving tasks: %w", err)
	}
	defer cursor.Close(ctx)

	out := []*types.Task{}
	for cursor.Next(ctx) {
		var doc taskDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding task: %w", err)
		}
		out = append(out, doc.toTask())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return out, nil
}

// Get returns one task by ID.
func (b *Backend) Get(ctx context.Context, id int64) (*types.Task, error) {
	tasks, _, err := b.collections()
	if err != nil {
		return nil, err
	}
	var doc taskDocument
	if err := tasks.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("getting task %d: %w", id, err)
	}
	return doc.toTask(), nil
}

// Create inserts a task under a freshly reserved ID.
func (b *Backend) Create(ctx context.Context, task *types.Task) (*types.Task, error) {
	if task == nil {
		return nil, types.ErrInvalidData
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}
	tasks, counters, err := b.collections()
	if err != nil {
		return nil, err
	}

	id, err := b.reserveID(ctx, counters, task.ID)
	if err != nil {
		return nil, err
	}

	createdAt := task.CreatedAt
	if createdAt.IsZero() {
		createdAt = b.now()
	}
	doc := taskDocument{
		ID:          id,
		Title:       task.Title,
		Description: task.Description,
		Completed:   task.Completed,
		// BSON dates carry millisecond precision.
		CreatedAt: createdAt.UTC().Truncate(time.Millisecond),
	}
	if _, err := tasks.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return doc.toTask(), nil
}

// reserveID returns requested when it is above the counter, raising the
// counter to it; otherwise it increments the counter and returns the result.
// It follows types.AssignID.
func (b *Backend) reserveID(ctx context.Context, counters *mongo.Collection, requested int64) (int64, error) {
	filter := bson.M{"_id": b.counter}

	if requested > 0 && requested < math.MaxInt64 {
		var prev counterDocument
		err := counters.FindOneAndUpdate(ctx, filter,
			bson.M{"$max": bson.M{"seq": requested}},
			options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.Before),
		).Decode(&prev)
		if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			return 0, fmt.Errorf("reserving task id: %w", err)
		}
		if prev.Seq < requested {
			return requested, nil
		}
	}

	// A counter already at math.MaxInt64 fails the filter, and the upsert
	// then collides with the existing _id.
	var next counterDocument
	err := counters.FindOneAndUpdate(ctx,
		bson.M{"_id": b.counter, "seq": bson.M{"$lt": int64(math.MaxInt64)}},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&next)
	if mongo.IsDuplicateKeyError(err) {
		return 0, types.ErrIDsExhausted
	}
	if err != nil {
		return 0, fmt.Errorf("allocating task id: %w", err)
	}
	return next.Seq, nil
}

// Update applies the patch with $set and returns the updated document.
func (b *Backend) Update(ctx context.Context, id int64, patch types.Patch) (*types.Task, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return b.Get(ctx, id)
	}
	tasks, _, err := b.collections()
	if err != nil {
		return nil, err
	}

	set := bson.M{}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Completed != nil {
		set["completed"] = *patch.Completed
	}

	var doc taskDocument
	err = tasks.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update task %d: %w", id, err)
	}
	return doc.toTask(), nil
}

// Delete removes one task.
func (b *Backend) Delete(ctx context.Context, id int64) error {
	tasks, _, err := b.collections()
	if err != nil {
		return err
	}
	res, err := tasks.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return types.ErrNotFound
	}
	return nil
}

// DeleteCompleted removes every completed task.
func (b *Backend) DeleteCompleted(ctx context.Context) (int, error) {
	tasks, _, err := b.collections()
	if err != nil {
		return 0, err
	}
	res, err := tasks.DeleteMany(ctx, bson.M{"completed": true})
	if err != nil {
		return 0, fmt.Errorf("failed to delete completed tasks: %w", err)
	}
	return int(res.DeletedCount), nil
}

// dropDatabase removes the attached database. Used by tests.
func (b *Backend) dropDatabase(ctx context.Context) error {
	tasks, _, err := b.collections()
	if err != nil {
		return err
	}
	return tasks.Database().Drop(ctx)
}
