// Package jsonl reads and writes task collections as JSON Lines files: one
// task object per line. It backs seeding a store at startup and the
// export/import commands.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/taski/pkg/types"
)

// Read decodes every non-empty, parseable line of path into a T.
// Malformed lines are skipped so one bad record does not block a load.
func Read[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec T
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// Write atomically replaces path with one JSON line per record using the
// temp-file, fsync, rename pattern.
func Write[T any](path string, records []T) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, rec := range records {
		// Encode terminates each record with a newline.
		if err := enc.Encode(rec); err != nil {
			return fail(fmt.Errorf("writing record: %w", err))
		}
	}
	if err := w.Flush(); err != nil {
		return fail(fmt.Errorf("flushing buffer: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("syncing temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Export writes every task in the store to path.
func Export(ctx context.Context, store types.Store, path string) (int, error) {
	tasks, err := store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing tasks: %w", err)
	}
	if err := Write(path, tasks); err != nil {
		return 0, err
	}
	return len(tasks), nil
}

// Import creates every valid task of path in the store, in file order.
// Records with an empty title are skipped. IDs in the file are offered to
// the store, which keeps them only when they are above its high-water mark.
func Import(ctx context.Context, store types.Store, path string) (int, error) {
	tasks, err := Read[types.Task](path)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range tasks {
		if err := tasks[i].Validate(); err != nil {
			continue
		}
		if _, err := store.Create(ctx, &tasks[i]); err != nil {
			return n, fmt.Errorf("importing task %d: %w", tasks[i].ID, err)
		}
		n++
	}
	return n, nil
}

// Seed imports path only when the store is empty, so restarting a server
// with the same seed file does not duplicate tasks.
func Seed(ctx context.Context, store types.Store, path string) (int, error) {
	existing, err := store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing tasks: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}
	return Import(ctx, store, path)
}
