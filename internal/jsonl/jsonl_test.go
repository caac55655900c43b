package jsonl

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/taski/internal/memory"
	"github.com/mesh-intelligence/taski/pkg/types"
)

const seedContent = `{"id":1,"title":"Buy groceries","completed":false,"description":"chocolate, bread, noodles","createdAt":"2024-09-01T10:00:00Z"}
{"id":2,"title":"Read a book","completed":true,"createdAt":"2024-09-02T12:30:00Z"}

{invalid json here
{"id":3,"title":"","completed":false,"createdAt":"2024-09-03T09:00:00Z"}
{"id":4,"title":"Walk the dog","completed":false,"createdAt":"2024-09-04T15:00:00Z"}
`

func writeSeed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(seedContent), 0o644))
	return path
}

func TestReadSkipsBlankAndMalformedLines(t *testing.T) {
	tasks, err := Read[types.Task](writeSeed(t))
	require.NoError(t, err)
	require.Len(t, tasks, 4)
	assert.Equal(t, "Buy groceries", tasks[0].Title)
	assert.True(t, tasks[1].Completed)
	assert.Equal(t, time.Date(2024, 9, 2, 12, 30, 0, 0, time.UTC), tasks[1].CreatedAt)
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read[types.Task](filepath.Join(t.TempDir(), "absent.jsonl"))
	assert.Error(t, err)
}

func TestWriteIsOneCompactLinePerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.jsonl")
	records := []types.Task{
		{ID: 1, Title: "a", CreatedAt: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)},
		{ID: 2, Title: "b", Completed: true, CreatedAt: time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, Write(path, records))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"id":1,"title":"a","completed":false,"createdAt":"2024-09-01T00:00:00Z"}`, lines[0])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestImportSkipsInvalidTitles(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBackend()

	n, err := Import(ctx, store, writeSeed(t))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(1), all[0].ID)
	assert.Equal(t, int64(4), all[2].ID, "file ids above the high-water mark are kept")
}

func TestSeedOnlyWhenEmpty(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBackend()
	path := writeSeed(t)

	n, err := Seed(ctx, store, path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = Seed(ctx, store, path)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestExportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := memory.NewBackend()
	_, err := Import(ctx, src, writeSeed(t))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "export.jsonl")
	n, err := Export(ctx, src, out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	dst := memory.NewBackend()
	_, err = Import(ctx, dst, out)
	require.NoError(t, err)

	want, err := src.List(ctx)
	require.NoError(t, err)
	got, err := dst.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
