package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/taski/internal/logging"
	"github.com/mesh-intelligence/taski/internal/memory"
	"github.com/mesh-intelligence/taski/pkg/types"
)

func newTestServer(t *testing.T, opts Options) (*Server, types.Store) {
	t.Helper()
	if opts.Store == nil {
		opts.Store = memory.NewBackend()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return New(opts), opts.Store
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func seed(t *testing.T, store types.Store, tasks ...types.Task) {
	t.Helper()
	for i := range tasks {
		_, err := store.Create(context.Background(), &tasks[i])
		require.NoError(t, err)
	}
}

func TestListTasks(t *testing.T) {
	s, store := newTestServer(t, Options{})

	rec := do(t, s, http.MethodGet, APIPrefix, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `[]`, rec.Body.String())

	seed(t, store, types.Task{Title: "A"}, types.Task{Title: "B", Completed: true})
	rec = do(t, s, http.MethodGet, APIPrefix, "")
	tasks := decode[[]types.Task](t, rec)
	require.Len(t, tasks, 2)
	assert.Equal(t, "A", tasks[0].Title)
	assert.True(t, tasks[1].Completed)
}

func TestGetTask(t *testing.T) {
	s, store := newTestServer(t, Options{})
	seed(t, store, types.Task{Title: "A", Description: "first"})

	rec := do(t, s, http.MethodGet, APIPrefix+"/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	task := decode[types.Task](t, rec)
	assert.Equal(t, int64(1), task.ID)
	assert.Equal(t, "first", task.Description)

	rec = do(t, s, http.MethodGet, APIPrefix+"/99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, types.ErrNotFound.Error(), decode[errorResponse](t, rec).Error)
}

func TestCreateTask(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantID   int64
	}{
		{"assigns id", `{"title":"Buy milk"}`, http.StatusCreated, 1},
		{"honors higher client id", `{"id":6,"title":"Call mom","completed":false}`, http.StatusCreated, 6},
		{"empty title", `{"title":"  "}`, http.StatusBadRequest, 0},
		{"malformed json", `{"title":`, http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, Options{})
			rec := do(t, s, http.MethodPost, APIPrefix, tt.body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusCreated {
				assert.NotEmpty(t, decode[errorResponse](t, rec).Error)
				return
			}
			task := decode[types.Task](t, rec)
			assert.Equal(t, tt.wantID, task.ID)
			assert.False(t, task.Completed)
			assert.False(t, task.CreatedAt.IsZero())
		})
	}
}

func TestCreateNeverOverflowsIDs(t *testing.T) {
	s, store := newTestServer(t, Options{})
	rec := do(t, s, http.MethodPost, APIPrefix, `{"id":9223372036854775807,"title":"huge"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1), decode[types.Task](t, rec).ID)

	seed(t, store, types.Task{ID: math.MaxInt64 - 1, Title: "near the end"})
	rec = do(t, s, http.MethodPost, APIPrefix, `{"title":"last"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, int64(math.MaxInt64), decode[types.Task](t, rec).ID)

	rec = do(t, s, http.MethodGet, APIPrefix+"/9223372036854775807", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPost, APIPrefix, `{"title":"next"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error, "exhausted")
}

func TestUpdateTask(t *testing.T) {
	s, store := newTestServer(t, Options{})
	seed(t, store, types.Task{Title: "A", Description: "keep"})

	rec := do(t, s, http.MethodPut, APIPrefix+"/1", `{"id":42,"completed":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	task := decode[types.Task](t, rec)
	assert.Equal(t, int64(1), task.ID)
	assert.Equal(t, "A", task.Title)
	assert.Equal(t, "keep", task.Description)
	assert.True(t, task.Completed)

	rec = do(t, s, http.MethodPut, APIPrefix+"/1", `{"title":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPut, APIPrefix+"/7", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteTask(t *testing.T) {
	s, store := newTestServer(t, Options{})
	seed(t, store, types.Task{Title: "A"})

	rec := do(t, s, http.MethodDelete, APIPrefix+"/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, msgDeleted, decode[messageResponse](t, rec).Message)

	rec = do(t, s, http.MethodDelete, APIPrefix+"/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteCompleted(t *testing.T) {
	s, store := newTestServer(t, Options{})
	seed(t, store,
		types.Task{Title: "A"},
		types.Task{Title: "B", Completed: true},
		types.Task{Title: "C", Completed: true},
	)

	rec := do(t, s, http.MethodDelete, APIPrefix+"/completed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, msgCompletedDeleted, decode[messageResponse](t, rec).Message)

	left, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "A", left[0].Title)
}

func TestUnknownRoutes(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rec := do(t, s, http.MethodGet, APIPrefix+"/abc", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "route not found", decode[errorResponse](t, rec).Error)

	rec = do(t, s, http.MethodPatch, APIPrefix+"/1", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type failingStore struct {
	types.Store
}

func (failingStore) List(context.Context) ([]*types.Task, error) {
	return nil, errors.New("disk on fire")
}

func (failingStore) DeleteCompleted(context.Context) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestStoreFailureIs500(t *testing.T) {
	s, _ := newTestServer(t, Options{Store: failingStore{}})

	rec := do(t, s, http.MethodGet, APIPrefix, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "disk on fire", decode[errorResponse](t, rec).Error)

	rec = do(t, s, http.MethodDelete, APIPrefix+"/completed", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORS(t *testing.T) {
	t.Run("preflight", func(t *testing.T) {
		s, _ := newTestServer(t, Options{})
		r := httptest.NewRequest(http.MethodOptions, APIPrefix, nil)
		r.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, r)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
	})

	t.Run("restricted origins", func(t *testing.T) {
		s, _ := newTestServer(t, Options{AllowedOrigins: []string{"https://taski.example"}})

		r := httptest.NewRequest(http.MethodGet, APIPrefix, nil)
		r.Header.Set("Origin", "https://taski.example")
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, r)
		assert.Equal(t, "https://taski.example", rec.Header().Get("Access-Control-Allow-Origin"))

		r = httptest.NewRequest(http.MethodGet, APIPrefix, nil)
		r.Header.Set("Origin", "https://evil.example")
		rec = httptest.NewRecorder()
		s.ServeHTTP(rec, r)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequestSizeLimit(t *testing.T) {
	s, _ := newTestServer(t, Options{MaxBodyBytes: 64})
	body := `{"title":"` + strings.Repeat("x", 200) + `"}`

	rec := do(t, s, http.MethodPost, APIPrefix, body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := logging.Discard()
	log.SetOutput(&buf)
	s, _ := newTestServer(t, Options{Logger: log})

	rec := do(t, s, http.MethodGet, APIPrefix, "")
	id := rec.Header().Get(RequestIDHeader)
	assert.Len(t, id, 36)
	assert.Contains(t, buf.String(), id)
	assert.Contains(t, buf.String(), "duration=")

	r := httptest.NewRequest(http.MethodGet, APIPrefix, nil)
	r.Header.Set(RequestIDHeader, "caller-chosen")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, r)
	assert.Equal(t, "caller-chosen", rec.Header().Get(RequestIDHeader))
}

func TestStaticFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))
	s, _ := newTestServer(t, Options{StaticDir: dir})

	rec := do(t, s, http.MethodGet, "/app.js", "")
	assert.Equal(t, "console.log(1)", rec.Body.String())

	rec = do(t, s, http.MethodGet, "/some/client/route", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>app</html>", rec.Body.String())

	rec = do(t, s, http.MethodGet, APIPrefix, "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
