// Package server exposes a types.Store over the /api/todos REST surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/taski/pkg/types"
)

// APIPrefix is where the task routes are mounted.
const APIPrefix = "/api/todos"

const (
	defaultMaxBodyBytes = 1 << 20
	shutdownTimeout     = 5 * time.Second
)

// Options configures a Server.
type Options struct {
	Store types.Store

	// AllowedOrigins lists CORS origins; "*" allows any. Empty means "*".
	AllowedOrigins []string

	// MaxBodyBytes caps request bodies. Zero means 1 MiB.
	MaxBodyBytes int64

	// StaticDir, when set, is served for every non-API path with index.html
	// as the fallback.
	StaticDir string

	Logger logrus.FieldLogger
}

// Server routes HTTP requests to the store.
type Server struct {
	store   types.Store
	log     logrus.FieldLogger
	handler http.Handler
}

// New builds the router and middleware chain.
func New(opts Options) *Server {
	s := &Server{store: opts.Store, log: opts.Logger}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := mux.NewRouter()
	api := r.PathPrefix(APIPrefix).Subrouter()
	api.HandleFunc("", s.listTasks).Methods(http.MethodGet)
	api.HandleFunc("", s.createTask).Methods(http.MethodPost)
	api.HandleFunc("/completed", s.deleteCompleted).Methods(http.MethodDelete)
	api.HandleFunc("/{id:[0-9]+}", s.getTask).Methods(http.MethodGet)
	api.HandleFunc("/{id:[0-9]+}", s.updateTask).Methods(http.MethodPut)
	api.HandleFunc("/{id:[0-9]+}", s.deleteTask).Methods(http.MethodDelete)
	api.NotFoundHandler = http.HandlerFunc(s.notFound)
	api.MethodNotAllowedHandler = http.HandlerFunc(s.methodNotAllowed)

	if opts.StaticDir != "" {
		r.PathPrefix("/").Handler(spaHandler{dir: opts.StaticDir})
	}

	s.handler = chain(r,
		requestLogger(s.log),
		corsMiddleware(origins),
		requestSizeLimit(opts.MaxBodyBytes),
	)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
