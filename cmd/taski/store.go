package main

import (
	"fmt"

	"github.com/mesh-intelligence/taski/internal/logging"
	"github.com/mesh-intelligence/taski/internal/memory"
	"github.com/mesh-intelligence/taski/internal/mongodb"
	"github.com/mesh-intelligence/taski/internal/sqlite"
	"github.com/mesh-intelligence/taski/pkg/types"
)

// openStore attaches the configured backend. The caller must Close it.
func openStore(s *settings) (types.Store, error) {
	cfg := s.storeConfig()
	if err := cfg.Validate(); err != nil {
		return nil, usageError{fmt.Errorf("store config: %w", err)}
	}

	var (
		store types.Store
		err   error
	)
	switch cfg.Backend {
	case types.BackendMemory:
		store = memory.NewBackend()
	case types.BackendMongo:
		store, err = mongodb.Open(cfg)
	default:
		store, err = sqlite.Open(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("attach %s backend: %w", cfg.Backend, err)
	}

	logging.Logger.WithField("backend", cfg.Backend).Debug("store attached")
	return store, nil
}
