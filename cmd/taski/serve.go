package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/taski/internal/jsonl"
	"github.com/mesh-intelligence/taski/internal/logging"
	"github.com/mesh-intelligence/taski/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr    string
		seed    string
		backend string
		static  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST service",
		Long: `Serve exposes the task store at /api/todos until interrupted.

With --seed (or seed_file in config.yaml) an empty store is first filled
from a JSONL file, one task per line.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.settings
			if addr != "" {
				s.listenAddr = addr
			}
			if seed != "" {
				s.seedFile = seed
			}
			if backend != "" {
				s.backend = backend
			}
			if static != "" {
				s.staticDir = static
			}

			store, err := openStore(s)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if s.seedFile != "" {
				n, err := jsonl.Seed(ctx, store, s.seedFile)
				if err != nil {
					return err
				}
				logging.Logger.WithFields(logrus.Fields{"file": s.seedFile, "tasks": n}).Info("seeded store")
			}

			srv := server.New(server.Options{
				Store:          store,
				AllowedOrigins: s.allowedOrigins,
				MaxBodyBytes:   s.maxBodyBytes,
				StaticDir:      s.staticDir,
				Logger:         logging.Logger,
			})
			logging.Logger.WithFields(logrus.Fields{
				"backend": s.backend,
				"addr":    s.listenAddr,
			}).Info("starting taski server")
			return srv.ListenAndServe(ctx, s.listenAddr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config: :5000)")
	cmd.Flags().StringVar(&seed, "seed", "", "JSONL file loaded into an empty store")
	cmd.Flags().StringVar(&backend, "backend", "", "store backend: sqlite, memory or mongo")
	cmd.Flags().StringVar(&static, "static-dir", "", "directory of a prebuilt web UI")
	return cmd
}

// contextOrBackground guards commands executed without a context.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
