//go:build mage

package main

import (
	"flag"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Serve builds taski and runs the server over the seed file with an
// in-memory store.
//
//	mage serve --addr :8080 --backend sqlite --static-dir web/dist
func Serve() error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", ":5000", "listen address")
	backend := fs.String("backend", "memory", "store backend")
	static := fs.String("static-dir", "", "directory of a prebuilt web UI")
	parseTargetFlags(fs)

	mg.Deps(Build)
	args := []string{"serve", "--addr", *addr, "--backend", *backend, "--seed", seedFile}
	if *static != "" {
		args = append(args, "--static-dir", *static)
	}
	return sh.RunV(filepath.Join(binaryDir, binaryName), args...)
}
