//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for taski using Mage.
//
// Usage:
//
//	mage build          Compile the taski binary to bin/
//	mage test:all       Run every test
//	mage test:unit      Run tests without the race detector or Mongo
//	mage test:mongo     Run the MongoDB store tests against $TASKI_TEST_MONGO_URI
//	mage lint           Run golangci-lint
//	mage serve          Build and run the server over the seed file
//	mage clean          Remove build artifacts
//	mage install        Install taski to GOPATH/bin
//	mage stats          Print Go LOC and documentation word counts
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "taski"
	binaryDir  = "bin"
	cmdDir     = "./cmd/taski"
	seedFile   = "seed/todos.jsonl"
)

// Build compiles the taski binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-ldflags", ldflags(), "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// ldflags stamps the version from $TASKI_VERSION when set.
func ldflags() string {
	if v := os.Getenv("TASKI_VERSION"); v != "" {
		return "-X main.version=" + v
	}
	return ""
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}
