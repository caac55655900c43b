//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Test groups test targets.
type Test mg.Namespace

// All runs every test with the race detector.
func (Test) All() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Unit runs the tests without the race detector. The MongoDB tests skip
// unless TASKI_TEST_MONGO_URI is set.
func (Test) Unit() error {
	return sh.RunV(binGo, "test", "./...")
}

// Mongo runs the MongoDB store tests. TASKI_TEST_MONGO_URI must point at a
// running server.
func (Test) Mongo() error {
	if os.Getenv("TASKI_TEST_MONGO_URI") == "" {
		return fmt.Errorf("TASKI_TEST_MONGO_URI is not set")
	}
	return sh.RunV(binGo, "test", "-v", "./internal/mongodb/...")
}

// Cover writes a coverage profile to bin/cover.out and prints the summary.
func (Test) Cover() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	profile := binaryDir + "/cover.out"
	if err := sh.RunV(binGo, "test", "-coverprofile", profile, "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func", profile)
}
