//go:build mage

// Package main contains Mage build targets for flash-quiz.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binDir  = "bin"
	binName = "flash-quiz"
	cmdPkg  = "./cmd/server"
	dataDir = "data"
)

// Default target when running mage with no arguments.
var Default = Build

// Build compiles the server binary into bin/.
func Build() error {
	mg.Deps(Vet)
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	if err := sh.RunV("go", "build", "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Vet runs go vet over every package.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Run starts the server from source.
func Run() error {
	return sh.RunV("go", "run", cmdPkg, "serve")
}

// Clean removes build output and the local database.
func Clean() error {
	for _, dir := range []string{binDir, dataDir} {
		if err := sh.Rm(dir); err != nil {
			return fmt.Errorf("removing %s: %w", dir, err)
		}
	}
	return nil
}
