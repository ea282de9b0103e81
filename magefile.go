//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default target - build the binary
var Default = Build

// Build builds the testpack binary
func Build() error {
	return sh.Run("go", "build", "-o", "bin/testpack", "./cmd/testpack")
}

// Test runs the test suite
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Vet runs go vet
func Vet() error {
	return sh.Run("go", "vet", "./...")
}

// QA runs all quality assurance checks
func QA() {
	mg.SerialDeps(Vet, Test)
}

// Clean removes build artifacts
func Clean() error {
	return sh.Rm("bin")
}
