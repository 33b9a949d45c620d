//go:build mage

package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var Default = Build

var goEnv = map[string]string{"CGO_ENABLED": "0"}

// Build compiles the exportlib command into bin/.
func Build() error {
	mg.Deps(Tidy)
	return sh.RunWith(goEnv, "go", "build", "-trimpath", "-o", filepath.Join("bin", "exportlib"+exeSuffix()), "./cmd/exportlib")
}

// Tidy syncs go.mod and go.sum with the imported modules.
func Tidy() error {
	return sh.Run("go", "mod", "tidy")
}

// Test runs the unit tests.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Integration runs the tests that drive a real MinGW toolchain.
func Integration() error {
	return sh.RunWithV(map[string]string{"EXPORTLIB_INTEGRATION": "1"}, "go", "test", "-run", "Integration", "-v", ".")
}

// Lint runs go vet.
func Lint() error {
	return sh.RunV("go", "vet", "./...")
}

// Clean removes build output.
func Clean() error {
	return sh.Rm("bin")
}

func exeSuffix() string {
	if os.Getenv("GOOS") == "windows" {
		return ".exe"
	}
	return ""
}
