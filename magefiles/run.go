//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Prints the configuration the tool would use.
func (Run) Config() error {
	if _, err := executeCmd("go", withArgs("run", toolPackage, "config", "show"), withStream()); err != nil {
		return err
	}
	return nil
}

type Test mg.Namespace

// Runs the unit tests.
func (Test) Unit() error {
	if _, err := executeCmd("go", withArgs("test", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the unit tests with the race detector.
func (Test) Race() error {
	if _, err := executeCmd("go", withArgs("test", "-race", "./..."), withEnv("CGO_ENABLED=1"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs only the storage tests (disk cache, usage profiler, pipeline blob).
func (Test) Cache() error {
	if _, err := executeCmd("go", withArgs("test", "-count=1", "./..."), withDir("engine/cache"), withStream()); err != nil {
		return err
	}
	return nil
}

type Lint mg.Namespace

// Runs go vet over every package.
func (Lint) Vet() error {
	if _, err := executeCmd("go", withArgs("vet", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}
