//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

const toolPackage = "./cmd/shadercache"

// Tidies the module and installs the shadercache binary.
func (Build) Tool() error {
	if err := goTidy(); err != nil {
		return err
	}
	if _, err := executeCmd("go", withArgs("install", toolPackage), withStream()); err != nil {
		return err
	}
	return nil
}

// Compiles the embedded shared shaders to check they still build.
func (Build) Shaders() error {
	sources, err := filepath.Glob("engine/systems/shaders/*.wgsl")
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no shared shaders found")
	}
	args := append([]string{"run", toolPackage, "compile", "--host-prelude"}, sources...)
	if _, err := executeCmd("go", withArgs(args...), withStream()); err != nil {
		return err
	}
	return nil
}
