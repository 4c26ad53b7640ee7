//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles shaders and runs the testbed with penumbra.toml.
func (Run) Engine() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run engine...")
	if _, err := executeCmd("go", withArgs("run", ".", "-config", "penumbra.toml"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the unit tests. Tests never open a window or a Vulkan device.
func (Run) Tests() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}

// Tidies go.mod and vets the module.
func (Run) Tidy() error {
	if _, err := executeCmd("go", withArgs("mod", "tidy")); err != nil {
		return fmt.Errorf("failed to run go mod tidy: %w", err)
	}
	_, err := executeCmd("go", withArgs("vet", "./..."), withStream())
	return err
}
