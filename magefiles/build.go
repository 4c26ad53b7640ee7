//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/target"
)

type Build mg.Namespace

var shaderSources = []string{"main.vert", "main.frag", "shadow.vert", "shadow.frag"}

// Compiles every GLSL source under shaders/ into SPIR-V next to it.
// Up-to-date outputs are skipped.
func (Build) Shaders() error {
	for _, name := range shaderSources {
		src := filepath.Join("shaders", name)
		out := src + ".spv"
		stale, err := target.Path(out, src)
		if err != nil {
			return err
		}
		if !stale {
			continue
		}
		if _, err := executeCmd("glslc", withArgs(src, "-o", out), withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Compiles shaders and then builds the penumbra binary.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	if err := os.MkdirAll("bin", 0o755); err != nil {
		return err
	}
	fmt.Println("Building penumbra...")
	_, err := executeCmd("go", withArgs("build", "-o", filepath.Join("bin", "penumbra"), "."), withEnv("CGO_ENABLED", "1"), withStream())
	return err
}
