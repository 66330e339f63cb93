//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Opens the viewer window with the default config.
func (Run) Viewer() error {
	mg.Deps(Build.Viewer)
	fmt.Println("Run viewer...")
	_, err := executeCmd("bin/vizview", withStream())
	return err
}

// Renders 120 frames without a window and prints frame stats.
func (Run) Headless() error {
	_, err := executeCmd("go", withArgs("run", "./cmd/vizview", "-headless", "120"),
		withEnv("CGO_ENABLED=1"), withStream())
	return err
}
