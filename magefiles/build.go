//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Builds the vizview binary into bin/.
func (Build) Viewer() error {
	_, err := executeCmd("go", withArgs("build", "-o", "bin/vizview", "./cmd/vizview"), withStream())
	return err
}

// Runs go vet over the module.
func (Build) Vet() error {
	_, err := executeCmd("go", withArgs("vet", "./..."), withStream())
	return err
}
