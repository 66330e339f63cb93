//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs every package test.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}

// Runs the tests that need no GPU or window: core, scene, gpu and shaders.
func (Test) Headless() error {
	_, err := executeCmd("go", withArgs("test", "-race",
		"./render/core/...", "./render/scene/...", "./render/gpu/...", "./render/shaders/..."), withStream())
	return err
}
