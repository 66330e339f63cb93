package shaders

import (
	_ "embed"
)

// LitWGSL is the forward lit pipeline: vs_main transforms world-space
// vertices, fs_main shades with up to 8 lights, Reinhard and gamma.
//
//go:embed lit.wgsl
var LitWGSL string
