package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

type Material struct {
	Albedo    mgl32.Vec3
	Metallic  float32
	Roughness float32
	AO        float32
	Emissive  mgl32.Vec3
}

func NewMaterial(albedo mgl32.Vec3) Material {
	return Material{
		Albedo:    albedo,
		Roughness: 0.5,
		AO:        1.0,
	}
}

func DefaultMaterial() Material {
	return NewMaterial(mgl32.Vec3{1, 1, 1})
}

// Validate rejects materials that would upload NaN or Inf to the shader.
func (m Material) Validate() error {
	if !finiteVec3(m.Albedo) || !finiteVec3(m.Emissive) || !finite(m.Metallic) || !finite(m.Roughness) || !finite(m.AO) {
		return fmt.Errorf("%w: non-finite material %+v", ErrValidation, m)
	}
	return nil
}

func (m Material) WithMetallic(v float32) Material {
	m.Metallic = Clamp(v, 0, 1)
	return m
}

func (m Material) WithRoughness(v float32) Material {
	m.Roughness = Clamp(v, 0, 1)
	return m
}

func (m Material) WithAO(v float32) Material {
	m.AO = Clamp(v, 0, 1)
	return m
}

func (m Material) WithEmissive(c mgl32.Vec3) Material {
	m.Emissive = c
	return m
}

// Tinted multiplies the albedo component-wise, as a vertex color does.
func (m Material) Tinted(rgb mgl32.Vec3) Material {
	m.Albedo = mgl32.Vec3{m.Albedo[0] * rgb[0], m.Albedo[1] * rgb[1], m.Albedo[2] * rgb[2]}
	return m
}

func PlasticMaterial(c mgl32.Vec3) Material {
	return NewMaterial(c).WithMetallic(0).WithRoughness(0.7)
}

func MetalMaterial(c mgl32.Vec3) Material {
	return NewMaterial(c).WithMetallic(1).WithRoughness(0.2)
}

func GlassMaterial(c mgl32.Vec3) Material {
	return NewMaterial(c).WithMetallic(0).WithRoughness(0)
}

func CeramicMaterial(c mgl32.Vec3) Material {
	return NewMaterial(c).WithMetallic(0).WithRoughness(0.8)
}

// DataPalette holds the materials used for data points, surfaces, grid lines
// and highlights, in that order.
func DataPalette() []Material {
	return []Material{
		PlasticMaterial(mgl32.Vec3{0.2, 0.6, 1.0}),
		GlassMaterial(mgl32.Vec3{0.8, 0.9, 1.0}).WithRoughness(0.3),
		MetalMaterial(mgl32.Vec3{0.7, 0.7, 0.8}).WithRoughness(0.6),
		NewMaterial(mgl32.Vec3{1.0, 0.4, 0.2}).WithEmissive(mgl32.Vec3{0.3, 0.1, 0.0}),
	}
}
