package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// CPU reference of the lit fragment shader. The GPU path in shaders/lit.wgsl
// evaluates the same terms in the same order.

const (
	attenuationLinear    = 0.09
	attenuationQuadratic = 0.032
	specularPower        = 32.0
	displayGamma         = 2.2
)

// Attenuation is the distance falloff applied to point and spot lights.
func Attenuation(d float32) float32 {
	return 1.0 / (1.0 + attenuationLinear*d + attenuationQuadratic*d*d)
}

// SpotFactor returns the cone falloff for a fragment whose direction from the
// light is toFragment (normalized). Zero outside the outer cone.
func SpotFactor(l Light, toFragment mgl32.Vec3) float32 {
	cosTheta := toFragment.Dot(normalizeOrZero(l.Direction))
	cosOuter := math32.Cos(l.OuterAngle)
	cosInner := math32.Cos(l.InnerAngle)
	if cosTheta < cosOuter {
		return 0
	}
	return Smoothstep(cosOuter, cosInner, cosTheta)
}

// Contribution returns the diffuse and specular radiance one light adds at
// point p with unit normal n, seen from eye.
func Contribution(l Light, m Material, p, n, eye mgl32.Vec3) (diffuse, specular mgl32.Vec3) {
	if !l.Enabled {
		return
	}
	var toLight mgl32.Vec3
	scale := l.Intensity
	switch l.Kind {
	case LightDirectional:
		toLight = normalizeOrZero(l.Direction.Mul(-1))
	case LightPoint, LightSpot:
		delta := l.Position.Sub(p)
		d := math32.Sqrt(delta.Dot(delta))
		toLight = normalizeOrZero(delta)
		scale *= Attenuation(d)
		if l.Kind == LightSpot {
			scale *= SpotFactor(l, toLight.Mul(-1))
		}
	default:
		return
	}
	if scale == 0 {
		return
	}

	nDotL := math32.Max(n.Dot(toLight), 0)
	diffuse = mulVec3(m.Albedo, l.Color).Mul(nDotL * scale)

	shininess := specularPower * (1 - m.Roughness)
	if shininess > 0 {
		view := normalizeOrZero(eye.Sub(p))
		half := normalizeOrZero(toLight.Add(view))
		s := math32.Pow(math32.Max(n.Dot(half), 0), shininess) * scale * (1 - m.Roughness)
		specular = l.Color.Mul(s)
	}
	return diffuse, specular
}

// Shade returns linear HDR radiance: ambient + every active light + emissive.
func Shade(set *LightingSet, m Material, p, n, eye mgl32.Vec3) mgl32.Vec3 {
	n = normalizeOrZero(n)
	c := mulVec3(set.AmbientColor(), m.Albedo).Mul(set.AmbientIntensity())
	for _, l := range set.lights {
		d, s := Contribution(l, m, p, n, eye)
		c = c.Add(d).Add(s)
	}
	return c.Add(m.Emissive)
}

// ToneMap applies Reinhard per channel.
func ToneMap(c mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{c[0] / (c[0] + 1), c[1] / (c[1] + 1), c[2] / (c[2] + 1)}
}

func GammaEncode(c mgl32.Vec3) mgl32.Vec3 {
	const inv = 1.0 / displayGamma
	return mgl32.Vec3{math32.Pow(c[0], inv), math32.Pow(c[1], inv), math32.Pow(c[2], inv)}
}

// ShadeFragment is the full fragment pipeline: Shade, then ToneMap, then
// GammaEncode.
func ShadeFragment(set *LightingSet, m Material, p, n, eye mgl32.Vec3) mgl32.Vec3 {
	return GammaEncode(ToneMap(Shade(set, m, p, n, eye)))
}

func mulVec3(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}
