package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/constraints"
)

func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Smoothstep is the Hermite interpolation used by shading languages.
// When edge0 >= edge1 it degrades to a hard step at edge0.
func Smoothstep(edge0, edge1, x float32) float32 {
	if edge0 >= edge1 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	t := Clamp((x-edge0)/(edge1-edge0), 0, 1)
	return t * t * (3 - 2*t)
}

// normalizeOrZero avoids the NaN mgl32 produces for zero-length vectors.
func normalizeOrZero(v mgl32.Vec3) mgl32.Vec3 {
	l := math32.Sqrt(v.Dot(v))
	if l == 0 {
		return mgl32.Vec3{}
	}
	return v.Mul(1 / l)
}

func finite(f float32) bool {
	return !math32.IsNaN(f) && !math32.IsInf(f, 0)
}

func finiteVec3(v mgl32.Vec3) bool {
	return finite(v[0]) && finite(v[1]) && finite(v[2])
}

// FiniteMat4 reports whether every element of m is a real number.
func FiniteMat4(m mgl32.Mat4) bool {
	for _, f := range m {
		if !finite(f) {
			return false
		}
	}
	return true
}
