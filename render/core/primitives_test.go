package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// outwardWinding checks every triangle's CCW normal points away from the origin.
func outwardWinding(t *testing.T, g *Geometry) {
	t.Helper()
	for i := 0; i < len(g.Indices); i += 3 {
		a := mgl32.Vec3(g.Vertices[g.Indices[i]].Position)
		b := mgl32.Vec3(g.Vertices[g.Indices[i+1]].Position)
		c := mgl32.Vec3(g.Vertices[g.Indices[i+2]].Position)
		n := b.Sub(a).Cross(c.Sub(a))
		if n.Len() < 1e-6 {
			continue // degenerate pole triangle
		}
		centroid := a.Add(b).Add(c).Mul(1.0 / 3)
		assert.Greater(t, n.Dot(centroid), float32(0), "triangle %d faces inward", i/3)
	}
}

func TestCube(t *testing.T) {
	g := Cube(2)
	require.NoError(t, g.Validate())
	assert.Len(t, g.Vertices, 24)
	assert.Len(t, g.Indices, 36)
	assert.Equal(t, AABB{{-1, -1, -1}, {1, 1, 1}}, g.Bounds())
	outwardWinding(t, g)
}

func TestUVSphere(t *testing.T) {
	g := UVSphere(1.5, 1)
	require.NoError(t, g.Validate())
	// 3 rings, 6 sectors
	assert.Len(t, g.Vertices, 4*7)
	assert.Len(t, g.Indices, 3*6*6)
	for _, v := range g.Vertices {
		assert.InDelta(t, 1.5, mgl32.Vec3(v.Position).Len(), 1e-5)
		assert.InDelta(t, 1.0, mgl32.Vec3(v.Normal).Len(), 1e-5)
	}
	outwardWinding(t, g)
}

func TestPlaneAndColored(t *testing.T) {
	g := Plane(2, 4).Colored([4]float32{1, 0, 0, 1})
	require.NoError(t, g.Validate())
	for _, v := range g.Vertices {
		assert.Equal(t, [4]float32{1, 0, 0, 1}, v.Color)
	}
	a := mgl32.Vec3(g.Vertices[0].Position)
	n := mgl32.Vec3(g.Vertices[1].Position).Sub(a).Cross(mgl32.Vec3(g.Vertices[2].Position).Sub(a))
	assert.Greater(t, n.Y(), float32(0))
}
