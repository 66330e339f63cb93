package core

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triangle() *Geometry {
	return &Geometry{
		Vertices: []Vertex{
			{Position: [3]float32{0, 0, 0}, Normal: [3]float32{0, 0, 1}, Color: white},
			{Position: [3]float32{1, 0, 0}, Normal: [3]float32{0, 0, 1}, Color: white},
			{Position: [3]float32{0, 1, 0}, Normal: [3]float32{0, 0, 1}, Color: white},
		},
		Indices: []uint32{0, 1, 2},
	}
}

func TestGeometryValidate(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	tests := []struct {
		name   string
		mutate func(g *Geometry)
		ok     bool
	}{
		{"valid", func(g *Geometry) {}, true},
		{"empty", func(g *Geometry) { g.Vertices, g.Indices = nil, nil }, true},
		{"nan position", func(g *Geometry) { g.Vertices[1].Position[0] = nan }, false},
		{"inf normal", func(g *Geometry) { g.Vertices[2].Normal[2] = inf }, false},
		{"nan color", func(g *Geometry) { g.Vertices[0].Color[3] = nan }, false},
		{"index out of range", func(g *Geometry) { g.Indices[2] = 3 }, false},
		{"partial triangle", func(g *Geometry) { g.Indices = g.Indices[:2] }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := triangle()
			tc.mutate(g)
			err := g.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidGeometry)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestGeometryBoundsAndTransform(t *testing.T) {
	g := triangle()
	b := g.Bounds()
	require.True(t, b.Valid())
	assert.Equal(t, AABB{{0, 0, 0}, {1, 1, 0}}, b)

	assert.False(t, (&Geometry{}).Bounds().Valid())

	m := mgl32.Translate3D(10, 0, 0).Mul4(mgl32.Scale3D(2, 2, 2))
	wb := b.Transform(m)
	assertVec3InDelta(t, mgl32.Vec3{10, 0, 0}, wb[0], eps)
	assertVec3InDelta(t, mgl32.Vec3{12, 2, 0}, wb[1], eps)
}

func TestGeometryTransformedNormals(t *testing.T) {
	g := triangle()
	// non-uniform scale must not skew normals
	m := mgl32.Scale3D(4, 1, 1).Mul4(mgl32.HomogRotate3DY(math.Pi / 2))
	out := g.Transformed(m)

	assert.Equal(t, g.Indices, out.Indices)
	for _, v := range out.Vertices {
		assert.InDelta(t, 1.0, mgl32.Vec3(v.Normal).Len(), eps)
		assert.InDelta(t, 1.0, v.Normal[0], eps)
	}
	assertVec3InDelta(t, mgl32.Vec3{0, 0, -1}, out.Vertices[1].Position, eps)
}

func TestGeometryAppendRebasesIndices(t *testing.T) {
	g := triangle()
	g.Append(triangle())
	assert.Len(t, g.Vertices, 6)
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5}, g.Indices)
	assert.NoError(t, g.Validate())
}

func TestTransformInverse(t *testing.T) {
	tr := NewTransform()
	tr.Position = mgl32.Vec3{1, 2, 3}
	tr.Rotation = mgl32.QuatRotate(0.7, mgl32.Vec3{0, 1, 0})
	tr.Scale = mgl32.Vec3{2, 3, 4}

	id := tr.Matrix().Mul4(tr.Inverse())
	assert.True(t, id.ApproxEqualThreshold(mgl32.Ident4(), 1e-5))
}

func TestGeometryTransformedOwnsIndices(t *testing.T) {
	all := []uint32{0, 1, 2, 0, 1, 2}
	g := &Geometry{Vertices: make([]Vertex, 3), Indices: all[:3]}

	world := g.Transformed(mgl32.Ident4())
	world.Append(g)
	world.Indices[0] = 7

	assert.Equal(t, []uint32{0, 1, 2, 0, 1, 2}, all)
}
