package core

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Vertex is the interleaved vertex format consumed by the lit pipeline.
// Color multiplies the material albedo; alpha is carried to the output.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	Color    [4]float32
}

const VertexStride = 40

// Geometry is an indexed triangle list. Empty geometry is valid and draws nothing.
type Geometry struct {
	Vertices []Vertex
	Indices  []uint32
}

func (g *Geometry) Empty() bool {
	return g == nil || len(g.Vertices) == 0 || len(g.Indices) == 0
}

// Validate rejects non-finite vertex data and indices that do not form a
// triangle list over the vertex array.
func (g *Geometry) Validate() error {
	if g == nil {
		return fmt.Errorf("%w: nil geometry", ErrInvalidGeometry)
	}
	for i, v := range g.Vertices {
		if !finiteVec3(v.Position) {
			return fmt.Errorf("%w: vertex %d position %v", ErrInvalidGeometry, i, v.Position)
		}
		if !finiteVec3(v.Normal) {
			return fmt.Errorf("%w: vertex %d normal %v", ErrInvalidGeometry, i, v.Normal)
		}
		for _, c := range v.Color {
			if !finite(c) {
				return fmt.Errorf("%w: vertex %d color %v", ErrInvalidGeometry, i, v.Color)
			}
		}
	}
	if len(g.Indices)%3 != 0 {
		return fmt.Errorf("%w: %d indices is not a triangle list", ErrInvalidGeometry, len(g.Indices))
	}
	n := uint32(len(g.Vertices))
	for i, idx := range g.Indices {
		if idx >= n {
			return fmt.Errorf("%w: index %d = %d, vertex count %d", ErrInvalidGeometry, i, idx, n)
		}
	}
	return nil
}

// AABB is an axis-aligned box stored as {min, max}, matching the culling helpers.
type AABB [2]mgl32.Vec3

func EmptyAABB() AABB {
	inf := float32(math.Inf(1))
	return AABB{{inf, inf, inf}, {-inf, -inf, -inf}}
}

func (b AABB) Valid() bool {
	return b[0][0] <= b[1][0] && b[0][1] <= b[1][1] && b[0][2] <= b[1][2]
}

func (b AABB) Extend(p mgl32.Vec3) AABB {
	for i := 0; i < 3; i++ {
		if p[i] < b[0][i] {
			b[0][i] = p[i]
		}
		if p[i] > b[1][i] {
			b[1][i] = p[i]
		}
	}
	return b
}

func (b AABB) Finite() bool {
	return finiteVec3(b[0]) && finiteVec3(b[1])
}

func (b AABB) Center() mgl32.Vec3 {
	return b[0].Add(b[1]).Mul(0.5)
}

// Transform returns the world-space box enclosing all eight transformed corners.
func (b AABB) Transform(m mgl32.Mat4) AABB {
	out := EmptyAABB()
	for i := 0; i < 8; i++ {
		c := mgl32.Vec3{b[i&1][0], b[(i>>1)&1][1], b[(i>>2)&1][2]}
		out = out.Extend(m.Mul4x1(c.Vec4(1)).Vec3())
	}
	return out
}

// Bounds returns the object-space box of all vertices. Empty geometry yields an
// invalid box.
func (g *Geometry) Bounds() AABB {
	b := EmptyAABB()
	if g == nil {
		return b
	}
	for _, v := range g.Vertices {
		b = b.Extend(v.Position)
	}
	return b
}

// Transformed returns a copy with positions moved by m and normals by the
// inverse-transpose of its upper 3x3. The copy owns its index slice, so
// appending to it never touches g.
func (g *Geometry) Transformed(m mgl32.Mat4) *Geometry {
	out := &Geometry{
		Vertices: make([]Vertex, len(g.Vertices)),
		Indices:  append([]uint32(nil), g.Indices...),
	}
	nm := NormalMatrix(m)
	for i, v := range g.Vertices {
		p := m.Mul4x1(mgl32.Vec3(v.Position).Vec4(1))
		n := normalizeOrZero(nm.Mul3x1(v.Normal))
		out.Vertices[i] = Vertex{
			Position: [3]float32{p[0], p[1], p[2]},
			Normal:   [3]float32(n),
			Color:    v.Color,
		}
	}
	return out
}

// Append concatenates o onto g, rebasing its indices.
func (g *Geometry) Append(o *Geometry) {
	base := uint32(len(g.Vertices))
	g.Vertices = append(g.Vertices, o.Vertices...)
	for _, idx := range o.Indices {
		g.Indices = append(g.Indices, idx+base)
	}
}

func (g *Geometry) Clone() *Geometry {
	return &Geometry{
		Vertices: append([]Vertex(nil), g.Vertices...),
		Indices:  append([]uint32(nil), g.Indices...),
	}
}
