package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

var white = [4]float32{1, 1, 1, 1}

// Cube is centered on the origin with flat per-face normals and CCW winding
// seen from outside.
func Cube(size float32) *Geometry {
	s := size / 2
	faces := []struct{ n, u, v mgl32.Vec3 }{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	}
	g := &Geometry{
		Vertices: make([]Vertex, 0, 24),
		Indices:  make([]uint32, 0, 36),
	}
	for _, f := range faces {
		base := uint32(len(g.Vertices))
		c := f.n.Mul(s)
		u, v := f.u.Mul(s), f.v.Mul(s)
		for _, corner := range []mgl32.Vec3{
			c.Sub(u).Sub(v),
			c.Add(u).Sub(v),
			c.Add(u).Add(v),
			c.Sub(u).Add(v),
		} {
			g.Vertices = append(g.Vertices, Vertex{Position: corner, Normal: f.n, Color: white})
		}
		g.Indices = append(g.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return g
}

// UVSphere uses at least 3 rings and twice as many sectors (minimum 6).
func UVSphere(radius float32, subdivisions int) *Geometry {
	rings := max(subdivisions, 3)
	sectors := max(rings*2, 6)

	g := &Geometry{
		Vertices: make([]Vertex, 0, (rings+1)*(sectors+1)),
		Indices:  make([]uint32, 0, rings*sectors*6),
	}
	for i := 0; i <= rings; i++ {
		lat := math32.Pi*float32(i)/float32(rings) - math32.Pi/2
		y, r := math32.Sin(lat), math32.Cos(lat)
		for j := 0; j <= sectors; j++ {
			lon := 2 * math32.Pi * float32(j) / float32(sectors)
			n := mgl32.Vec3{r * math32.Cos(lon), y, r * math32.Sin(lon)}
			g.Vertices = append(g.Vertices, Vertex{Position: n.Mul(radius), Normal: n, Color: white})
		}
	}
	stride := uint32(sectors + 1)
	for i := uint32(0); i < uint32(rings); i++ {
		for j := uint32(0); j < uint32(sectors); j++ {
			cur := i*stride + j
			up := cur + stride
			g.Indices = append(g.Indices, cur, up+1, cur+1, cur, up, up+1)
		}
	}
	return g
}

// Plane lies in XZ facing +Y.
func Plane(width, depth float32) *Geometry {
	w, d := width/2, depth/2
	up := [3]float32{0, 1, 0}
	return &Geometry{
		Vertices: []Vertex{
			{Position: [3]float32{-w, 0, d}, Normal: up, Color: white},
			{Position: [3]float32{w, 0, d}, Normal: up, Color: white},
			{Position: [3]float32{w, 0, -d}, Normal: up, Color: white},
			{Position: [3]float32{-w, 0, -d}, Normal: up, Color: white},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}

// Colored returns a copy of g with every vertex color set to rgba.
func (g *Geometry) Colored(rgba [4]float32) *Geometry {
	out := g.Clone()
	for i := range out.Vertices {
		out.Vertices[i].Color = rgba
	}
	return out
}
