package core

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// DrawItem is one unit of work handed from the scene to the renderer.
// Geometry stays in object space; Transform places it in the world.
type DrawItem struct {
	Geometry  *Geometry
	Material  Material
	Transform mgl32.Mat4
	Layer     string
	ZOrder    int
	Object    uuid.UUID
}
