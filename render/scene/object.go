package scene

import (
	"errors"
	"fmt"

	"github.com/gekko3d/vizcore/render/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Object is anything a layer can hold. Bounds is in world space; an invalid
// (empty) box means there is nothing to draw.
type Object interface {
	ID() uuid.UUID
	Update(dt float32) error
	Bounds() (core.AABB, error)
	Render() ([]core.DrawItem, error)
}

// Destroyer is implemented by objects that hold resources beyond the scene.
type Destroyer interface {
	Destroy()
}

var ErrNoGeometry = errors.New("mesh has no geometry")

// UpdateFunc animates a mesh between frames.
type UpdateFunc func(m *Mesh, dt float32) error

// Mesh is the stock Object: one geometry, one material, one transform.
type Mesh struct {
	id        uuid.UUID
	Geometry  *core.Geometry
	Material  core.Material
	Transform core.Transform
	OnUpdate  UpdateFunc
}

func NewMesh(g *core.Geometry, m core.Material) *Mesh {
	return &Mesh{
		id:        uuid.New(),
		Geometry:  g,
		Material:  m,
		Transform: core.NewTransform(),
	}
}

func (m *Mesh) ID() uuid.UUID { return m.id }

func (m *Mesh) Update(dt float32) error {
	if m.OnUpdate == nil {
		return nil
	}
	return m.OnUpdate(m, dt)
}

func (m *Mesh) Bounds() (core.AABB, error) {
	if m.Geometry == nil {
		return core.AABB{}, ErrNoGeometry
	}
	local := m.Geometry.Bounds()
	if !local.Valid() {
		return local, nil
	}
	world := local.Transform(m.Transform.Matrix())
	if !world.Finite() {
		return core.AABB{}, fmt.Errorf("non-finite bounds for mesh %s", m.id)
	}
	return world, nil
}

func (m *Mesh) Render() ([]core.DrawItem, error) {
	if m.Geometry == nil {
		return nil, ErrNoGeometry
	}
	return []core.DrawItem{{
		Geometry:  m.Geometry,
		Material:  m.Material,
		Transform: m.Transform.Matrix(),
		Object:    m.id,
	}}, nil
}

// Spin returns an UpdateFunc rotating the mesh around axis at rate rad/s.
func Spin(axis mgl32.Vec3, rate float32) UpdateFunc {
	axis = axis.Normalize()
	return func(m *Mesh, dt float32) error {
		m.Transform.Rotation = mgl32.QuatRotate(rate*dt, axis).Mul(m.Transform.Rotation).Normalize()
		return nil
	}
}
