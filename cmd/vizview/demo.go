package main

import (
	"github.com/chewxy/math32"
	"github.com/gekko3d/vizcore/render/core"
	"github.com/gekko3d/vizcore/render/scene"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	layerBackground = "background"
	layerData       = "data"
	layerOverlay    = "overlay"
)

// populateDemo fills s with a ground plane, a grid of palette-colored data
// points and a marker overlay.
func populateDemo(s *scene.Scene, grid int) error {
	bg := s.AddLayer(layerBackground, -10)
	data := s.AddLayer(layerData, 0)
	overlay := s.AddLayer(layerOverlay, 10)

	ground := scene.NewMesh(core.Plane(12, 12), core.CeramicMaterial(mgl32.Vec3{0.35, 0.35, 0.4}))
	ground.Transform.Position = mgl32.Vec3{0, -1.5, 0}
	if err := bg.AddObject(ground); err != nil {
		return err
	}

	palette := core.DataPalette()
	sphere := core.UVSphere(0.25, 12)
	cube := core.Cube(0.4)
	spacing := float32(1.2)
	offset := spacing * float32(grid-1) / 2
	for i := 0; i < grid; i++ {
		for j := 0; j < grid; j++ {
			g := cube
			if (i+j)%2 == 0 {
				g = sphere
			}
			m := scene.NewMesh(g, palette[(i*grid+j)%len(palette)])
			x, z := float32(i)*spacing-offset, float32(j)*spacing-offset
			m.Transform.Position = mgl32.Vec3{x, 0.3 * math32.Sin(x+z), z}
			if g == cube {
				m.OnUpdate = scene.Spin(mgl32.Vec3{0, 1, 0}, 0.8)
			}
			if err := data.AddObject(m); err != nil {
				return err
			}
		}
	}

	marker := scene.NewMesh(core.Cube(0.15), core.NewMaterial(mgl32.Vec3{1, 1, 1}).WithEmissive(mgl32.Vec3{0.6, 0.6, 0.2}))
	marker.Transform.Position = mgl32.Vec3{0, 2, 0}
	marker.OnUpdate = scene.Spin(mgl32.Vec3{1, 1, 0}, 2)
	return overlay.AddObject(marker)
}
