package main

import (
	"context"
	"testing"
	"time"

	"github.com/gekko3d/vizcore"
	"github.com/gekko3d/vizcore/render/gpu"
	"github.com/gekko3d/vizcore/render/scene"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopulateDemoLayers(t *testing.T) {
	s := scene.New()
	require.NoError(t, populateDemo(s, 3))

	layers := s.Layers()
	require.Len(t, layers, 3)
	data, err := s.Layer(layerData)
	require.NoError(t, err)
	assert.Equal(t, 9, data.Len())

	items := s.GenerateDrawSet()
	require.NotEmpty(t, items)
	assert.Equal(t, layerBackground, items[0].Layer)
	assert.Equal(t, layerOverlay, items[len(items)-1].Layer)
}

func TestHeadlessSession(t *testing.T) {
	cfg := vizcore.DefaultConfig()
	var rb *gpu.RecordingBackend
	s, err := vizcore.NewSession(cfg, func() (gpu.Backend, error) {
		rb = gpu.NewRecordingBackend(cfg.Window.Width, cfg.Window.Height)
		return rb, nil
	}, nil)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, populateDemo(s.Scene(), 2))

	for i := 0; i < 4; i++ {
		require.NoError(t, s.Frame(context.Background(), 16*time.Millisecond))
	}
	assert.Len(t, rb.Frames(), 4)
	assert.NotZero(t, s.Renderer().Stats().Triangles)
}

func TestInputKeysToggleLayersAndLights(t *testing.T) {
	cfg := vizcore.DefaultConfig()
	s, err := vizcore.NewSession(cfg, func() (gpu.Backend, error) {
		return gpu.NewRecordingBackend(64, 64), nil
	}, nil)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, populateDemo(s.Scene(), 1))

	in := newInput(s)
	in.key(glfw.KeyD)
	data, _ := s.Scene().Layer(layerData)
	assert.False(t, data.Visible())

	in.key(glfw.Key1)
	assert.False(t, s.Scene().Lights()[0].Enabled)
	assert.Equal(t, 2, s.Scene().Lighting().Count())

	eye := s.Scene().Camera().Eye()
	in.scroll(1)
	assert.Less(t, s.Scene().Camera().Eye().Len(), eye.Len())

	in.key(glfw.KeyR)
	assert.Equal(t, mgl32.Vec3{0, 0, 5}, s.Scene().Camera().Eye())
}
