package vizcore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gekko3d/vizcore/render/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[window]
title = "bench"
width = 800
height = 600

[renderer]
surface_timeout_ms = 40
submit_timeout_ms = 80
pool_budget_mb = 64
present_mode = "mailbox"

[camera]
eye = [0.0, 2.0, 8.0]
fov_degrees = 60.0

[lighting]
ambient_intensity = 0.5

[[lighting.lights]]
type = "directional"
direction = [0.0, -1.0, 0.0]
color = [1.0, 1.0, 1.0]
intensity = 1.5

[[lighting.lights]]
type = "spot"
position = [0.0, 4.0, 0.0]
direction = [0.0, -1.0, 0.0]
color = [1.0, 0.5, 0.2]
intensity = 3.0
inner_degrees = 15.0
outer_degrees = 30.0
enabled = false

[log]
level = "debug"
`

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	set, err := cfg.LightingSet()
	require.NoError(t, err)
	assert.Equal(t, 3, set.Count())
	assert.Equal(t, core.DefaultAmbientIntensity, set.AmbientIntensity())
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "bench", cfg.Window.Title)
	assert.Equal(t, 800, cfg.Window.Width)
	assert.True(t, cfg.Renderer.MergeBatches, "unset keys keep their defaults")

	opts := cfg.RendererOptions(nil)
	assert.Equal(t, 40*time.Millisecond, opts.SurfaceTimeout)
	assert.Equal(t, 80*time.Millisecond, opts.SubmitTimeout)
	assert.Equal(t, uint64(64<<20), opts.PoolBudget)

	lights, err := cfg.Lights()
	require.NoError(t, err)
	require.Len(t, lights, 2)
	assert.Equal(t, core.LightDirectional, lights[0].Kind)
	assert.True(t, lights[0].Enabled)
	assert.Equal(t, core.LightSpot, lights[1].Kind)
	assert.False(t, lights[1].Enabled)
	assert.InDelta(t, mgl32.DegToRad(30), lights[1].OuterAngle, 1e-6)

	set, err := cfg.LightingSet()
	require.NoError(t, err)
	assert.Equal(t, 1, set.Count(), "disabled lights are not in the set")

	cam := core.NewCamera()
	cfg.ApplyCamera(cam)
	assert.Equal(t, mgl32.Vec3{0, 2, 8}, cam.Eye())
	assert.InDelta(t, mgl32.DegToRad(60), cam.FovY(), 1e-6)
}

func TestParseConfigKeepsDefaultLights(t *testing.T) {
	cfg, err := ParseConfig([]byte("[window]\nwidth = 320\nheight = 200\n"))
	require.NoError(t, err)
	assert.Len(t, cfg.Lighting.Lights, 3)
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"syntax", "[window\n"},
		{"unknown key", "[window]\ncolour = 3\n"},
		{"zero timeout", "[renderer]\nsubmit_timeout_ms = 0\n"},
		{"bad present mode", "[renderer]\npresent_mode = \"vsync-ish\"\n"},
		{"clip range", "[camera]\nnear = 5.0\nfar = 1.0\n"},
		{"light type", "[[lighting.lights]]\ntype = \"area\"\n"},
		{"spot without cone", "[[lighting.lights]]\ntype = \"spot\"\ndirection = [0.0, -1.0, 0.0]\n"},
		{"directional without direction", "[[lighting.lights]]\ntype = \"directional\"\n"},
		{"log level", "[log]\nlevel = \"loud\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.toml))
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrConfiguration)
			assert.True(t, core.IsFatal(err))
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viz.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "mailbox", cfg.Renderer.PresentMode)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestConfigMarshalRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	data, err := cfg.Marshal()
	require.NoError(t, err)

	back, err := ParseConfig(data)
	require.NoError(t, err)
	assert.Equal(t, cfg.Renderer, back.Renderer)
	assert.Len(t, back.Lighting.Lights, len(cfg.Lighting.Lights))
}
