package vizcore

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chewxy/math32"
	"github.com/gekko3d/vizcore/render/core"
	"github.com/gekko3d/vizcore/render/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
)

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

type RendererConfig struct {
	SurfaceTimeoutMS int        `toml:"surface_timeout_ms"`
	SubmitTimeoutMS  int        `toml:"submit_timeout_ms"`
	PoolBudgetMB     int        `toml:"pool_budget_mb"`
	MergeBatches     bool       `toml:"merge_batches"`
	Culling          bool       `toml:"culling"`
	Workers          int        `toml:"workers"`
	PresentMode      string     `toml:"present_mode"`
	ClearColor       [4]float64 `toml:"clear_color"`
}

type CameraConfig struct {
	Eye        [3]float32 `toml:"eye"`
	Target     [3]float32 `toml:"target"`
	Up         [3]float32 `toml:"up"`
	FovDegrees float32    `toml:"fov_degrees"`
	Near       float32    `toml:"near"`
	Far        float32    `toml:"far"`
}

type LightConfig struct {
	Type      string     `toml:"type"`
	Position  [3]float32 `toml:"position"`
	Direction [3]float32 `toml:"direction"`
	Color     [3]float32 `toml:"color"`
	Intensity float32    `toml:"intensity"`
	// Enabled defaults to true when omitted.
	Enabled      *bool   `toml:"enabled"`
	Range        float32 `toml:"range"`
	InnerDegrees float32 `toml:"inner_degrees"`
	OuterDegrees float32 `toml:"outer_degrees"`
}

type LightingConfig struct {
	AmbientColor     [3]float32    `toml:"ambient_color"`
	AmbientIntensity float32       `toml:"ambient_intensity"`
	Lights           []LightConfig `toml:"lights"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Prefix string `toml:"prefix"`
}

// Config is the viewer configuration file.
type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Camera   CameraConfig   `toml:"camera"`
	Lighting LightingConfig `toml:"lighting"`
	Log      LogConfig      `toml:"log"`
}

func DefaultConfig() Config {
	opts := gpu.DefaultOptions()
	cfg := Config{
		Window: WindowConfig{Title: "vizview", Width: 1280, Height: 720},
		Renderer: RendererConfig{
			SurfaceTimeoutMS: int(opts.SurfaceTimeout / time.Millisecond),
			SubmitTimeoutMS:  int(opts.SubmitTimeout / time.Millisecond),
			PoolBudgetMB:     int(opts.PoolBudget >> 20),
			MergeBatches:     opts.MergeBatches,
			Culling:          true,
			Workers:          4,
			PresentMode:      "fifo",
			ClearColor:       [4]float64{0.05, 0.05, 0.08, 1},
		},
		Camera: CameraConfig{
			Eye:        [3]float32{0, 0, 5},
			Up:         [3]float32{0, 1, 0},
			FovDegrees: 45,
			Near:       0.1,
			Far:        100,
		},
		Lighting: LightingConfig{
			AmbientColor:     core.DefaultAmbientColor,
			AmbientIntensity: core.DefaultAmbientIntensity,
		},
		Log: LogConfig{Level: "info", Prefix: "vizcore"},
	}
	for _, l := range core.DefaultLights() {
		cfg.Lighting.Lights = append(cfg.Lighting.Lights, lightConfigFrom(l))
	}
	return cfg
}

func lightConfigFrom(l core.Light) LightConfig {
	enabled := l.Enabled
	return LightConfig{
		Type:         l.Kind.String(),
		Position:     l.Position,
		Direction:    l.Direction,
		Color:        l.Color,
		Intensity:    l.Intensity,
		Enabled:      &enabled,
		Range:        l.Range,
		InnerDegrees: mgl32.RadToDeg(l.InnerAngle),
		OuterDegrees: mgl32.RadToDeg(l.OuterAngle),
	}
}

// LoadConfig reads path over the defaults. A file that lists no lights keeps
// the default rig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: read %s: %w", core.ErrInvalidConfig, path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	defaults := cfg.Lighting.Lights
	cfg.Lighting.Lights = nil

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("%w: %s", core.ErrInvalidConfig, strings.TrimSpace(strict.String()))
		}
		return Config{}, fmt.Errorf("%w: %w", core.ErrInvalidConfig, err)
	}
	if cfg.Lighting.Lights == nil {
		cfg.Lighting.Lights = defaults
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{core.ErrInvalidConfig}, args...)...)
}

// Validate reports the first bad setting as a configuration error.
func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return invalid("window size %dx%d", c.Window.Width, c.Window.Height)
	}
	r := c.Renderer
	if r.SurfaceTimeoutMS <= 0 || r.SubmitTimeoutMS <= 0 {
		return invalid("renderer timeouts must be positive (surface %dms, submit %dms)", r.SurfaceTimeoutMS, r.SubmitTimeoutMS)
	}
	if r.PoolBudgetMB < 0 {
		return invalid("pool_budget_mb %d", r.PoolBudgetMB)
	}
	if r.Workers < 0 {
		return invalid("workers %d", r.Workers)
	}
	switch strings.ToLower(r.PresentMode) {
	case "", "fifo", "mailbox", "immediate":
	default:
		return invalid("present_mode %q", r.PresentMode)
	}
	cam := c.Camera
	if cam.FovDegrees <= 0 || cam.FovDegrees >= 180 {
		return invalid("camera fov_degrees %v", cam.FovDegrees)
	}
	if cam.Near <= 0 || cam.Far <= cam.Near {
		return invalid("camera clip range near %v far %v", cam.Near, cam.Far)
	}
	if mgl32.Vec3(cam.Eye).Sub(cam.Target).Len() == 0 {
		return invalid("camera eye equals target")
	}
	if c.Lighting.AmbientIntensity < 0 {
		return invalid("ambient_intensity %v", c.Lighting.AmbientIntensity)
	}
	if _, err := c.Lights(); err != nil {
		return err
	}
	if c.Log.Level != "" {
		switch strings.ToLower(c.Log.Level) {
		case "debug", "info", "warn", "error":
		default:
			return invalid("log level %q", c.Log.Level)
		}
	}
	return nil
}

// RendererOptions converts the renderer section.
func (c Config) RendererOptions(logger core.Logger) gpu.Options {
	return gpu.Options{
		SurfaceTimeout: time.Duration(c.Renderer.SurfaceTimeoutMS) * time.Millisecond,
		SubmitTimeout:  time.Duration(c.Renderer.SubmitTimeoutMS) * time.Millisecond,
		PoolBudget:     uint64(c.Renderer.PoolBudgetMB) << 20,
		MergeBatches:   c.Renderer.MergeBatches,
		Logger:         logger,
	}
}

// ApplyCamera positions cam and sets its projection. The aspect ratio comes
// from the viewport, not the file.
func (c Config) ApplyCamera(cam *core.Camera) {
	cam.LookAt(c.Camera.Eye, c.Camera.Target, c.Camera.Up)
	cam.SetPerspective(mgl32.DegToRad(c.Camera.FovDegrees), c.Camera.Near, c.Camera.Far)
}

func (lc LightConfig) Light() (core.Light, error) {
	kind, err := core.ParseLightKind(strings.ToLower(lc.Type))
	if err != nil {
		return core.Light{}, err
	}
	var l core.Light
	switch kind {
	case core.LightDirectional:
		l = core.NewDirectionalLight(lc.Direction, lc.Color, lc.Intensity)
	case core.LightPoint:
		l = core.NewPointLight(lc.Position, lc.Color, lc.Intensity, lc.Range)
	case core.LightSpot:
		if lc.OuterDegrees <= 0 {
			return core.Light{}, invalid("spot light needs outer_degrees")
		}
		inner := math32.Min(lc.InnerDegrees, lc.OuterDegrees)
		l = core.NewSpotLight(lc.Position, lc.Direction, lc.Color, lc.Intensity,
			mgl32.DegToRad(inner), mgl32.DegToRad(lc.OuterDegrees))
		l.Range = lc.Range
	}
	if lc.Enabled != nil {
		l.Enabled = *lc.Enabled
	}
	if lc.Intensity < 0 {
		return core.Light{}, invalid("negative light intensity %v", lc.Intensity)
	}
	if err := l.Validate(); err != nil {
		return core.Light{}, fmt.Errorf("%w: %w", core.ErrInvalidConfig, err)
	}
	return l, nil
}

// Lights converts every configured light, in file order.
func (c Config) Lights() ([]core.Light, error) {
	out := make([]core.Light, 0, len(c.Lighting.Lights))
	for i, lc := range c.Lighting.Lights {
		l, err := lc.Light()
		if err != nil {
			return nil, fmt.Errorf("lighting.lights[%d]: %w", i, err)
		}
		out = append(out, l)
	}
	return out, nil
}

func (c Config) LightingSet() (*core.LightingSet, error) {
	lights, err := c.Lights()
	if err != nil {
		return nil, err
	}
	return core.NewLightingSet(c.Lighting.AmbientColor, c.Lighting.AmbientIntensity, lights), nil
}

func (c Config) NewLogger() *DefaultLogger {
	l := NewDefaultLogger(c.Log.Prefix, false)
	if c.Log.Level != "" {
		_ = l.SetLevel(c.Log.Level)
	}
	return l
}
