package vizcore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gekko3d/vizcore/render/core"
	"github.com/gekko3d/vizcore/render/gpu"
	"github.com/gekko3d/vizcore/render/scene"
	"github.com/go-gl/mathgl/mgl32"
)

// BackendFactory creates a fresh backend. It is called once at startup and
// again after every device loss.
type BackendFactory func() (gpu.Backend, error)

// Session owns a scene, a renderer and the backend under it, and drives the
// per-frame Prepare, draw set and render sequence.
type Session struct {
	cfg     Config
	logger  Logger
	factory BackendFactory

	scene    *scene.Scene
	backend  gpu.Backend
	renderer *gpu.Renderer
	profiler Profiler

	width, height int
	rebuilds      int

	mu      sync.Mutex
	pending *Config
}

func NewSession(cfg Config, factory BackendFactory, logger Logger) (*Session, error) {
	if logger == nil {
		logger = NewNopLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		cfg:     cfg,
		logger:  logger,
		factory: factory,
		width:   cfg.Window.Width,
		height:  cfg.Window.Height,
	}
	s.scene = scene.New(
		scene.WithLogger(logger),
		scene.WithWorkers(cfg.Renderer.Workers),
		scene.WithCulling(cfg.Renderer.Culling),
	)
	if err := s.applyConfig(cfg); err != nil {
		return nil, err
	}
	if err := s.connect(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) Scene() *scene.Scene     { return s.scene }
func (s *Session) Renderer() *gpu.Renderer { return s.renderer }
func (s *Session) Profiler() *Profiler     { return &s.profiler }
func (s *Session) Config() Config          { return s.cfg }
func (s *Session) Rebuilds() int           { return s.rebuilds }

func (s *Session) connect() error {
	backend, err := s.factory()
	if err != nil {
		return fmt.Errorf("session: create backend: %w", err)
	}
	r, err := gpu.NewRenderer(backend, s.cfg.RendererOptions(s.logger))
	if err != nil {
		backend.Release()
		return err
	}
	s.backend, s.renderer = backend, r
	s.scene.SetViewport(s.width, s.height)
	return nil
}

func (s *Session) disconnect() {
	if s.renderer != nil {
		s.renderer.Close()
		s.renderer = nil
	}
	if s.backend != nil {
		s.backend.Release()
		s.backend = nil
	}
}

// QueueConfig stores cfg to be applied at the start of the next frame. It is
// safe to call from any goroutine, e.g. a ConfigWatcher callback.
func (s *Session) QueueConfig(cfg Config) {
	s.mu.Lock()
	s.pending = &cfg
	s.mu.Unlock()
}

func (s *Session) takePending() *Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pending
	s.pending = nil
	return p
}

// applyConfig updates the camera and lighting sections. Renderer settings
// only take effect on the next backend rebuild.
func (s *Session) applyConfig(cfg Config) error {
	lights, err := cfg.Lights()
	if err != nil {
		return err
	}
	if err := s.scene.SetLights(lights); err != nil {
		return err
	}
	s.scene.SetAmbient(mgl32.Vec3(cfg.Lighting.AmbientColor), cfg.Lighting.AmbientIntensity)
	cfg.ApplyCamera(s.scene.Camera())
	s.cfg = cfg
	return nil
}

// Frame runs one frame. Skipped frames and other recoverable failures are
// logged and swallowed; a lost device is rebuilt through the factory. Only
// errors the caller must act on are returned.
func (s *Session) Frame(ctx context.Context, dt time.Duration) error {
	if p := s.takePending(); p != nil {
		if err := s.applyConfig(*p); err != nil {
			s.logger.Warnf("session: config not applied: %v", err)
		}
	}
	if s.renderer == nil {
		if err := s.rebuild(); err != nil {
			return err
		}
	}

	start := time.Now()
	if err := s.scene.Prepare(ctx, float32(dt.Seconds())); err != nil {
		return err
	}
	since(start, &s.profiler.PrepareTime)

	start = time.Now()
	items := s.scene.GenerateDrawSet()
	since(start, &s.profiler.DrawSetTime)

	s.renderer.SetCamera(s.scene.Camera())
	s.renderer.SetLighting(s.scene.Lighting())

	start = time.Now()
	err := s.renderer.RenderDrawSet(ctx, items)
	since(start, &s.profiler.RenderTime)
	s.profiler.Tick(dt)

	return s.handle(err)
}

func (s *Session) handle(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return err
	case core.IsDeviceLost(err):
		s.logger.Errorf("session: %v; rebuilding device", err)
		s.disconnect()
		return s.rebuild()
	case core.IsRecoverable(err):
		s.logger.Warnf("session: frame dropped: %v", err)
		return nil
	}
	return err
}

func (s *Session) rebuild() error {
	s.disconnect()
	if err := s.connect(); err != nil {
		return fmt.Errorf("%w: rebuild after device loss: %w", core.ErrDeviceLost, err)
	}
	s.rebuilds++
	return s.renderer.Resize(s.width, s.height)
}

// Resize updates the viewport of the scene camera and the surface.
func (s *Session) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	s.width, s.height = width, height
	s.scene.SetViewport(width, height)
	if s.renderer == nil {
		return nil
	}
	return s.handle(s.renderer.Resize(width, height))
}

// Run calls Frame every interval until ctx ends or a frame fails hard.
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if err := s.Frame(ctx, now.Sub(last)); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			last = now
		}
	}
}

func (s *Session) Close() {
	s.disconnect()
	s.scene.Destroy()
}
