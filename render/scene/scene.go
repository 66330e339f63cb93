package scene

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gekko3d/vizcore/render/core"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"
)

var (
	ErrDuplicateObject = errors.New("object already in layer")
	ErrUnknownLayer    = errors.New("unknown layer")
)

// Layer groups objects under one visibility flag and z-order. Lower z-order
// draws first.
type Layer struct {
	Name    string
	visible bool
	zOrder  int
	objects []Object
}

func (l *Layer) Visible() bool     { return l.visible }
func (l *Layer) SetVisible(v bool) { l.visible = v }
func (l *Layer) ZOrder() int       { return l.zOrder }
func (l *Layer) SetZOrder(z int)   { l.zOrder = z }
func (l *Layer) Objects() []Object { return append([]Object(nil), l.objects...) }
func (l *Layer) Len() int          { return len(l.objects) }

// AddObject appends obj. Adding the same object twice is rejected.
func (l *Layer) AddObject(obj Object) error {
	for _, o := range l.objects {
		if o == obj || o.ID() == obj.ID() {
			return fmt.Errorf("%w: %s in %q", ErrDuplicateObject, obj.ID(), l.Name)
		}
	}
	l.objects = append(l.objects, obj)
	return nil
}

func (l *Layer) RemoveObject(obj Object) bool {
	for i, o := range l.objects {
		if o == obj {
			l.objects = append(l.objects[:i], l.objects[i+1:]...)
			return true
		}
	}
	return false
}

// DrawStats describes the last GenerateDrawSet call.
type DrawStats struct {
	Layers  int
	Objects int
	Culled  int
	Skipped int
	Items   int
}

type Option func(*Scene)

func WithLogger(l core.Logger) Option {
	return func(s *Scene) { s.logger = l }
}

// WithWorkers bounds the goroutines Prepare fans out to.
func WithWorkers(n int) Option {
	return func(s *Scene) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithCulling(enabled bool) Option {
	return func(s *Scene) { s.culling = enabled }
}

func WithCamera(c *core.Camera) Option {
	return func(s *Scene) { s.camera = c }
}

// Scene owns layers, the camera and the lights. Layers and objects are
// mutated from the frame goroutine only; lights may be replaced from any
// goroutine (config reload) and are published as immutable LightingSets.
type Scene struct {
	camera  *core.Camera
	layers  []*Layer
	logger  core.Logger
	workers int
	culling bool
	stats   DrawStats

	mu               sync.RWMutex
	ambientColor     mgl32.Vec3
	ambientIntensity float32
	lights           []core.Light
	lighting         *core.LightingSet
}

func New(opts ...Option) *Scene {
	s := &Scene{
		camera:           core.NewCamera(),
		logger:           core.NopLogger(),
		workers:          runtime.GOMAXPROCS(0),
		culling:          true,
		ambientColor:     core.DefaultAmbientColor,
		ambientIntensity: core.DefaultAmbientIntensity,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rebuildLighting()
	return s
}

func (s *Scene) Camera() *core.Camera { return s.camera }

// SetViewport keeps the camera aspect in step with the framebuffer.
func (s *Scene) SetViewport(width, height int) {
	s.camera.SetViewport(width, height)
}

func (s *Scene) AddLayer(name string, zOrder int) *Layer {
	l := &Layer{Name: name, visible: true, zOrder: zOrder}
	s.layers = append(s.layers, l)
	return l
}

func (s *Scene) Layer(name string) (*Layer, error) {
	for _, l := range s.layers {
		if l.Name == name {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownLayer, name)
}

func (s *Scene) Layers() []*Layer {
	return append([]*Layer(nil), s.layers...)
}

// RemoveLayer detaches the layer and destroys its objects.
func (s *Scene) RemoveLayer(name string) error {
	for i, l := range s.layers {
		if l.Name == name {
			s.layers = append(s.layers[:i], s.layers[i+1:]...)
			destroyObjects(l.objects)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownLayer, name)
}

// orderedLayers returns visible layers by z-order; ties keep insertion order.
func (s *Scene) orderedLayers() []*Layer {
	out := make([]*Layer, 0, len(s.layers))
	for _, l := range s.layers {
		if l.visible {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].zOrder < out[j].zOrder })
	return out
}

// Prepare runs Update on every object of every visible layer on a bounded
// worker group. It returns once all updates finished, so the caller may
// begin a frame right after. A failing object is logged and left as is.
func (s *Scene) Prepare(ctx context.Context, dt float32) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	var failed atomic.Int32
	for _, l := range s.orderedLayers() {
		for _, obj := range l.objects {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := obj.Update(dt); err != nil {
					failed.Add(1)
					s.logger.Warnf("scene: update %s in %q: %v", obj.ID(), l.Name, err)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if n := failed.Load(); n > 0 {
		s.logger.Debugf("scene: %d object updates failed", n)
	}
	return ctx.Err()
}

// GenerateDrawSet flattens the scene into draw items ordered by layer
// z-order, then insertion order. Invisible layers are skipped; objects whose
// bounds fall outside the camera frustum are culled; objects whose bounds or
// render fail are skipped without failing the frame.
func (s *Scene) GenerateDrawSet() []core.DrawItem {
	var stats DrawStats
	var planes [6]mgl32.Vec4
	if s.culling {
		planes = s.camera.Frustum()
	}

	var items []core.DrawItem
	for _, l := range s.orderedLayers() {
		stats.Layers++
		for _, obj := range l.objects {
			stats.Objects++
			box, err := obj.Bounds()
			if err != nil {
				stats.Skipped++
				s.logger.Warnf("scene: bounds of %s in %q: %v", obj.ID(), l.Name, err)
				continue
			}
			if !box.Valid() {
				stats.Skipped++
				continue
			}
			if s.culling && !core.AABBInFrustum(box, planes) {
				stats.Culled++
				continue
			}
			out, err := obj.Render()
			if err != nil {
				stats.Skipped++
				s.logger.Warnf("scene: render %s in %q: %v", obj.ID(), l.Name, err)
				continue
			}
			for _, it := range out {
				it.Layer = l.Name
				it.ZOrder = l.zOrder
				it.Object = obj.ID()
				items = append(items, it)
			}
		}
	}
	stats.Items = len(items)
	s.stats = stats
	s.logger.Debugf("scene: draw set %d items (%d culled, %d skipped)", stats.Items, stats.Culled, stats.Skipped)
	return items
}

func (s *Scene) Stats() DrawStats { return s.stats }

// Lighting returns the current immutable lighting snapshot.
func (s *Scene) Lighting() *core.LightingSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lighting
}

func (s *Scene) Lights() []core.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Light(nil), s.lights...)
}

func (s *Scene) AddLight(l core.Light) error {
	if err := l.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lights = append(s.lights, l)
	s.rebuildLightingLocked()
	return nil
}

// SetLights replaces all lights. Nothing changes if any light is invalid.
func (s *Scene) SetLights(lights []core.Light) error {
	for i, l := range lights {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("light %d: %w", i, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lights = append([]core.Light(nil), lights...)
	s.rebuildLightingLocked()
	return nil
}

func (s *Scene) SetLightEnabled(i int, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.lights) {
		return fmt.Errorf("%w: %d of %d", core.ErrLightIndex, i, len(s.lights))
	}
	s.lights[i].Enabled = enabled
	s.rebuildLightingLocked()
	return nil
}

func (s *Scene) SetAmbient(color mgl32.Vec3, intensity float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ambientColor, s.ambientIntensity = color, intensity
	s.rebuildLightingLocked()
}

func (s *Scene) rebuildLighting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuildLightingLocked()
}

func (s *Scene) rebuildLightingLocked() {
	s.lighting = core.NewLightingSet(s.ambientColor, s.ambientIntensity, s.lights)
	if n := s.lighting.Ignored(); n > 0 {
		s.logger.Debugf("scene: %d lights beyond the first %d ignored", n, core.MaxLights)
	}
}

// Destroy tears down every layer and object.
func (s *Scene) Destroy() {
	for _, l := range s.layers {
		destroyObjects(l.objects)
		l.objects = nil
	}
	s.layers = nil
}

func destroyObjects(objs []Object) {
	for _, o := range objs {
		if d, ok := o.(Destroyer); ok {
			d.Destroy()
		}
	}
}
