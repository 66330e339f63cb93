package gpu

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gekko3d/vizcore/render/core"
	"github.com/go-gl/mathgl/mgl32"
)

type State int

const (
	StateIdle State = iota
	StateFrameOpen
)

func (s State) String() string {
	if s == StateFrameOpen {
		return "frame-open"
	}
	return "idle"
}

type Options struct {
	// SurfaceTimeout bounds the wait for a presentable surface image.
	SurfaceTimeout time.Duration
	// SubmitTimeout bounds submission and presentation.
	SubmitTimeout time.Duration
	// PoolBudget caps pooled buffer memory in bytes; zero is unlimited.
	PoolBudget uint64
	// MergeBatches joins adjacent draws that share a material.
	MergeBatches bool
	Logger       core.Logger
}

func DefaultOptions() Options {
	return Options{
		SurfaceTimeout: 100 * time.Millisecond,
		SubmitTimeout:  250 * time.Millisecond,
		PoolBudget:     256 << 20,
		MergeBatches:   true,
	}
}

type FrameStats struct {
	Frames    uint64
	Skipped   uint64
	Aborted   uint64
	Draws     int
	Batches   int
	Merged    int
	Triangles int
}

type batch struct {
	material core.Material
	geometry *core.Geometry // world space, owned by the batch
}

// Renderer drives the frame protocol Idle -> FrameOpen -> Idle on top of a
// Backend. It is not safe for concurrent use; one goroutine owns it.
type Renderer struct {
	backend Backend
	pool    *BufferPool
	opts    Options
	logger  core.Logger

	state  State
	closed bool

	camera      *core.Camera
	cameraRev   uint64
	cameraDirty bool
	lighting    *core.LightingSet
	lightDirty  bool
	material    core.Material
	transform   mgl32.Mat4

	cameraBuf   Buffer
	lightingBuf Buffer

	batches []batch
	frame   []Handle
	stats   FrameStats
}

// NewRenderer validates the uniform layouts and creates the persistent
// camera and lighting buffers.
func NewRenderer(backend Backend, opts Options) (*Renderer, error) {
	if err := ValidateLayouts(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = core.NopLogger()
	}
	if opts.SurfaceTimeout <= 0 || opts.SubmitTimeout <= 0 {
		return nil, fmt.Errorf("%w: surface and submit timeouts must be positive", core.ErrInvalidConfig)
	}
	r := &Renderer{
		backend:    backend,
		pool:       NewBufferPool(backend, opts.PoolBudget, opts.Logger),
		opts:       opts,
		logger:     opts.Logger,
		camera:     core.NewCamera(),
		lighting:   core.DefaultLightingSet(),
		lightDirty: true,
		material:   core.DefaultMaterial(),
		transform:  mgl32.Ident4(),
	}
	r.cameraDirty = true

	var err error
	if r.cameraBuf, err = backend.CreateBuffer("camera uniform", CameraUniformSize, UsageUniform|UsageCopyDst); err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}
	if r.lightingBuf, err = backend.CreateBuffer("lighting uniform", LightingUniformSize, UsageUniform|UsageCopyDst); err != nil {
		r.cameraBuf.Release()
		return nil, fmt.Errorf("renderer: %w", err)
	}
	return r, nil
}

func (r *Renderer) State() State      { return r.state }
func (r *Renderer) Stats() FrameStats { return r.stats }
func (r *Renderer) Pool() *BufferPool { return r.pool }
func (r *Renderer) Options() Options  { return r.opts }

// SetCamera binds the camera used for the next frame. The uniform is only
// re-uploaded when the camera changed.
func (r *Renderer) SetCamera(c *core.Camera) {
	if c != r.camera || c.Revision() != r.cameraRev {
		r.cameraDirty = true
	}
	r.camera = c
}

func (r *Renderer) SetLighting(set *core.LightingSet) {
	if set != nil && set != r.lighting {
		r.lighting = set
		r.lightDirty = true
	}
}

// BindMaterial sets the material for subsequent RenderGeometry calls.
func (r *Renderer) BindMaterial(m core.Material) {
	r.material = m
}

// SetTransform sets the object-to-world matrix for subsequent RenderGeometry calls.
func (r *Renderer) SetTransform(m mgl32.Mat4) {
	r.transform = m
}

// BeginFrame acquires the next surface image. A timeout or missing surface
// leaves the renderer Idle and returns a recoverable error.
func (r *Renderer) BeginFrame(ctx context.Context) error {
	if r.closed {
		return core.ErrClosed
	}
	if r.state == StateFrameOpen {
		return core.ErrFrameAlreadyOpen
	}

	actx, cancel := context.WithTimeout(ctx, r.opts.SurfaceTimeout)
	defer cancel()
	if err := r.backend.AcquireFrame(actx); err != nil {
		err = classifyDeadline(err, "acquire")
		if errors.Is(err, core.ErrFrameSkipped) {
			r.stats.Skipped++
		}
		return err
	}

	r.state = StateFrameOpen
	r.batches = r.batches[:0]
	r.stats.Draws, r.stats.Batches, r.stats.Merged, r.stats.Triangles = 0, 0, 0, 0
	return nil
}

// RenderGeometry records g with the bound material and transform. Invalid
// geometry, a non-finite transform or a non-finite material records nothing;
// empty geometry is a no-op.
func (r *Renderer) RenderGeometry(g *core.Geometry) error {
	if r.state != StateFrameOpen {
		return core.ErrNoFrame
	}
	if err := g.Validate(); err != nil {
		return err
	}
	if g.Empty() {
		return nil
	}
	if !core.FiniteMat4(r.transform) {
		return fmt.Errorf("%w: non-finite transform", core.ErrValidation)
	}
	if err := r.material.Validate(); err != nil {
		return err
	}

	world := g.Transformed(r.transform)
	if err := world.Validate(); err != nil {
		return fmt.Errorf("%w: after transform", err)
	}
	r.stats.Triangles += len(g.Indices) / 3
	if n := len(r.batches); r.opts.MergeBatches && n > 0 && r.batches[n-1].material == r.material {
		r.batches[n-1].geometry.Append(world)
		r.stats.Merged++
		return nil
	}
	r.batches = append(r.batches, batch{material: r.material, geometry: world})
	return nil
}

// RenderDrawSet runs a whole frame over items in order. Items that fail
// validation are logged and skipped.
func (r *Renderer) RenderDrawSet(ctx context.Context, items []core.DrawItem) error {
	if err := r.BeginFrame(ctx); err != nil {
		return err
	}
	for _, it := range items {
		r.SetTransform(it.Transform)
		r.BindMaterial(it.Material)
		if err := r.RenderGeometry(it.Geometry); err != nil {
			r.logger.Warnf("renderer: skipping %s in %q: %v", it.Object, it.Layer, err)
		}
	}
	return r.EndFrame(ctx)
}

// AbortFrame discards the open frame without submitting anything.
func (r *Renderer) AbortFrame() {
	if r.state != StateFrameOpen {
		return
	}
	r.backend.AbortFrame()
	r.finishFrame()
	r.stats.Aborted++
}

// EndFrame uploads what changed, records the batches and submits. Any failure
// aborts the whole frame; the renderer is Idle afterwards either way.
func (r *Renderer) EndFrame(ctx context.Context) error {
	if r.state != StateFrameOpen {
		return core.ErrNoFrame
	}
	if err := r.recordFrame(); err != nil {
		r.AbortFrame()
		return err
	}

	sctx, cancel := context.WithTimeout(ctx, r.opts.SubmitTimeout)
	defer cancel()
	if err := r.backend.SubmitFrame(sctx); err != nil {
		err = classifyDeadline(err, "submit")
		r.AbortFrame()
		if errors.Is(err, core.ErrFrameSkipped) {
			r.stats.Skipped++
		}
		return err
	}
	r.finishFrame()
	r.stats.Frames++
	return nil
}

func (r *Renderer) recordFrame() error {
	if err := r.uploadShared(); err != nil {
		return err
	}

	stride := uint64(alignUp(MaterialUniformSize, uint64(max(r.backend.UniformAlignment(), 1))))
	slabSize := stride * uint64(max(len(r.batches), 1))
	slab, err := r.acquire(slabSize, UsageUniform|UsageCopyDst, "material slab")
	if err != nil {
		return err
	}
	data := make([]byte, slabSize)
	for i, b := range r.batches {
		copy(data[uint64(i)*stride:], NewMaterialUniform(b.material).Marshal())
	}
	if len(r.batches) == 0 {
		copy(data, NewMaterialUniform(r.material).Marshal())
	}
	if err := r.backend.WriteBuffer(slab, 0, data); err != nil {
		return err
	}
	if err := r.backend.BindUniforms(r.cameraBuf, r.lightingBuf, slab); err != nil {
		return err
	}

	for i, b := range r.batches {
		vb, err := r.acquire(uint64(len(b.geometry.Vertices))*core.VertexStride, UsageVertex|UsageCopyDst, "vertices")
		if err != nil {
			return err
		}
		ib, err := r.acquire(uint64(len(b.geometry.Indices))*4, UsageIndex|UsageCopyDst, "indices")
		if err != nil {
			return err
		}
		if err := r.backend.WriteBuffer(vb, 0, vertexBytes(b.geometry.Vertices)); err != nil {
			return err
		}
		if err := r.backend.WriteBuffer(ib, 0, indexBytes(b.geometry.Indices)); err != nil {
			return err
		}
		err = r.backend.Draw(DrawCommand{
			Vertices:       vb,
			Indices:        ib,
			IndexCount:     uint32(len(b.geometry.Indices)),
			MaterialOffset: uint32(uint64(i) * stride),
		})
		if err != nil {
			return err
		}
		r.stats.Draws++
	}
	r.stats.Batches = len(r.batches)
	return nil
}

func (r *Renderer) uploadShared() error {
	if r.cameraDirty || r.camera.Revision() != r.cameraRev {
		if err := r.backend.WriteBuffer(r.cameraBuf, 0, NewCameraUniform(r.camera).Marshal()); err != nil {
			return err
		}
		r.cameraRev = r.camera.Revision()
		r.cameraDirty = false
	}
	if r.lightDirty {
		if err := r.backend.WriteBuffer(r.lightingBuf, 0, NewLightingUniform(r.lighting).Marshal()); err != nil {
			return err
		}
		r.lightDirty = false
	}
	return nil
}

// acquire takes a frame-scoped buffer, trimming idle buffers once when the
// pool is over budget.
func (r *Renderer) acquire(size uint64, usage BufferUsage, label string) (Buffer, error) {
	h, err := r.pool.Acquire(size, usage, label)
	if errors.Is(err, core.ErrPoolExhausted) && r.pool.Trim() > 0 {
		h, err = r.pool.Acquire(size, usage, label)
	}
	if err != nil {
		return nil, err
	}
	r.frame = append(r.frame, h)
	return r.pool.Buffer(h)
}

func (r *Renderer) finishFrame() {
	for _, h := range r.frame {
		if err := r.pool.Release(h); err != nil {
			r.logger.Errorf("renderer: release %s: %v", h, err)
		}
	}
	r.frame = r.frame[:0]
	for i := range r.batches {
		r.batches[i] = batch{}
	}
	r.batches = r.batches[:0]
	r.state = StateIdle
}

// Resize forwards a framebuffer change. Zero sizes are ignored.
func (r *Renderer) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	if r.state == StateFrameOpen {
		return core.ErrFrameAlreadyOpen
	}
	r.camera.SetViewport(width, height)
	return r.backend.Resize(width, height)
}

// Close aborts an open frame and releases every device resource the
// renderer owns. The backend itself is left to its owner.
func (r *Renderer) Close() {
	if r.closed {
		return
	}
	r.AbortFrame()
	r.pool.Close()
	r.cameraBuf.Release()
	r.lightingBuf.Release()
	r.closed = true
}

func classifyDeadline(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, core.ErrDevice) {
		return fmt.Errorf("%w: %s timed out", core.ErrFrameSkipped, op)
	}
	return err
}

func vertexBytes(vs []core.Vertex) []byte {
	w := byteWriter{buf: make([]byte, 0, len(vs)*core.VertexStride)}
	for _, v := range vs {
		w.f32s(v.Position[:]...)
		w.f32s(v.Normal[:]...)
		w.f32s(v.Color[:]...)
	}
	return w.buf
}

func indexBytes(idx []uint32) []byte {
	w := byteWriter{buf: make([]byte, 0, len(idx)*4)}
	for _, i := range idx {
		w.u32(i)
	}
	return w.buf
}
