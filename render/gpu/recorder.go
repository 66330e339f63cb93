package gpu

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gekko3d/vizcore/render/core"
	"github.com/go-gl/mathgl/mgl32"
)

// MemBuffer is a host-memory Buffer used by RecordingBackend.
type MemBuffer struct {
	Label    string
	Usage    BufferUsage
	Data     []byte
	released bool
}

func (b *MemBuffer) Size() uint64   { return uint64(len(b.Data)) }
func (b *MemBuffer) Release()       { b.released = true }
func (b *MemBuffer) Released() bool { return b.released }

type RecordedDraw struct {
	Vertices   []core.Vertex
	Indices    []uint32
	Material   MaterialUniform
	IndexCount uint32
}

// RecordedFrame is a submitted frame with the uniforms it was drawn with.
type RecordedFrame struct {
	Camera   CameraUniform
	Lighting LightingUniform
	Draws    []RecordedDraw
}

// RecordingBackend is a headless Backend. It keeps buffer contents in memory,
// records every submitted frame and can inject the failures a real device
// produces.
type RecordingBackend struct {
	mu sync.Mutex

	Width, Height int
	Alignment     uint32

	// Fault injection. Errors are returned once and then cleared.
	AcquireErr   error
	SubmitErr    error
	CreateErr    error
	AcquireDelay time.Duration
	SubmitDelay  time.Duration

	lost     bool
	open     bool
	bound    [3]*MemBuffer
	pending  []RecordedDraw
	frames   []RecordedFrame
	buffers  []*MemBuffer
	writes   map[*MemBuffer]int
	aborted  int
	released bool
}

func NewRecordingBackend(width, height int) *RecordingBackend {
	return &RecordingBackend{
		Width:     width,
		Height:    height,
		Alignment: 256,
		writes:    make(map[*MemBuffer]int),
	}
}

// LoseDevice makes every later call fail with ErrDeviceLost.
func (b *RecordingBackend) LoseDevice() {
	b.mu.Lock()
	b.lost = true
	b.mu.Unlock()
}

func (b *RecordingBackend) check() error {
	if b.lost {
		return core.ErrDeviceLost
	}
	if b.released {
		return fmt.Errorf("%w: backend released", core.ErrDevice)
	}
	return nil
}

func (b *RecordingBackend) CreateBuffer(label string, size uint64, usage BufferUsage) (Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(); err != nil {
		return nil, err
	}
	if b.CreateErr != nil {
		err := b.CreateErr
		b.CreateErr = nil
		return nil, err
	}
	buf := &MemBuffer{Label: label, Usage: usage, Data: make([]byte, size)}
	b.buffers = append(b.buffers, buf)
	return buf, nil
}

func (b *RecordingBackend) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(); err != nil {
		return err
	}
	mb, ok := buf.(*MemBuffer)
	if !ok || mb.released {
		return fmt.Errorf("%w: write to foreign or released buffer", core.ErrValidation)
	}
	if offset+uint64(len(data)) > uint64(len(mb.Data)) {
		return fmt.Errorf("%w: write of %d bytes at %d overflows %q (%d)", core.ErrValidation, len(data), offset, mb.Label, len(mb.Data))
	}
	copy(mb.Data[offset:], data)
	b.writes[mb]++
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", core.ErrFrameSkipped, ctx.Err())
	case <-t.C:
		return nil
	}
}

func (b *RecordingBackend) AcquireFrame(ctx context.Context) error {
	if err := wait(ctx, b.AcquireDelay); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(); err != nil {
		return err
	}
	if b.AcquireErr != nil {
		err := b.AcquireErr
		b.AcquireErr = nil
		return err
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("%w: zero-sized surface", core.ErrSurfaceUnavailable)
	}
	if b.open {
		return fmt.Errorf("%w: surface image already acquired", core.ErrDevice)
	}
	b.open = true
	b.pending = nil
	b.bound = [3]*MemBuffer{}
	return nil
}

func (b *RecordingBackend) BindUniforms(camera, lighting, materials Buffer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(); err != nil {
		return err
	}
	for i, buf := range []Buffer{camera, lighting, materials} {
		mb, ok := buf.(*MemBuffer)
		if !ok {
			return fmt.Errorf("%w: foreign uniform buffer", core.ErrValidation)
		}
		b.bound[i] = mb
	}
	return nil
}

func (b *RecordingBackend) Draw(cmd DrawCommand) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(); err != nil {
		return err
	}
	if !b.open || b.bound[2] == nil {
		return fmt.Errorf("%w: draw outside a bound frame", core.ErrState)
	}
	vb, ok1 := cmd.Vertices.(*MemBuffer)
	ib, ok2 := cmd.Indices.(*MemBuffer)
	if !ok1 || !ok2 {
		return fmt.Errorf("%w: foreign geometry buffer", core.ErrValidation)
	}
	if uint64(cmd.IndexCount)*4 > uint64(len(ib.Data)) {
		return fmt.Errorf("%w: %d indices exceed buffer", core.ErrValidation, cmd.IndexCount)
	}
	mat, err := UnmarshalMaterialUniform(b.bound[2].Data[cmd.MaterialOffset:])
	if err != nil {
		return err
	}
	indices := decodeIndices(ib.Data[:cmd.IndexCount*4])
	var maxIdx uint32
	for _, i := range indices {
		maxIdx = max(maxIdx, i)
	}
	vertices := decodeVertices(vb.Data[:min(uint64(len(vb.Data)), uint64(maxIdx+1)*core.VertexStride)])
	b.pending = append(b.pending, RecordedDraw{
		Vertices:   vertices,
		Indices:    indices,
		Material:   mat,
		IndexCount: cmd.IndexCount,
	})
	return nil
}

func (b *RecordingBackend) SubmitFrame(ctx context.Context) error {
	if err := wait(ctx, b.SubmitDelay); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(); err != nil {
		return err
	}
	if b.SubmitErr != nil {
		err := b.SubmitErr
		b.SubmitErr = nil
		return err
	}
	if !b.open {
		return fmt.Errorf("%w: submit without frame", core.ErrState)
	}
	frame := RecordedFrame{Draws: b.pending}
	if b.bound[0] != nil {
		frame.Camera, _ = UnmarshalCameraUniform(b.bound[0].Data)
		frame.Lighting, _ = UnmarshalLightingUniform(b.bound[1].Data)
	}
	b.frames = append(b.frames, frame)
	b.pending = nil
	b.open = false
	return nil
}

func (b *RecordingBackend) AbortFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open {
		b.aborted++
	}
	b.open = false
	b.pending = nil
}

func (b *RecordingBackend) Resize(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(); err != nil {
		return err
	}
	b.Width, b.Height = width, height
	return nil
}

func (b *RecordingBackend) UniformAlignment() uint32 { return b.Alignment }

func (b *RecordingBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, buf := range b.buffers {
		buf.released = true
	}
	b.released = true
}

func (b *RecordingBackend) Frames() []RecordedFrame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]RecordedFrame(nil), b.frames...)
}

func (b *RecordingBackend) Aborted() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.aborted
}

// LiveBuffers counts buffers created and not yet released.
func (b *RecordingBackend) LiveBuffers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, buf := range b.buffers {
		if !buf.released {
			n++
		}
	}
	return n
}

// Writes reports how many times buf was written.
func (b *RecordingBackend) Writes(buf Buffer) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	mb, _ := buf.(*MemBuffer)
	return b.writes[mb]
}

// ShadeVertices evaluates the lit fragment function at every vertex of the
// draw, the same way the device shader does per fragment.
func (f RecordedFrame) ShadeVertices(d RecordedDraw) [][4]float32 {
	set := f.Lighting.LightingSet()
	mat := d.Material.Material()
	eye := mgl32.Vec3(f.Camera.Position)
	out := make([][4]float32, len(d.Vertices))
	for i, v := range d.Vertices {
		c := core.ShadeFragment(set, mat.Tinted(mgl32.Vec3{v.Color[0], v.Color[1], v.Color[2]}), v.Position, v.Normal, eye)
		out[i] = [4]float32{c[0], c[1], c[2], v.Color[3]}
	}
	return out
}

func decodeIndices(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

func decodeVertices(b []byte) []core.Vertex {
	out := make([]core.Vertex, len(b)/core.VertexStride)
	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b[off:])) }
	for i := range out {
		o := i * core.VertexStride
		out[i] = core.Vertex{
			Position: [3]float32{f(o), f(o + 4), f(o + 8)},
			Normal:   [3]float32{f(o + 12), f(o + 16), f(o + 20)},
			Color:    [4]float32{f(o + 24), f(o + 28), f(o + 32), f(o + 36)},
		}
	}
	return out
}
