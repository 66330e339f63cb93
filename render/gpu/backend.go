package gpu

import (
	"context"
)

// BufferUsage mirrors the WebGPU usage bits the renderer needs without
// pulling the native bindings into this package.
type BufferUsage uint32

const (
	UsageVertex BufferUsage = 1 << iota
	UsageIndex
	UsageUniform
	UsageCopyDst
)

func (u BufferUsage) String() string {
	s := ""
	for _, f := range []struct {
		bit  BufferUsage
		name string
	}{{UsageVertex, "vertex"}, {UsageIndex, "index"}, {UsageUniform, "uniform"}, {UsageCopyDst, "copy-dst"}} {
		if u&f.bit != 0 {
			if s != "" {
				s += "|"
			}
			s += f.name
		}
	}
	if s == "" {
		return "none"
	}
	return s
}

// Buffer is a device allocation owned by the backend that created it.
type Buffer interface {
	Size() uint64
	Release()
}

// DrawCommand is one indexed draw against the uniforms bound for the frame.
type DrawCommand struct {
	Vertices       Buffer
	Indices        Buffer
	IndexCount     uint32
	MaterialOffset uint32
}

// Allocator creates device buffers; the buffer pool only needs this much of a
// Backend.
type Allocator interface {
	CreateBuffer(label string, size uint64, usage BufferUsage) (Buffer, error)
}

// Backend is the device-side half of the renderer. Calls arrive in frame
// order: AcquireFrame, BindUniforms, Draw..., then SubmitFrame or AbortFrame.
// Errors must wrap the core sentinels (ErrDeviceLost, ErrSurfaceUnavailable,
// ErrFrameSkipped, ErrSubmitFailed, ErrAllocation) so callers can classify
// them.
type Backend interface {
	Allocator
	WriteBuffer(buf Buffer, offset uint64, data []byte) error
	AcquireFrame(ctx context.Context) error
	BindUniforms(camera, lighting, materials Buffer) error
	Draw(cmd DrawCommand) error
	SubmitFrame(ctx context.Context) error
	AbortFrame()
	Resize(width, height int) error
	// UniformAlignment is the minimum dynamic uniform offset alignment.
	UniformAlignment() uint32
	Release()
}
