package device

import (
	"context"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/vizcore/render/core"
	"github.com/gekko3d/vizcore/render/gpu"
)

// buffer wraps a native buffer so the pool can size and release it.
type buffer struct {
	buf  *wgpu.Buffer
	size uint64
}

func (b *buffer) Size() uint64 { return b.size }

func (b *buffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

func usageBits(u gpu.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u&gpu.UsageVertex != 0 {
		out |= wgpu.BufferUsageVertex
	}
	if u&gpu.UsageIndex != 0 {
		out |= wgpu.BufferUsageIndex
	}
	if u&gpu.UsageUniform != 0 {
		out |= wgpu.BufferUsageUniform
	}
	if u&gpu.UsageCopyDst != 0 {
		out |= wgpu.BufferUsageCopyDst
	}
	return out
}

func native(b gpu.Buffer) (*wgpu.Buffer, error) {
	nb, ok := b.(*buffer)
	if !ok || nb.buf == nil {
		return nil, fmt.Errorf("%w: foreign or released buffer", core.ErrValidation)
	}
	return nb.buf, nil
}

func (d *Device) CreateBuffer(label string, size uint64, usage gpu.BufferUsage) (gpu.Buffer, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usageBits(usage),
	})
	if err != nil {
		return nil, d.classify(core.ErrAllocation, "create buffer "+label, err)
	}
	return &buffer{buf: buf, size: size}, nil
}

func (d *Device) WriteBuffer(b gpu.Buffer, offset uint64, data []byte) error {
	if err := d.check(); err != nil {
		return err
	}
	buf, err := native(b)
	if err != nil {
		return err
	}
	if offset+uint64(len(data)) > b.Size() {
		return fmt.Errorf("%w: write of %d bytes at %d overflows buffer (%d)", core.ErrValidation, len(data), offset, b.Size())
	}
	if err := d.queue.WriteBuffer(buf, offset, data); err != nil {
		return d.classify(core.ErrDevice, "write buffer", err)
	}
	return nil
}

// AcquireFrame waits for the next surface image. GetCurrentTexture can block
// for a full vsync interval or longer on a stalled compositor, so it runs off
// the caller's goroutine; a result that arrives after ctx expires is picked up
// by the next call.
func (d *Device) AcquireFrame(ctx context.Context) error {
	if err := d.check(); err != nil {
		return err
	}
	if d.frame != nil {
		return fmt.Errorf("%w: surface image already acquired", core.ErrDevice)
	}
	if d.submitting != nil {
		select {
		case <-d.submitting:
			d.submitting = nil
		case <-ctx.Done():
			return fmt.Errorf("%w: previous submit still running: %w", core.ErrFrameSkipped, ctx.Err())
		}
	}
	if d.inflight == nil {
		ch := make(chan acquireResult, 1)
		surface := d.surface
		go func() {
			tex, err := surface.GetCurrentTexture()
			ch <- acquireResult{tex: tex, err: err}
		}()
		d.inflight = ch
	}

	var res acquireResult
	select {
	case res = <-d.inflight:
		d.inflight = nil
	case <-ctx.Done():
		return fmt.Errorf("%w: surface acquire: %w", core.ErrFrameSkipped, ctx.Err())
	}
	if res.err != nil {
		return d.classify(core.ErrSurfaceUnavailable, "get current texture", res.err)
	}
	return d.beginPass(res.tex)
}

func (d *Device) beginPass(tex *wgpu.Texture) error {
	f := &frameResources{tex: tex}
	var err error
	if f.view, err = tex.CreateView(nil); err != nil {
		f.release()
		return d.classify(core.ErrSurfaceUnavailable, "create surface view", err)
	}
	if f.encoder, err = d.device.CreateCommandEncoder(nil); err != nil {
		f.release()
		return d.classify(core.ErrDevice, "create command encoder", err)
	}
	f.pass = f.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "lit pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       f.view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: d.clear,
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            d.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		},
	})
	f.pass.SetPipeline(d.pipeline)
	d.frame = f
	return nil
}

// BindUniforms binds the three uniform groups. Bind groups are rebuilt only
// when the underlying buffer changes.
func (d *Device) BindUniforms(camera, lighting, materials gpu.Buffer) error {
	if err := d.check(); err != nil {
		return err
	}
	if d.frame == nil {
		return fmt.Errorf("%w: bind outside a frame", core.ErrState)
	}
	sizes := [3]uint64{gpu.CameraUniformSize, gpu.LightingUniformSize, gpu.MaterialUniformSize}
	for i, b := range []gpu.Buffer{camera, lighting, materials} {
		buf, err := native(b)
		if err != nil {
			return err
		}
		if d.bound[i] != buf || d.bindGroups[i] == nil {
			bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
				Layout: d.layouts[i],
				Entries: []wgpu.BindGroupEntry{
					{Binding: 0, Buffer: buf, Offset: 0, Size: sizes[i]},
				},
			})
			if err != nil {
				return d.classify(core.ErrDevice, "create bind group", err)
			}
			if d.bindGroups[i] != nil {
				d.bindGroups[i].Release()
			}
			d.bound[i], d.bindGroups[i] = buf, bg
		}
	}
	d.frame.pass.SetBindGroup(0, d.bindGroups[0], nil)
	d.frame.pass.SetBindGroup(1, d.bindGroups[1], nil)
	return nil
}

func (d *Device) Draw(cmd gpu.DrawCommand) error {
	if err := d.check(); err != nil {
		return err
	}
	if d.frame == nil || d.bindGroups[2] == nil {
		return fmt.Errorf("%w: draw outside a bound frame", core.ErrState)
	}
	if cmd.MaterialOffset%d.alignment != 0 {
		return fmt.Errorf("%w: material offset %d not aligned to %d", core.ErrValidation, cmd.MaterialOffset, d.alignment)
	}
	vb, err := native(cmd.Vertices)
	if err != nil {
		return err
	}
	ib, err := native(cmd.Indices)
	if err != nil {
		return err
	}
	p := d.frame.pass
	p.SetBindGroup(2, d.bindGroups[2], []uint32{cmd.MaterialOffset})
	p.SetVertexBuffer(0, vb, 0, wgpu.WholeSize)
	p.SetIndexBuffer(ib, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	p.DrawIndexed(cmd.IndexCount, 1, 0, 0, 0)
	return nil
}

// SubmitFrame ends the pass, submits and presents. The frame's resources are
// handed to the submitting goroutine, so a timed-out submit never races the
// next frame over them.
func (d *Device) SubmitFrame(ctx context.Context) error {
	if err := d.check(); err != nil {
		return err
	}
	f := d.frame
	if f == nil {
		return fmt.Errorf("%w: submit without frame", core.ErrState)
	}
	d.frame = nil

	done := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		defer close(done)
		defer f.release()
		if err := f.pass.End(); err != nil {
			errc <- d.classify(core.ErrSubmitFailed, "end pass", err)
			return
		}
		cmd, err := f.encoder.Finish(nil)
		if err != nil {
			errc <- d.classify(core.ErrSubmitFailed, "finish encoder", err)
			return
		}
		defer cmd.Release()
		d.queue.Submit(cmd)
		d.surface.Present()
	}()

	select {
	case <-done:
		select {
		case err := <-errc:
			return err
		default:
			return d.check()
		}
	case <-ctx.Done():
		d.submitting = done
		return fmt.Errorf("%w: submit: %w", core.ErrFrameSkipped, ctx.Err())
	}
}

// AbortFrame drops the open frame without presenting it.
func (d *Device) AbortFrame() {
	f := d.frame
	if f == nil {
		return
	}
	d.frame = nil
	if f.pass != nil {
		_ = f.pass.End()
	}
	f.release()
}
