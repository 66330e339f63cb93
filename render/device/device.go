// Package device implements the renderer backend on WebGPU.
package device

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/vizcore/render/core"
	"github.com/gekko3d/vizcore/render/gpu"
	"github.com/gekko3d/vizcore/render/shaders"
)

type Config struct {
	Width, Height int
	// PresentMode is one of "fifo", "mailbox" or "immediate".
	PresentMode string
	ClearColor  [4]float64
}

type acquireResult struct {
	tex *wgpu.Texture
	err error
}

// frameResources are owned by exactly one frame and released together.
type frameResources struct {
	tex     *wgpu.Texture
	view    *wgpu.TextureView
	encoder *wgpu.CommandEncoder
	pass    *wgpu.RenderPassEncoder
}

func (f *frameResources) release() {
	if f.pass != nil {
		f.pass.Release()
	}
	if f.encoder != nil {
		f.encoder.Release()
	}
	if f.view != nil {
		f.view.Release()
	}
	if f.tex != nil {
		f.tex.Release()
	}
}

// Device is a gpu.Backend presenting to a window surface.
type Device struct {
	logger core.Logger

	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	config   *wgpu.SurfaceConfiguration

	pipeline  *wgpu.RenderPipeline
	layouts   [3]*wgpu.BindGroupLayout
	depthTex  *wgpu.Texture
	depthView *wgpu.TextureView
	clear     wgpu.Color
	alignment uint32

	bound      [3]*wgpu.Buffer
	bindGroups [3]*wgpu.BindGroup

	frame      *frameResources
	inflight   chan acquireResult
	submitting chan struct{}

	lost     atomic.Bool
	lostOnce sync.Once
}

// New brings up adapter, device, surface and the lit pipeline for the surface
// described by desc.
func New(desc *wgpu.SurfaceDescriptor, cfg Config, logger core.Logger) (*Device, error) {
	if logger == nil {
		logger = core.NopLogger()
	}
	d := &Device{
		logger: logger,
		clear:  wgpu.Color{R: cfg.ClearColor[0], G: cfg.ClearColor[1], B: cfg.ClearColor[2], A: cfg.ClearColor[3]},
	}
	if err := d.init(desc, cfg); err != nil {
		d.Release()
		return nil, err
	}
	return d, nil
}

func (d *Device) init(desc *wgpu.SurfaceDescriptor, cfg Config) error {
	d.instance = wgpu.CreateInstance(nil)
	d.surface = d.instance.CreateSurface(desc)

	adapter, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: d.surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("%w: request adapter: %w", core.ErrDevice, err)
	}
	d.adapter = adapter

	d.device, err = adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "vizcore device",
		DeviceLostCallback: func(reason wgpu.DeviceLostReason, message string) {
			d.markLost(fmt.Sprintf("%v: %s", reason, message))
		},
	})
	if err != nil {
		return fmt.Errorf("%w: request device: %w", core.ErrDevice, err)
	}
	d.queue = d.device.GetQueue()

	d.alignment = adapter.GetLimits().Limits.MinUniformBufferOffsetAlignment
	if d.alignment == 0 {
		d.alignment = 256
	}

	caps := d.surface.GetCapabilities(adapter)
	if len(caps.Formats) == 0 {
		return fmt.Errorf("%w: surface reports no formats", core.ErrSurfaceUnavailable)
	}
	d.config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      pickFormat(caps.Formats),
		Width:       uint32(max(cfg.Width, 1)),
		Height:      uint32(max(cfg.Height, 1)),
		PresentMode: presentMode(cfg.PresentMode),
		AlphaMode:   caps.AlphaModes[0],
	}
	d.surface.Configure(adapter, d.device, d.config)
	d.logger.Infof("device: surface %dx%d format %v present %v", d.config.Width, d.config.Height, d.config.Format, d.config.PresentMode)

	if err := d.createDepth(); err != nil {
		return err
	}
	return d.createPipeline()
}

// pickFormat prefers a linear format; the shader applies gamma itself.
func pickFormat(formats []wgpu.TextureFormat) wgpu.TextureFormat {
	for _, f := range formats {
		if f == wgpu.TextureFormatBGRA8Unorm || f == wgpu.TextureFormatRGBA8Unorm {
			return f
		}
	}
	return formats[0]
}

func presentMode(name string) wgpu.PresentMode {
	switch strings.ToLower(name) {
	case "mailbox":
		return wgpu.PresentModeMailbox
	case "immediate":
		return wgpu.PresentModeImmediate
	}
	return wgpu.PresentModeFifo
}

func (d *Device) markLost(reason string) {
	d.lostOnce.Do(func() {
		d.lost.Store(true)
		d.logger.Errorf("device: lost (%s)", reason)
	})
}

func (d *Device) check() error {
	if d.lost.Load() {
		return core.ErrDeviceLost
	}
	return nil
}

// classify maps a native error onto the core taxonomy.
func (d *Device) classify(sentinel error, op string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case d.lost.Load() || strings.Contains(msg, "lost"):
		d.markLost(msg)
		return fmt.Errorf("%w: %s: %w", core.ErrDeviceLost, op, err)
	case strings.Contains(msg, "timeout"):
		return fmt.Errorf("%w: %s: %w", core.ErrFrameSkipped, op, err)
	}
	return fmt.Errorf("%w: %s: %w", sentinel, op, err)
}

func (d *Device) createDepth() error {
	if d.depthView != nil {
		d.depthView.Release()
		d.depthView = nil
	}
	if d.depthTex != nil {
		d.depthTex.Release()
		d.depthTex = nil
	}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "depth",
		Size:          wgpu.Extent3D{Width: d.config.Width, Height: d.config.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth32Float,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return d.classify(core.ErrAllocation, "create depth texture", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return d.classify(core.ErrAllocation, "create depth view", err)
	}
	d.depthTex, d.depthView = tex, view
	return nil
}

func (d *Device) createPipeline() error {
	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "lit shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.LitWGSL},
	})
	if err != nil {
		return fmt.Errorf("%w: compile lit shader: %w", core.ErrConfiguration, err)
	}
	defer module.Release()

	uniform := func(label string, size uint64, dynamic bool) (*wgpu.BindGroupLayout, error) {
		return d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label: label,
			Entries: []wgpu.BindGroupLayoutEntry{{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:             wgpu.BufferBindingTypeUniform,
					HasDynamicOffset: dynamic,
					MinBindingSize:   size,
				},
			}},
		})
	}
	groups := []struct {
		label   string
		size    uint64
		dynamic bool
	}{
		{"camera layout", gpu.CameraUniformSize, false},
		{"lighting layout", gpu.LightingUniformSize, false},
		{"material layout", gpu.MaterialUniformSize, true},
	}
	for i, s := range groups {
		if d.layouts[i], err = uniform(s.label, s.size, s.dynamic); err != nil {
			return d.classify(core.ErrDevice, "create bind group layout", err)
		}
	}

	layout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "lit pipeline layout",
		BindGroupLayouts: d.layouts[:],
	})
	if err != nil {
		return d.classify(core.ErrDevice, "create pipeline layout", err)
	}
	defer layout.Release()

	d.pipeline, err = d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "lit pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: core.VertexStride,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
					{Format: wgpu.VertexFormatFloat32x4, Offset: 24, ShaderLocation: 2},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format: d.config.Format,
				Blend: &wgpu.BlendState{
					Color: wgpu.BlendComponent{
						Operation: wgpu.BlendOperationAdd,
						SrcFactor: wgpu.BlendFactorSrcAlpha,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
					},
					Alpha: wgpu.BlendComponent{
						Operation: wgpu.BlendOperationAdd,
						SrcFactor: wgpu.BlendFactorOne,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
					},
				},
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth32Float,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: create lit pipeline: %w", core.ErrConfiguration, err)
	}
	return nil
}

func (d *Device) UniformAlignment() uint32 { return d.alignment }

func (d *Device) Resize(width, height int) error {
	if err := d.check(); err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return nil
	}
	d.waitIdle()
	d.config.Width, d.config.Height = uint32(width), uint32(height)
	d.surface.Configure(d.adapter, d.device, d.config)
	d.logger.Debugf("device: resized to %s", d)
	return d.createDepth()
}

// waitIdle settles any acquire or submit still running in the background.
func (d *Device) waitIdle() {
	if d.inflight != nil {
		res := <-d.inflight
		d.inflight = nil
		if res.tex != nil {
			res.tex.Release()
		}
	}
	if d.submitting != nil {
		<-d.submitting
		d.submitting = nil
	}
}

func (d *Device) Release() {
	d.waitIdle()
	if d.frame != nil {
		d.frame.release()
		d.frame = nil
	}
	for i := range d.bindGroups {
		if d.bindGroups[i] != nil {
			d.bindGroups[i].Release()
			d.bindGroups[i] = nil
		}
	}
	for i := range d.layouts {
		if d.layouts[i] != nil {
			d.layouts[i].Release()
			d.layouts[i] = nil
		}
	}
	if d.pipeline != nil {
		d.pipeline.Release()
		d.pipeline = nil
	}
	if d.depthView != nil {
		d.depthView.Release()
		d.depthView = nil
	}
	if d.depthTex != nil {
		d.depthTex.Release()
		d.depthTex = nil
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.surface != nil {
		d.surface.Release()
		d.surface = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

var _ gpu.Backend = (*Device)(nil)

func (d *Device) String() string {
	if d.config == nil {
		return "device(uninitialized)"
	}
	return fmt.Sprintf("device(%dx%d)", d.config.Width, d.config.Height)
}
