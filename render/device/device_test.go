package device

import (
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/vizcore/render/core"
	"github.com/gekko3d/vizcore/render/gpu"
	"github.com/stretchr/testify/assert"
)

func TestUsageBits(t *testing.T) {
	got := usageBits(gpu.UsageVertex | gpu.UsageCopyDst)
	assert.Equal(t, wgpu.BufferUsageVertex|wgpu.BufferUsageCopyDst, got)
	assert.Equal(t, wgpu.BufferUsage(0), usageBits(0))
}

func TestPickFormatPrefersLinear(t *testing.T) {
	assert.Equal(t, wgpu.TextureFormatBGRA8Unorm,
		pickFormat([]wgpu.TextureFormat{wgpu.TextureFormatBGRA8UnormSrgb, wgpu.TextureFormatBGRA8Unorm}))
	assert.Equal(t, wgpu.TextureFormatBGRA8UnormSrgb,
		pickFormat([]wgpu.TextureFormat{wgpu.TextureFormatBGRA8UnormSrgb}))
}

func TestPresentMode(t *testing.T) {
	assert.Equal(t, wgpu.PresentModeMailbox, presentMode("Mailbox"))
	assert.Equal(t, wgpu.PresentModeImmediate, presentMode("immediate"))
	assert.Equal(t, wgpu.PresentModeFifo, presentMode(""))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"Surface texture is outdated", core.ErrSurfaceUnavailable},
		{"acquire timeout", core.ErrFrameSkipped},
		{"Parent device is lost", core.ErrDeviceLost},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			d := &Device{logger: core.NopLogger()}
			err := d.classify(core.ErrSurfaceUnavailable, "get current texture", errors.New(tt.msg))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLostDeviceFailsEveryCall(t *testing.T) {
	d := &Device{logger: core.NopLogger()}
	d.markLost("test")
	d.markLost("again")

	_, err := d.CreateBuffer("x", 16, gpu.UsageVertex)
	assert.ErrorIs(t, err, core.ErrDeviceLost)
	assert.ErrorIs(t, d.Draw(gpu.DrawCommand{}), core.ErrDeviceLost)
	assert.True(t, core.IsDeviceLost(d.Resize(10, 10)))
}

func TestForeignBufferRejected(t *testing.T) {
	_, err := native(&gpu.MemBuffer{})
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = native(&buffer{})
	assert.ErrorIs(t, err, core.ErrValidation)
}
