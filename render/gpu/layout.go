package gpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/gekko3d/vizcore/render/core"
	"github.com/go-gl/mathgl/mgl32"
)

// Byte sizes shared with shaders/lit.wgsl.
const (
	CameraUniformSize   = 80
	LightUniformSize    = 80
	LightingHeaderSize  = 32
	LightingUniformSize = LightingHeaderSize + core.MaxLights*LightUniformSize // 672
	MaterialUniformSize = 48
)

// CameraUniform mirrors the shader's Camera struct.
type CameraUniform struct {
	ViewProj [16]float32 // column-major, WebGPU clip space
	Position [3]float32
	pad0     float32
}

type LightUniform struct {
	Position  [3]float32
	Kind      uint32
	Direction [3]float32
	Intensity float32
	Color     [3]float32
	Enabled   uint32
	Range     float32
	CosInner  float32
	CosOuter  float32
	pad0      float32
	pad1      [4]float32
}

type LightingUniform struct {
	AmbientColor     [3]float32
	AmbientIntensity float32
	NumLights        uint32
	pad0             uint32
	pad1             [2]uint32
	Lights           [core.MaxLights]LightUniform
}

type MaterialUniform struct {
	Albedo    [3]float32
	Metallic  float32
	Roughness float32
	AO        float32
	pad0      [2]float32
	Emissive  [3]float32
	pad1      float32
}

// clipFix maps OpenGL clip depth (-1..1) to WebGPU (0..1).
var clipFix = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

func NewCameraUniform(c *core.Camera) CameraUniform {
	return CameraUniform{
		ViewProj: clipFix.Mul4(c.ViewProj()),
		Position: c.Eye(),
	}
}

func NewLightUniform(l core.Light) LightUniform {
	u := LightUniform{
		Position:  l.Position,
		Kind:      uint32(l.Kind),
		Direction: l.Direction,
		Intensity: l.Intensity,
		Color:     l.Color,
		Range:     l.Range,
		CosInner:  math32.Cos(l.InnerAngle),
		CosOuter:  math32.Cos(l.OuterAngle),
	}
	if l.Enabled {
		u.Enabled = 1
	}
	return u
}

// Light recovers the host-side light. Cone angles come back through acos and
// may differ from the originals in the last bits.
func (u LightUniform) Light() core.Light {
	return core.Light{
		Kind:       core.LightKind(u.Kind),
		Position:   u.Position,
		Direction:  u.Direction,
		Color:      u.Color,
		Intensity:  u.Intensity,
		Enabled:    u.Enabled != 0,
		Range:      u.Range,
		InnerAngle: math32.Acos(core.Clamp(u.CosInner, -1, 1)),
		OuterAngle: math32.Acos(core.Clamp(u.CosOuter, -1, 1)),
	}
}

func NewLightingUniform(set *core.LightingSet) LightingUniform {
	u := LightingUniform{
		AmbientColor:     set.AmbientColor(),
		AmbientIntensity: set.AmbientIntensity(),
	}
	for i, l := range set.Lights() {
		if i == core.MaxLights {
			break
		}
		u.Lights[i] = NewLightUniform(l)
		u.NumLights++
	}
	return u
}

func (u LightingUniform) LightingSet() *core.LightingSet {
	n := min(int(u.NumLights), core.MaxLights)
	lights := make([]core.Light, 0, n)
	for i := 0; i < n; i++ {
		lights = append(lights, u.Lights[i].Light())
	}
	return core.NewLightingSet(u.AmbientColor, u.AmbientIntensity, lights)
}

func NewMaterialUniform(m core.Material) MaterialUniform {
	return MaterialUniform{
		Albedo:    m.Albedo,
		Metallic:  m.Metallic,
		Roughness: m.Roughness,
		AO:        m.AO,
		Emissive:  m.Emissive,
	}
}

func (u MaterialUniform) Material() core.Material {
	return core.Material{
		Albedo:    u.Albedo,
		Metallic:  u.Metallic,
		Roughness: u.Roughness,
		AO:        u.AO,
		Emissive:  u.Emissive,
	}
}

// byteWriter appends little-endian scalars, padding included.
type byteWriter struct {
	buf []byte
}

func (w *byteWriter) u32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *byteWriter) f32(v float32) {
	w.u32(math.Float32bits(v))
}

func (w *byteWriter) f32s(vs ...float32) {
	for _, v := range vs {
		w.f32(v)
	}
}

type byteReader struct {
	buf []byte
	off int
}

func (r *byteReader) u32() uint32 {
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *byteReader) f32() float32 {
	return math.Float32frombits(r.u32())
}

func (r *byteReader) vec3() [3]float32 {
	return [3]float32{r.f32(), r.f32(), r.f32()}
}

func (r *byteReader) skip(n int) {
	r.off += n
}

func (u CameraUniform) Marshal() []byte {
	w := byteWriter{buf: make([]byte, 0, CameraUniformSize)}
	w.f32s(u.ViewProj[:]...)
	w.f32s(u.Position[:]...)
	w.f32(0)
	return w.buf
}

func (u LightUniform) appendTo(w *byteWriter) {
	w.f32s(u.Position[:]...)
	w.u32(u.Kind)
	w.f32s(u.Direction[:]...)
	w.f32(u.Intensity)
	w.f32s(u.Color[:]...)
	w.u32(u.Enabled)
	w.f32s(u.Range, u.CosInner, u.CosOuter, 0)
	w.f32s(0, 0, 0, 0)
}

func (u LightingUniform) Marshal() []byte {
	w := byteWriter{buf: make([]byte, 0, LightingUniformSize)}
	w.f32s(u.AmbientColor[:]...)
	w.f32(u.AmbientIntensity)
	w.u32(u.NumLights)
	w.u32(0)
	w.u32(0)
	w.u32(0)
	for _, l := range u.Lights {
		l.appendTo(&w)
	}
	return w.buf
}

func (u MaterialUniform) Marshal() []byte {
	w := byteWriter{buf: make([]byte, 0, MaterialUniformSize)}
	w.f32s(u.Albedo[:]...)
	w.f32s(u.Metallic, u.Roughness, u.AO, 0, 0)
	w.f32s(u.Emissive[:]...)
	w.f32(0)
	return w.buf
}

func UnmarshalCameraUniform(b []byte) (CameraUniform, error) {
	var u CameraUniform
	if len(b) < CameraUniformSize {
		return u, fmt.Errorf("%w: camera uniform is %d bytes", core.ErrValidation, len(b))
	}
	r := byteReader{buf: b}
	for i := range u.ViewProj {
		u.ViewProj[i] = r.f32()
	}
	u.Position = r.vec3()
	return u, nil
}

func UnmarshalLightingUniform(b []byte) (LightingUniform, error) {
	var u LightingUniform
	if len(b) < LightingUniformSize {
		return u, fmt.Errorf("%w: lighting uniform is %d bytes", core.ErrValidation, len(b))
	}
	r := byteReader{buf: b}
	u.AmbientColor = r.vec3()
	u.AmbientIntensity = r.f32()
	u.NumLights = r.u32()
	r.skip(12)
	for i := range u.Lights {
		l := &u.Lights[i]
		l.Position = r.vec3()
		l.Kind = r.u32()
		l.Direction = r.vec3()
		l.Intensity = r.f32()
		l.Color = r.vec3()
		l.Enabled = r.u32()
		l.Range = r.f32()
		l.CosInner = r.f32()
		l.CosOuter = r.f32()
		r.skip(20)
	}
	return u, nil
}

func UnmarshalMaterialUniform(b []byte) (MaterialUniform, error) {
	var u MaterialUniform
	if len(b) < MaterialUniformSize {
		return u, fmt.Errorf("%w: material uniform is %d bytes", core.ErrValidation, len(b))
	}
	r := byteReader{buf: b}
	u.Albedo = r.vec3()
	u.Metallic = r.f32()
	u.Roughness = r.f32()
	u.AO = r.f32()
	r.skip(8)
	u.Emissive = r.vec3()
	return u, nil
}

// LayoutError names the structure whose host layout disagrees with the shader.
type LayoutError struct {
	Struct string
	Field  string
	Want   uintptr
	Got    uintptr
}

func (e *LayoutError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s is %d bytes, shader expects %d", core.ErrLayoutMismatch, e.Struct, e.Got, e.Want)
	}
	return fmt.Sprintf("%v: %s.%s at offset %d, shader expects %d", core.ErrLayoutMismatch, e.Struct, e.Field, e.Got, e.Want)
}

func (e *LayoutError) Unwrap() error { return core.ErrLayoutMismatch }

type layoutCheck struct {
	structName string
	field      string
	got, want  uintptr
}

func layoutChecks() []layoutCheck {
	var cam CameraUniform
	var light LightUniform
	var lighting LightingUniform
	var mat MaterialUniform
	return []layoutCheck{
		{"CameraUniform", "", unsafe.Sizeof(cam), CameraUniformSize},
		{"CameraUniform", "Position", unsafe.Offsetof(cam.Position), 64},
		{"CameraUniform", "marshaled", uintptr(len(cam.Marshal())), CameraUniformSize},

		{"LightUniform", "", unsafe.Sizeof(light), LightUniformSize},
		{"LightUniform", "Direction", unsafe.Offsetof(light.Direction), 16},
		{"LightUniform", "Color", unsafe.Offsetof(light.Color), 32},
		{"LightUniform", "Range", unsafe.Offsetof(light.Range), 48},
		{"LightUniform", "CosOuter", unsafe.Offsetof(light.CosOuter), 56},

		{"LightingUniform", "", unsafe.Sizeof(lighting), LightingUniformSize},
		{"LightingUniform", "NumLights", unsafe.Offsetof(lighting.NumLights), 16},
		{"LightingUniform", "Lights", unsafe.Offsetof(lighting.Lights), LightingHeaderSize},
		{"LightingUniform", "marshaled", uintptr(len(lighting.Marshal())), LightingUniformSize},

		{"MaterialUniform", "", unsafe.Sizeof(mat), MaterialUniformSize},
		{"MaterialUniform", "Roughness", unsafe.Offsetof(mat.Roughness), 16},
		{"MaterialUniform", "Emissive", unsafe.Offsetof(mat.Emissive), 32},
		{"MaterialUniform", "marshaled", uintptr(len(mat.Marshal())), MaterialUniformSize},

		{"Vertex", "", unsafe.Sizeof(core.Vertex{}), core.VertexStride},
	}
}

func checkLayout(c layoutCheck) error {
	if c.got == c.want {
		return nil
	}
	return &LayoutError{Struct: c.structName, Field: c.field, Want: c.want, Got: c.got}
}

// ValidateLayouts verifies every uniform against the shader layout. It runs
// before the first upload; a mismatch is fatal.
func ValidateLayouts() error {
	for _, c := range layoutChecks() {
		if err := checkLayout(c); err != nil {
			return err
		}
	}
	return nil
}
