package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// LightKind is the discriminant of the Light sum type. The numeric values are
// what the shader switches on.
type LightKind uint32

const (
	LightDirectional LightKind = 0
	LightPoint       LightKind = 1
	LightSpot        LightKind = 2
)

func (k LightKind) String() string {
	switch k {
	case LightDirectional:
		return "directional"
	case LightPoint:
		return "point"
	case LightSpot:
		return "spot"
	}
	return fmt.Sprintf("LightKind(%d)", uint32(k))
}

func ParseLightKind(s string) (LightKind, error) {
	switch s {
	case "directional":
		return LightDirectional, nil
	case "point":
		return LightPoint, nil
	case "spot":
		return LightSpot, nil
	}
	return 0, fmt.Errorf("%w: unknown light type %q", ErrInvalidConfig, s)
}

// Light describes one light source. Only the fields meaningful for Kind are
// read: Direction for directional and spot, Position and Range for point and
// spot, the cone half-angles (radians) for spot.
type Light struct {
	Kind       LightKind
	Position   mgl32.Vec3
	Direction  mgl32.Vec3
	Color      mgl32.Vec3
	Intensity  float32
	Enabled    bool
	Range      float32
	InnerAngle float32
	OuterAngle float32
}

func NewDirectionalLight(direction, color mgl32.Vec3, intensity float32) Light {
	return Light{
		Kind:      LightDirectional,
		Direction: normalizeOrZero(direction),
		Color:     color,
		Intensity: intensity,
		Enabled:   true,
	}
}

func NewPointLight(position, color mgl32.Vec3, intensity, rng float32) Light {
	return Light{
		Kind:      LightPoint,
		Position:  position,
		Color:     color,
		Intensity: intensity,
		Enabled:   true,
		Range:     rng,
	}
}

func NewSpotLight(position, direction, color mgl32.Vec3, intensity, innerAngle, outerAngle float32) Light {
	return Light{
		Kind:       LightSpot,
		Position:   position,
		Direction:  normalizeOrZero(direction),
		Color:      color,
		Intensity:  intensity,
		Enabled:    true,
		InnerAngle: innerAngle,
		OuterAngle: outerAngle,
	}
}

func (l Light) Validate() error {
	switch l.Kind {
	case LightDirectional, LightPoint, LightSpot:
	default:
		return fmt.Errorf("%w: light kind %d", ErrValidation, uint32(l.Kind))
	}
	if !finiteVec3(l.Position) || !finiteVec3(l.Direction) || !finiteVec3(l.Color) || !finite(l.Intensity) {
		return fmt.Errorf("%w: non-finite %s light", ErrValidation, l.Kind)
	}
	if l.Kind != LightPoint && l.Direction.Len() == 0 {
		return fmt.Errorf("%w: %s light without direction", ErrValidation, l.Kind)
	}
	if l.Kind == LightSpot && (l.OuterAngle < 0 || l.InnerAngle < 0) {
		return fmt.Errorf("%w: negative spot cone", ErrValidation)
	}
	return nil
}

// DefaultLights is a key light with a cool fill and a warm rim.
func DefaultLights() []Light {
	return []Light{
		NewDirectionalLight(mgl32.Vec3{-0.3, -0.8, -0.5}, mgl32.Vec3{1.0, 1.0, 0.95}, 2.5),
		NewDirectionalLight(mgl32.Vec3{0.2, 0.4, 0.8}, mgl32.Vec3{0.4, 0.6, 1.0}, 0.8),
		NewDirectionalLight(mgl32.Vec3{0.5, 0.2, 0.8}, mgl32.Vec3{1.0, 0.8, 0.6}, 0.6),
	}
}

var (
	DefaultAmbientColor     = mgl32.Vec3{0.1, 0.1, 0.15}
	DefaultAmbientIntensity = float32(0.3)
)
