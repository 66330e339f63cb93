package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxLights is the number of light slots in the lighting uniform.
const MaxLights = 8

// LightingSet is an immutable snapshot of the ambient term and the active
// lights. Changing lights means building a new set.
type LightingSet struct {
	ambientColor     mgl32.Vec3
	ambientIntensity float32
	lights           []Light
	ignored          int
}

// NewLightingSet keeps enabled lights in order and ignores any beyond
// MaxLights.
func NewLightingSet(ambientColor mgl32.Vec3, ambientIntensity float32, lights []Light) *LightingSet {
	s := &LightingSet{
		ambientColor:     ambientColor,
		ambientIntensity: ambientIntensity,
		lights:           make([]Light, 0, min(len(lights), MaxLights)),
	}
	for _, l := range lights {
		if !l.Enabled {
			continue
		}
		if len(s.lights) == MaxLights {
			s.ignored++
			continue
		}
		s.lights = append(s.lights, l)
	}
	return s
}

func DefaultLightingSet() *LightingSet {
	return NewLightingSet(DefaultAmbientColor, DefaultAmbientIntensity, DefaultLights())
}

func (s *LightingSet) AmbientColor() mgl32.Vec3  { return s.ambientColor }
func (s *LightingSet) AmbientIntensity() float32 { return s.ambientIntensity }

// Count is the number of active lights, at most MaxLights.
func (s *LightingSet) Count() int { return len(s.lights) }

// Ignored counts enabled lights dropped because all slots were taken.
func (s *LightingSet) Ignored() int { return s.ignored }

func (s *LightingSet) Light(i int) (Light, error) {
	if i < 0 || i >= len(s.lights) {
		return Light{}, fmt.Errorf("%w: %d of %d", ErrLightIndex, i, len(s.lights))
	}
	return s.lights[i], nil
}

func (s *LightingSet) Lights() []Light {
	return append([]Light(nil), s.lights...)
}

// WithLights returns a new set sharing the ambient term.
func (s *LightingSet) WithLights(lights []Light) *LightingSet {
	return NewLightingSet(s.ambientColor, s.ambientIntensity, lights)
}

func (s *LightingSet) WithAmbient(color mgl32.Vec3, intensity float32) *LightingSet {
	return &LightingSet{
		ambientColor:     color,
		ambientIntensity: intensity,
		lights:           s.lights,
		ignored:          s.ignored,
	}
}
