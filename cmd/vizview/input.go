package main

import (
	"github.com/gekko3d/vizcore"
	"github.com/go-gl/glfw/v3.3/glfw"
)

const (
	orbitSpeed = 0.005
	panSpeed   = 0.01
	zoomStep   = 0.9
)

// input maps mouse and keyboard onto the session's camera, lights and
// layers.
type input struct {
	s                 *vizcore.Session
	orbiting, panning bool
	lastX, lastY      float64
}

func newInput(s *vizcore.Session) *input {
	return &input{s: s}
}

func (in *input) attach(w *glfw.Window) {
	w.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		_ = in.s.Resize(width, height)
	})
	w.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		in.lastX, in.lastY = w.GetCursorPos()
		switch button {
		case glfw.MouseButtonLeft:
			in.orbiting = action == glfw.Press
		case glfw.MouseButtonRight:
			in.panning = action == glfw.Press
		}
	})
	w.SetCursorPosCallback(func(w *glfw.Window, x, y float64) {
		in.drag(x-in.lastX, y-in.lastY)
		in.lastX, in.lastY = x, y
	})
	w.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		in.scroll(yoff)
	})
	w.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		if key == glfw.KeyEscape {
			w.SetShouldClose(true)
			return
		}
		in.key(key)
	})
}

func (in *input) drag(dx, dy float64) {
	cam := in.s.Scene().Camera()
	switch {
	case in.orbiting:
		cam.Orbit(float32(-dx)*orbitSpeed, float32(-dy)*orbitSpeed)
	case in.panning:
		cam.Pan(float32(-dx)*panSpeed, float32(dy)*panSpeed)
	}
}

func (in *input) scroll(yoff float64) {
	cam := in.s.Scene().Camera()
	if yoff > 0 {
		cam.Zoom(zoomStep)
	} else if yoff < 0 {
		cam.Zoom(1 / zoomStep)
	}
}

// key: 1-8 toggle lights, B/D/O toggle layers, R resets the camera.
func (in *input) key(k glfw.Key) {
	sc := in.s.Scene()
	if k >= glfw.Key1 && k <= glfw.Key8 {
		i := int(k - glfw.Key1)
		lights := sc.Lights()
		if i < len(lights) {
			_ = sc.SetLightEnabled(i, !lights[i].Enabled)
		}
		return
	}
	var name string
	switch k {
	case glfw.KeyR:
		sc.Camera().Reset()
		return
	case glfw.KeyB:
		name = layerBackground
	case glfw.KeyD:
		name = layerData
	case glfw.KeyO:
		name = layerOverlay
	default:
		return
	}
	if l, err := sc.Layer(name); err == nil {
		l.SetVisible(!l.Visible())
	}
}
