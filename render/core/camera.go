package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	DefaultFovY   = math32.Pi / 4
	DefaultAspect = 4.0 / 3.0
	DefaultNear   = 0.1
	DefaultFar    = 100.0

	minOrbitDistance = 0.1
	pitchLimit       = math32.Pi/2 - 0.1
)

// Camera is a perspective look-at camera. The view-projection matrix is
// cached and rebuilt on the first read after any change.
type Camera struct {
	eye    mgl32.Vec3
	target mgl32.Vec3
	up     mgl32.Vec3
	fovY   float32
	aspect float32
	near   float32
	far    float32

	dirty    bool
	revision uint64
	view     mgl32.Mat4
	proj     mgl32.Mat4
	viewProj mgl32.Mat4
}

var (
	defaultEye = mgl32.Vec3{0, 0, 5}
	defaultUp  = mgl32.Vec3{0, 1, 0}
)

func NewCamera() *Camera {
	return &Camera{
		eye:    defaultEye,
		up:     defaultUp,
		fovY:   DefaultFovY,
		aspect: DefaultAspect,
		near:   DefaultNear,
		far:    DefaultFar,
		dirty:  true,
	}
}

func (c *Camera) touch() {
	c.dirty = true
	c.revision++
}

func (c *Camera) Eye() mgl32.Vec3    { return c.eye }
func (c *Camera) Target() mgl32.Vec3 { return c.target }
func (c *Camera) Up() mgl32.Vec3     { return c.up }
func (c *Camera) FovY() float32      { return c.fovY }
func (c *Camera) Aspect() float32    { return c.aspect }
func (c *Camera) Near() float32      { return c.near }
func (c *Camera) Far() float32       { return c.far }

// Revision increases on every change; consumers compare it to skip uploads.
func (c *Camera) Revision() uint64 { return c.revision }

func (c *Camera) LookAt(eye, target, up mgl32.Vec3) {
	c.eye, c.target, c.up = eye, target, up
	c.touch()
}

// SetPosition moves the eye and keeps looking at the current target.
func (c *Camera) SetPosition(eye mgl32.Vec3) {
	c.eye = eye
	c.touch()
}

// Reset restores the default pose. Projection and aspect are kept.
func (c *Camera) Reset() {
	c.LookAt(defaultEye, mgl32.Vec3{}, defaultUp)
}

func (c *Camera) SetPerspective(fovY, near, far float32) {
	c.fovY, c.near, c.far = fovY, near, far
	c.touch()
}

func (c *Camera) SetAspect(aspect float32) {
	if aspect <= 0 || aspect == c.aspect {
		return
	}
	c.aspect = aspect
	c.touch()
}

// SetViewport derives the aspect ratio from a framebuffer size. Zero sizes
// (minimized windows) are ignored.
func (c *Camera) SetViewport(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.SetAspect(float32(width) / float32(height))
}

func (c *Camera) rebuild() {
	if !c.dirty {
		return
	}
	c.view = mgl32.LookAtV(c.eye, c.target, c.up)
	c.proj = mgl32.Perspective(c.fovY, c.aspect, c.near, c.far)
	c.viewProj = c.proj.Mul4(c.view)
	c.dirty = false
}

func (c *Camera) View() mgl32.Mat4 {
	c.rebuild()
	return c.view
}

func (c *Camera) Projection() mgl32.Mat4 {
	c.rebuild()
	return c.proj
}

// ViewProj uses OpenGL clip conventions (z in -1..1).
func (c *Camera) ViewProj() mgl32.Mat4 {
	c.rebuild()
	return c.viewProj
}

// Orbit rotates the eye around the target by yaw/pitch deltas in radians.
// Pitch stays clear of the poles so the up vector never degenerates.
func (c *Camera) Orbit(deltaYaw, deltaPitch float32) {
	offset := c.eye.Sub(c.target)
	dist := offset.Len()
	if dist == 0 {
		return
	}
	theta := math32.Atan2(offset.Z(), offset.X()) + deltaYaw
	phi := math32.Asin(Clamp(offset.Y()/dist, -1, 1)) + deltaPitch
	phi = Clamp(phi, -pitchLimit, pitchLimit)

	c.eye = c.target.Add(mgl32.Vec3{
		dist * math32.Cos(phi) * math32.Cos(theta),
		dist * math32.Sin(phi),
		dist * math32.Cos(phi) * math32.Sin(theta),
	})
	c.touch()
}

// Zoom scales the eye-target distance by factor, never closer than 0.1.
func (c *Camera) Zoom(factor float32) {
	offset := c.eye.Sub(c.target)
	dist := offset.Len()
	if dist == 0 || factor <= 0 {
		return
	}
	next := math32.Max(dist*factor, minOrbitDistance)
	c.eye = c.target.Add(offset.Mul(next / dist))
	c.touch()
}

// Pan moves eye and target together in the view plane.
func (c *Camera) Pan(dx, dy float32) {
	forward := normalizeOrZero(c.target.Sub(c.eye))
	right := normalizeOrZero(forward.Cross(c.up))
	up := right.Cross(forward)
	delta := right.Mul(dx).Add(up.Mul(dy))
	c.eye = c.eye.Add(delta)
	c.target = c.target.Add(delta)
	c.touch()
}

// Frustum returns the normalized planes of the current view-projection.
func (c *Camera) Frustum() [6]mgl32.Vec4 {
	return ExtractFrustum(c.ViewProj())
}

// ExtractFrustum extracts the 6 planes of the frustum from the view-projection matrix.
// Returns planes in order: Left, Right, Bottom, Top, Near, Far.
// Plane is Ax + By + Cz + D = 0 with the normal pointing inside.
func ExtractFrustum(vp mgl32.Mat4) [6]mgl32.Vec4 {
	var planes [6]mgl32.Vec4
	row := func(r int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(r, 0), vp.At(r, 1), vp.At(r, 2), vp.At(r, 3)}
	}
	w := row(3)
	for axis := 0; axis < 3; axis++ {
		r := row(axis)
		planes[axis*2] = w.Add(r)
		planes[axis*2+1] = w.Sub(r)
	}

	for i := range planes {
		length := math32.Sqrt(planes[i][0]*planes[i][0] + planes[i][1]*planes[i][1] + planes[i][2]*planes[i][2])
		if length > 0 {
			planes[i] = planes[i].Mul(1.0 / length)
		}
	}
	return planes
}

// AABBInFrustum is conservative: it reports false only when the box lies
// entirely behind one plane.
func AABBInFrustum(box AABB, planes [6]mgl32.Vec4) bool {
	for _, plane := range planes {
		// most-inside corner along the plane normal
		var p mgl32.Vec3
		for i := 0; i < 3; i++ {
			if plane[i] > 0 {
				p[i] = box[1][i]
			} else {
				p[i] = box[0][i]
			}
		}
		if plane[0]*p[0]+plane[1]*p[1]+plane[2]*p[2]+plane[3] < 0 {
			return false
		}
	}
	return true
}
