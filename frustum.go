package octreesplat

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

// CameraFrustum describes a viewing volume that blends continuously between
// an orthographic and an off-center perspective projection. Aperture is the
// visible extent at the focus plane; Focus is the point the frustum is
// centered on, with Focus.Z the distance from the eye to the focus plane.
// Perspective selects the projection: 0 is orthographic, 1 is perspective,
// intermediate values blend the two matrices linearly element-wise.
type CameraFrustum struct {
	Aperture    ms2.Vec
	Focus       ms3.Vec
	Near, Far   float32
	Perspective float32
}

// Matrix builds the projection matrix. The orthographic and perspective
// frustums share left/right/bottom/top extents derived from Focus and
// Aperture, scaled by near/Focus.Z in the perspective case so both agree at
// the focus plane.
func (f *CameraFrustum) Matrix() mgl32.Mat4 {
	p := f.Perspective
	if !(p > 0) {
		return f.orthoMatrix()
	}
	if !(p < 1) {
		return f.perspectiveMatrix()
	}
	o := f.orthoMatrix()
	q := f.perspectiveMatrix()
	var m mgl32.Mat4
	for i := range m {
		m[i] = o[i] + (q[i]-o[i])*p
	}
	return m
}

func (f *CameraFrustum) orthoMatrix() mgl32.Mat4 {
	l, r, b, t := f.extents(1)
	return mgl32.Ortho(l, r, b, t, f.Near, f.Far)
}

func (f *CameraFrustum) perspectiveMatrix() mgl32.Mat4 {
	// Scale by near/focus distance so the aperture is measured at the
	// focus plane rather than the near plane. Guarded so a degenerate
	// focus distance (zero or NaN) falls back to the near plane itself.
	k := float32(1)
	if f.Focus.Z > 0 || f.Focus.Z < 0 {
		k = f.Near / f.Focus.Z
	}
	l, r, b, t := f.extents(k)
	return mgl32.Frustum(l, r, b, t, f.Near, f.Far)
}

func (f *CameraFrustum) extents(k float32) (l, r, b, t float32) {
	l = (f.Focus.X - f.Aperture.X*0.5) * k
	r = (f.Focus.X + f.Aperture.X*0.5) * k
	b = (f.Focus.Y - f.Aperture.Y*0.5) * k
	t = (f.Focus.Y + f.Aperture.Y*0.5) * k
	return l, r, b, t
}

// WNear and WFar return the clip-space W of points on the near and far
// planes under the blended projection. For the pure orthographic case both
// are 1; for the pure perspective case they equal the plane distances.
func (f *CameraFrustum) WNear() float32 { return f.Perspective*f.Near + (1 - f.Perspective) }

func (f *CameraFrustum) WFar() float32 { return f.Perspective*f.Far + (1 - f.Perspective) }
