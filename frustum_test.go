package octreesplat

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

func projectNDC(m mgl32.Mat4, x, y, z float32) (nx, ny float32, w float32) {
	clip := m.Mul4x1(mgl32.Vec4{x, y, z, 1})
	return clip.X() / clip.W(), clip.Y() / clip.W(), clip.W()
}

func TestFrustumOrtho(t *testing.T) {
	f := CameraFrustum{
		Aperture:    ms2.Vec{X: 2, Y: 2},
		Focus:       ms3.Vec{Z: 3},
		Near:        1,
		Far:         5,
		Perspective: 0,
	}
	m := f.Matrix()
	// Aperture edges land on NDC +-1 at any depth.
	nx, _, w := projectNDC(m, 1, 0, -3)
	if math32.Abs(nx-1) > 1e-5 {
		t.Errorf("ortho right edge: ndc x = %g, want 1", nx)
	}
	if math32.Abs(w-1) > 1e-5 {
		t.Errorf("ortho w = %g, want 1", w)
	}
	nx, ny, _ := projectNDC(m, -1, -1, -1.5)
	if math32.Abs(nx+1) > 1e-5 || math32.Abs(ny+1) > 1e-5 {
		t.Errorf("ortho corner: ndc (%g,%g), want (-1,-1)", nx, ny)
	}
}

func TestFrustumPerspective(t *testing.T) {
	f := CameraFrustum{
		Aperture:    ms2.Vec{X: 2, Y: 2},
		Focus:       ms3.Vec{Z: 3},
		Near:        1,
		Far:         5,
		Perspective: 1,
	}
	m := f.Matrix()
	// The aperture is measured at the focus plane: its edge projects to
	// NDC 1 exactly at focus distance.
	nx, _, w := projectNDC(m, 1, 0, -3)
	if math32.Abs(nx-1) > 1e-5 {
		t.Errorf("perspective focus-plane edge: ndc x = %g, want 1", nx)
	}
	if math32.Abs(w-3) > 1e-5 {
		t.Errorf("perspective w at focus = %g, want 3", w)
	}
	// Beyond focus the same lateral offset shrinks.
	nx, _, _ = projectNDC(m, 1, 0, -4.5)
	if !(nx < 0.7) {
		t.Errorf("perspective foreshortening missing: ndc x = %g", nx)
	}
}

func TestFrustumBlend(t *testing.T) {
	f := CameraFrustum{
		Aperture:    ms2.Vec{X: 2, Y: 2},
		Focus:       ms3.Vec{Z: 3},
		Near:        1,
		Far:         5,
		Perspective: 0.5,
	}
	ortho := f
	ortho.Perspective = 0
	persp := f
	persp.Perspective = 1
	m := f.Matrix()
	mo := ortho.Matrix()
	mp := persp.Matrix()
	for i := range m {
		want := 0.5 * (mo[i] + mp[i])
		if math32.Abs(m[i]-want) > 1e-5 {
			t.Fatalf("blend element %d = %g, want %g", i, m[i], want)
		}
	}
	// W of the blended matrix interpolates between 1 and view distance.
	_, _, w := projectNDC(m, 0, 0, -3)
	if math32.Abs(w-2) > 1e-5 {
		t.Errorf("blended w = %g, want 2", w)
	}
	if got := f.WNear(); math32.Abs(got-1) > 1e-6 {
		t.Errorf("WNear = %g, want 1", got)
	}
	if got := f.WFar(); math32.Abs(got-3) > 1e-6 {
		t.Errorf("WFar = %g, want 3", got)
	}
}
