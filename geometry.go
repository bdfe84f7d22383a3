package octreesplat

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

// ProjectedVertex is a cage corner after view and projection transforms.
// Position holds screen-space X,Y before the perspective divide (pixel
// coordinates multiplied by W) and view-space depth in renderbuffer Z
// units. Projection holds the post-divide pixel X,Y. Both representations
// are required: Position for depth and for perspective-correct trilinear
// blending, Projection for pixel bounds and affine matrix extraction.
type ProjectedVertex struct {
	Position   ms3.Vec
	Projection ms2.Vec
}

// pixel returns the vertex as (pixelX, pixelY, depth).
func (v ProjectedVertex) pixel() ms3.Vec {
	return ms3.Vec{X: v.Projection.X, Y: v.Projection.Y, Z: v.Position.Z}
}

// Mat34 is an affine 3x4 matrix mapping the unit cube [-1,+1]^3 to screen
// pixels with depth in renderbuffer Z units. X, Y, Z are the column vectors
// of the linear part and T is the translation (the image of the origin).
type Mat34 struct {
	X, Y, Z ms3.Vec
	T       ms3.Vec
}

// MulPoint applies the affine map to a point of the unit cube.
func (m Mat34) MulPoint(p ms3.Vec) ms3.Vec {
	v := ms3.Add(m.T, ms3.Scale(p.X, m.X))
	v = ms3.Add(v, ms3.Scale(p.Y, m.Y))
	return ms3.Add(v, ms3.Scale(p.Z, m.Z))
}

// CageToMatrix extracts the affine matrix mapping [-1,+1]^3 to the argument
// projected hexahedron under the assumption that the cell is affine, along
// with a distortion metric quantifying how far the cell is from actually
// being affine. Corners follow canonical octant order (bit0=X, bit1=Y,
// bit2=Z). Each axis column is recovered from the pair of cage edges that
// leave the two extreme corners along that axis:
//
//	X: C0->C1 and C7->C6,  Y: C0->C2 and C7->C5,  Z: C0->C4 and C7->C3.
//
// For a perfectly affine cell the two edges of a pair are negatives of each
// other; the distortion is the largest absolute component (screen X and Y)
// of their sums. Zero distortion means perfect affinity.
func CageToMatrix(cage *[8]ProjectedVertex) (m Mat34, distortion float32) {
	tmin := cage[0].pixel()
	tmax := cage[7].pixel()

	xmin := ms3.Sub(cage[1].pixel(), tmin)
	xmax := ms3.Sub(cage[6].pixel(), tmax)
	ymin := ms3.Sub(cage[2].pixel(), tmin)
	ymax := ms3.Sub(cage[5].pixel(), tmax)
	zmin := ms3.Sub(cage[4].pixel(), tmin)
	zmax := ms3.Sub(cage[3].pixel(), tmax)

	m.X = ms3.Scale(0.25, ms3.Sub(xmin, xmax))
	m.Y = ms3.Scale(0.25, ms3.Sub(ymin, ymax))
	m.Z = ms3.Scale(0.25, ms3.Sub(zmin, zmax))
	m.T = ms3.Scale(0.5, ms3.Add(tmin, tmax))

	rx := ms3.Add(xmin, xmax)
	ry := ms3.Add(ymin, ymax)
	rz := ms3.Add(zmin, zmax)
	distortion = math32.Abs(rx.X)
	distortion = math32.Max(distortion, math32.Abs(rx.Y))
	distortion = math32.Max(distortion, math32.Abs(ry.X))
	distortion = math32.Max(distortion, math32.Abs(ry.Y))
	distortion = math32.Max(distortion, math32.Abs(rz.X))
	distortion = math32.Max(distortion, math32.Abs(rz.Y))
	return m, distortion
}

// UnitCageCorner returns corner i of the canonical unit cube cage
// (-1,-1,-1)..(+1,+1,+1) in octant order.
func UnitCageCorner(i int) ms3.Vec {
	v := ms3.Vec{X: -1, Y: -1, Z: -1}
	if i&1 != 0 {
		v.X = 1
	}
	if i&2 != 0 {
		v.Y = 1
	}
	if i&4 != 0 {
		v.Z = 1
	}
	return v
}
