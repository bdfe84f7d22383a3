package octreesplat

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/geometry/ms3"
)

// affinityTolerance bounds how far a cage corner may stray from the unit
// cube before the object stops counting as affine.
const affinityTolerance = 1e-8

// Object3D is a renderable octree instance: a translate-rotate-scale
// transform, a deformable 8-corner bounding cage and the per-frame
// projection results the pipeline fills in. The model matrix and its
// inverse are recomputed lazily after any transform change.
type Object3D struct {
	Octree Octree
	// Cage is the object's bounding hexahedron in model space, canonical
	// octant corner order. Defaults to the unit cube; corners may be moved
	// to produce trilinear free-form deformation.
	Cage [8]ms3.Vec

	// Projection results, written by the pipeline each frame.
	ProjectedCage          [8]ProjectedVertex
	ProjectedMin, ProjectedMax ms3.Vec

	position ms3.Vec
	rotation mgl32.Quat
	scale    ms3.Vec
	matrix   mgl32.Mat4
	inverse  mgl32.Mat4
	dirty    bool
}

// NewObject3D returns an object with identity transform and the unit cube
// cage around the argument octree.
func NewObject3D(octree Octree) *Object3D {
	o := &Object3D{
		Octree:   octree,
		rotation: mgl32.QuatIdent(),
		scale:    ms3.Vec{X: 1, Y: 1, Z: 1},
		matrix:   mgl32.Ident4(),
		inverse:  mgl32.Ident4(),
	}
	o.ResetCage()
	return o
}

// ResetCage restores the canonical unit cube cage.
func (o *Object3D) ResetCage() {
	for i := range o.Cage {
		o.Cage[i] = UnitCageCorner(i)
	}
}

func (o *Object3D) Position() ms3.Vec { return o.position }

func (o *Object3D) SetPosition(p ms3.Vec) {
	o.position = p
	o.dirty = true
}

func (o *Object3D) Rotation() mgl32.Quat { return o.rotation }

func (o *Object3D) SetRotation(q mgl32.Quat) {
	o.rotation = q
	o.dirty = true
}

func (o *Object3D) Scale() ms3.Vec { return o.scale }

func (o *Object3D) SetScale(s ms3.Vec) {
	o.scale = s
	o.dirty = true
}

// Matrix returns translate(position)*rotate(rotation)*scale.
func (o *Object3D) Matrix() mgl32.Mat4 {
	if o.dirty {
		o.update()
	}
	return o.matrix
}

// Inverse returns the inverse of [Object3D.Matrix].
func (o *Object3D) Inverse() mgl32.Mat4 {
	if o.dirty {
		o.update()
	}
	return o.inverse
}

func (o *Object3D) update() {
	t := mgl32.Translate3D(o.position.X, o.position.Y, o.position.Z)
	s := mgl32.Scale3D(o.scale.X, o.scale.Y, o.scale.Z)
	o.matrix = t.Mul4(o.rotation.Mat4()).Mul4(s)
	o.inverse = o.matrix.Inv()
	o.dirty = false
}

// IsAffine reports whether the cage still is the canonical unit cube within
// tolerance, meaning the full model transform is affine and the splatter
// may reuse occlusion stencils between sibling renders. Comparisons are
// written so NaN corners report non-affine.
func (o *Object3D) IsAffine() bool {
	for i, c := range o.Cage {
		d := ms3.AbsElem(ms3.Sub(c, UnitCageCorner(i)))
		m := math32.Max(d.X, math32.Max(d.Y, d.Z))
		if !(m <= affinityTolerance) {
			return false
		}
	}
	return true
}
