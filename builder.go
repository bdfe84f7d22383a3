package octreesplat

import (
	"errors"

	"github.com/soypat/geometry/ms1"
	"github.com/soypat/geometry/ms3"
)

const maxBuildLevels = 8

// BuildSolid creates a fully populated octree of the argument depth where
// every leaf carries the same color. levels==0 yields a single leaf node.
func BuildSolid(levels int, r, g, b uint8) (Octree, error) {
	if levels < 0 || levels > maxBuildLevels {
		return nil, errors.New("solid octree levels out of range")
	}
	t := Octree{{R: r, G: g, B: b}}
	// Breadth first: level l spans [ (8^l-1)/7, (8^(l+1)-1)/7 ).
	start := 0
	count := 1
	for lvl := 0; lvl < levels; lvl++ {
		childStart := len(t)
		for i := 0; i < count; i++ {
			t[start+i].Mask = 0xff
			t[start+i].Address = uint32(childStart + i*8)
		}
		for i := 0; i < count*8; i++ {
			t = append(t, OctreeNode{R: r, G: g, B: b})
		}
		start = childStart
		count *= 8
	}
	return t, nil
}

// BuildSphere voxelizes the surface of a sphere of radius 0.9 inside the
// unit cube, colored by surface normal. Intended as procedural demo and
// test content in place of binary octree assets.
func BuildSphere(levels int) (Octree, error) {
	if levels < 1 || levels > maxBuildLevels {
		return nil, errors.New("sphere octree levels out of range")
	}
	const radius = 0.9
	t := Octree{{}}
	var build func(idx int, center ms3.Vec, extent float32, lvl int)
	build = func(idx int, center ms3.Vec, extent float32, lvl int) {
		var mask uint8
		var childCenters [8]ms3.Vec
		half := extent * 0.5
		for o := 0; o < 8; o++ {
			c := ms3.Add(center, octantOffset(o, half))
			if sphereShellOverlap(c, half, radius) {
				mask |= 1 << o
			}
			childCenters[o] = c
		}
		addr := len(t)
		t[idx].Mask = mask
		t[idx].Address = uint32(addr)
		for o := 0; o < 8; o++ {
			var n OctreeNode
			if mask&(1<<o) != 0 {
				n.R, n.G, n.B = normalColor(childCenters[o])
			}
			t = append(t, n)
		}
		if lvl+1 >= levels {
			return
		}
		for o := 0; o < 8; o++ {
			if mask&(1<<o) != 0 {
				build(addr+o, childCenters[o], half, lvl+1)
			}
		}
	}
	build(0, ms3.Vec{}, 1, 0)
	t[0].R, t[0].G, t[0].B = 200, 200, 200
	return t, nil
}

// octantOffset returns the center offset of a child octant for the argument
// half extent, following the bit0=+X, bit1=+Y, bit2=+Z numbering.
func octantOffset(octant int, half float32) ms3.Vec {
	v := ms3.Vec{X: -half, Y: -half, Z: -half}
	if octant&1 != 0 {
		v.X = half
	}
	if octant&2 != 0 {
		v.Y = half
	}
	if octant&4 != 0 {
		v.Z = half
	}
	return v
}

// sphereShellOverlap reports whether a cube of the argument half extent at
// center may contain part of the sphere surface of the argument radius.
func sphereShellOverlap(center ms3.Vec, half, radius float32) bool {
	dist := ms3.Norm(center)
	halfDiag := half * sqrt3
	return dist-halfDiag <= radius && dist+halfDiag >= radius
}

func normalColor(p ms3.Vec) (r, g, b uint8) {
	n := ms3.Norm(p)
	if !(n > 0) {
		return 128, 128, 128
	}
	inv := 1 / n
	r = uint8(ms1.Clamp(p.X*inv*0.5+0.5, 0, 1) * 255)
	g = uint8(ms1.Clamp(p.Y*inv*0.5+0.5, 0, 1) * 255)
	b = uint8(ms1.Clamp(p.Z*inv*0.5+0.5, 0, 1) * 255)
	return r, g, b
}

const sqrt3 = 1.7320508075688772935274463415058723669428052538103806280558069794
