package svorender

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"

	"github.com/dairin0d/octreesplat"
)

// SubdivisionData is the per-path state a subdivision callback threads from
// a cell to its children: the octree address the cell maps to, the octree
// level reached, and a row clamp (the pipeline stores its worker stripe's
// top row there).
type SubdivisionData struct {
	Address uint32
	Level   int32
	MinY    int
}

// SubdivisionState is passed to the callback once per child octant of the
// cell being subdivided. Indices select the child's own 8-corner cage out
// of the 27-vertex grid. Parent is the cell's data; the callback fills Data
// with what the child's own subdivision should receive.
type SubdivisionState struct {
	Level   int
	Octant  int
	Grid    *[27]octreesplat.ProjectedVertex
	Indices [8]uint8
	Parent  SubdivisionData
	Data    SubdivisionData
}

// CellCage copies the child's cage corners out of the grid.
func (s *SubdivisionState) CellCage() (cage [8]octreesplat.ProjectedVertex) {
	for i, gi := range s.Indices {
		cage[i] = s.Grid[gi]
	}
	return cage
}

// SubdivisionCallback decides one child cell. The returned mask selects
// which octants of that cell the subdivider recurses into; returning 0
// prunes the cell. Termination is the callback's responsibility, the
// subdivider itself imposes no depth cap.
type SubdivisionCallback func(s *SubdivisionState) uint8

type subdivCell struct {
	corners [8]octreesplat.ProjectedVertex
	data    SubdivisionData
	mask    uint8
	level   int
}

// CageSubdivider splits a projected, possibly non-affine hexahedral cage
// into a 3x3x3 grid of projected vertices by trilinear interpolation and
// walks child cells through a caller-supplied decision callback. Recursion
// is an explicit stack so deformation depth never grows the call chain.
// ZSlope and ZIntercept describe the frame's depth-to-W line and are used
// to keep interior grid projections perspective-correct.
type CageSubdivider struct {
	ZSlope     float32
	ZIntercept float32

	stack []subdivCell
}

// Subdivide seeds the walk with a cage and the octant mask of the cell's
// octree node, then drains the stack. Each popped cell is gridded, the
// callback runs once per masked octant, and children continue with the
// mask the callback returned.
func (cs *CageSubdivider) Subdivide(corners *[8]octreesplat.ProjectedVertex, data SubdivisionData, mask uint8, cb SubdivisionCallback) {
	cs.stack = append(cs.stack[:0], subdivCell{corners: *corners, data: data, mask: mask})
	var grid [27]octreesplat.ProjectedVertex
	var state SubdivisionState
	for len(cs.stack) > 0 {
		cell := cs.stack[len(cs.stack)-1]
		cs.stack = cs.stack[:len(cs.stack)-1]
		cs.buildGrid(&cell.corners, &grid)
		for o := 0; o < 8; o++ {
			if cell.mask&(1<<o) == 0 {
				continue
			}
			state = SubdivisionState{
				Level:   cell.level,
				Octant:  o,
				Grid:    &grid,
				Indices: childIndices(o),
				Parent:  cell.data,
			}
			childMask := cb(&state)
			if childMask == 0 {
				continue
			}
			child := subdivCell{data: state.Data, mask: childMask, level: cell.level + 1}
			for i, gi := range state.Indices {
				child.corners[i] = grid[gi]
			}
			cs.stack = append(cs.stack, child)
		}
	}
}

// buildGrid fills the 3x3x3 grid with the trilinear interpolation of the
// cage corners at parameters (i/2, j/2, k/2), blending every component of
// the projected vertices. Interior projections are then recomputed from
// the blended pre-divide position and the frame's depth-to-W line, which
// is what keeps a locally-affine approximation honest under perspective.
func (cs *CageSubdivider) buildGrid(c *[8]octreesplat.ProjectedVertex, g *[27]octreesplat.ProjectedVertex) {
	var w [3][2]float32
	w[0] = [2]float32{1, 0}
	w[1] = [2]float32{0.5, 0.5}
	w[2] = [2]float32{0, 1}
	for k := 0; k < 3; k++ {
		for j := 0; j < 3; j++ {
			for i := 0; i < 3; i++ {
				var pos ms3.Vec
				var proj ms2.Vec
				for corner := 0; corner < 8; corner++ {
					weight := w[i][corner&1] * w[j][corner>>1&1] * w[k][corner>>2&1]
					if weight == 0 {
						continue
					}
					pos = ms3.Add(pos, ms3.Scale(weight, c[corner].Position))
					proj = ms2.Add(proj, ms2.Scale(weight, c[corner].Projection))
				}
				if i == 1 || j == 1 || k == 1 {
					div := cs.ZIntercept + cs.ZSlope*pos.Z
					if math32.Abs(div) > 1e-8 {
						proj = ms2.Vec{X: pos.X / div, Y: pos.Y / div}
					}
				}
				g[i+3*j+9*k] = octreesplat.ProjectedVertex{Position: pos, Projection: proj}
			}
		}
	}
}

// childIndices maps a child octant to the grid indices of its 8 cage
// corners in canonical corner order.
func childIndices(octant int) (idx [8]uint8) {
	oi := octant & 1
	oj := octant >> 1 & 1
	ok := octant >> 2 & 1
	for c := 0; c < 8; c++ {
		gi := oi + c&1
		gj := oj + c>>1&1
		gk := ok + c>>2&1
		idx[c] = uint8(gi + 3*gj + 9*gk)
	}
	return idx
}
