package svorender

import (
	"github.com/chewxy/math32"

	"github.com/dairin0d/octreesplat"
)

// Result reports how a call to [OctreeRenderer.Render] ended. TooBig and
// TooClose are capacity signals, not errors: they tell the pipeline to
// subdivide the cage and retry with smaller cells.
type Result uint8

const (
	// Rendered means the subtree was fully written.
	Rendered Result = iota
	// TooBig means the projected root reaches [MaxSizeInPixels] and the
	// caller should subdivide in cage space.
	TooBig
	// TooClose means the projected root crosses the effective near plane.
	TooClose
	// Culled means the subtree was entirely outside the viewport or fully
	// occluded; a successful no-op.
	Culled
)

func (r Result) String() string {
	switch r {
	case Rendered:
		return "Rendered"
	case TooBig:
		return "TooBig"
	case TooClose:
		return "TooClose"
	case Culled:
		return "Culled"
	}
	return "Result(invalid)"
}

// Shape selects the pixel footprint written for each leaf splat.
type Shape uint8

const (
	ShapePoint Shape = iota
	ShapeRectangle
	ShapeSquare
	ShapeCircle
	// ShapeCube draws the three viewer-facing quads of each leaf cube;
	// useful for debugging orientation.
	ShapeCube
)

// MaxSizeInPixels is the projected size at or above which the splatter refuses a
// root and asks the caller to subdivide. Keeping the traversal below this
// size bounds fixed-point coordinates and keeps the stencil tile small.
const MaxSizeInPixels = 128

// Fixed-point format of the traversal: pixel coordinates carry
// subpixelShift fractional bits. With 16 fractional bits an int32 holds
// coordinates up to +-32768 pixels, far beyond MaxSizeInPixels plus the
// largest renderbuffer dimension; depth values are plain renderbuffer Z
// units (DepthSteps span) and never mix with the subpixel format.
const (
	subpixelShift = 16
	subpixelSize  = 1 << subpixelShift
	subpixelHalf  = subpixelSize >> 1
)

// maxStackLevel caps traversal depth below the fixed-point shift range.
const maxStackLevel = 30

// RenderArgs are the per-call inputs of the splatter.
type RenderArgs struct {
	// Matrix maps the unit cube [-1,+1]^3 to data pixels (X,Y) with depth
	// (Z) in renderbuffer units.
	Matrix octreesplat.Mat34
	Octree octreesplat.Octree
	// Root is the index of the subtree root to rasterize.
	Root uint32
	// Viewport rectangle in data pixels, [MinX,MaxX) x [MinY,MaxY). The
	// pipeline passes each worker's stripe rows here.
	MinX, MinY, MaxX, MaxY int
	// AbsoluteDilation expands every splat by a constant amount of pixels;
	// RelativeDilation by a fraction of the splat's own extent.
	AbsoluteDilation float32
	RelativeDilation float32
	// MaxLevel caps traversal depth; negative means unbounded.
	MaxLevel int32
	Shape    Shape
	// MapThreshold stops subdivision once a node's projected size is at
	// most this many pixels in both axes (inclusive comparison).
	MapThreshold int32
	// EffectiveNear is the depth at or below which a node counts as
	// crossing the near plane.
	EffectiveNear int32
	// ReuseStencil keeps the occlusion summaries of the previous call when
	// it covered the same tile; valid only between affine, contiguous
	// sibling renders. Ignoring it is always correct, merely slower.
	ReuseStencil bool
}

// RenderStats counts traversal work for diagnostics.
type RenderStats struct {
	NodesVisited   uint64
	LeavesSplatted uint64
	OcclusionCulls uint64
}

type stackEntry struct {
	address    uint32
	level      int32
	px, py     int32 // fixed-point data pixel center
	pz         int32 // depth center
	ex, ey     int32 // fixed-point half extents
	ez         int32 // depth half extent
}

// OctreeRenderer rasterizes one octree subtree per call through an internal
// explicit stack in strict front-to-back octant order. It owns its stack
// and stencil storage so one renderer per worker runs without allocation or
// synchronization; the octree itself is never mutated.
type OctreeRenderer struct {
	Stats RenderStats

	stack  []stackEntry
	occ    occlusionMap
	order  [8]uint8
	dx, dy [8]int32
	dz     [8]int32

	// per-call state
	rb             *Renderbuffer
	tx0, ty0       int
	tx1, ty1       int
	shape          Shape
	absDilation    int32
	relDilation    float32
	mapThreshold   int32
}

// Render rasterizes the subtree at args.Root into the renderbuffer tile.
// See [Result] for the four outcomes.
func (r *OctreeRenderer) Render(rb *Renderbuffer, args RenderArgs) Result {
	m := args.Matrix
	// Extents from absolute column sums; comparisons are arranged so NaN in
	// the pixel columns or center falls into the cull branch and NaN depth
	// into TooClose, neither writing pixels.
	sizeX := 2 * (math32.Abs(m.X.X) + math32.Abs(m.Y.X) + math32.Abs(m.Z.X))
	sizeY := 2 * (math32.Abs(m.X.Y) + math32.Abs(m.Y.Y) + math32.Abs(m.Z.Y))
	if !(sizeX >= 0 && sizeY >= 0 && m.T.X-m.T.X == 0 && m.T.Y-m.T.Y == 0) {
		return Culled
	}
	if !(sizeX < MaxSizeInPixels && sizeY < MaxSizeInPixels) {
		return TooBig
	}
	extZ := math32.Abs(m.X.Z) + math32.Abs(m.Y.Z) + math32.Abs(m.Z.Z)
	if !(m.T.Z-extZ > float32(args.EffectiveNear)) {
		return TooClose
	}

	tx0, ty0, tx1, ty1 := args.MinX, args.MinY, args.MaxX, args.MaxY
	if tx0 < 0 {
		tx0 = 0
	}
	if ty0 < 0 {
		ty0 = 0
	}
	if tx1 > rb.dataW {
		tx1 = rb.dataW
	}
	if ty1 > rb.dataH {
		ty1 = rb.dataH
	}
	if tx0 >= tx1 || ty0 >= ty1 {
		return Culled
	}
	r.rb = rb
	r.tx0, r.ty0, r.tx1, r.ty1 = tx0, ty0, tx1, ty1
	r.shape = args.Shape
	r.absDilation = int32(math32.Round(args.AbsoluteDilation * subpixelSize))
	r.relDilation = args.RelativeDilation
	r.mapThreshold = args.MapThreshold << subpixelShift

	// Fixed-point matrix: pixel components gain subpixel fractional bits,
	// depth components stay in renderbuffer units.
	xx := fixed(m.X.X)
	xy := fixed(m.X.Y)
	xz := int32(math32.Round(m.X.Z))
	yx := fixed(m.Y.X)
	yy := fixed(m.Y.Y)
	yz := int32(math32.Round(m.Y.Z))
	zx := fixed(m.Z.X)
	zy := fixed(m.Z.Y)
	zz := int32(math32.Round(m.Z.Z))

	root := stackEntry{
		address: args.Root,
		px:      fixed(m.T.X),
		py:      fixed(m.T.Y),
		pz:      int32(math32.Round(m.T.Z)),
		ex:      abs32(xx) + abs32(yx) + abs32(zx),
		ey:      abs32(xy) + abs32(yy) + abs32(zy),
		ez:      abs32(xz) + abs32(yz) + abs32(zz),
	}

	// Child center offsets per octant and the near-to-far visit order,
	// determined once from the signs of the depth column sums.
	for o := 0; o < 8; o++ {
		sx, sy, sz := octantSigns(o)
		r.dx[o] = (sx*xx + sy*yx + sz*zx) / 2
		r.dy[o] = (sx*xy + sy*yy + sz*zy) / 2
		r.dz[o] = (sx*xz + sy*yz + sz*zz) / 2
	}
	for i := range r.order {
		r.order[i] = uint8(i)
	}
	// Insertion sort ascending by depth offset; stable so equal-depth
	// octants keep index order and traversal stays deterministic.
	for i := 1; i < 8; i++ {
		o := r.order[i]
		j := i
		for j > 0 && r.dz[r.order[j-1]] > r.dz[o] {
			r.order[j] = r.order[j-1]
			j--
		}
		r.order[j] = o
	}

	if !(args.ReuseStencil && r.occ.matches(tx0, ty0, tx1, ty1)) {
		r.occ.reset(tx0, ty0, tx1, ty1)
	}

	x0, y0, x1, y1 := r.nodeRect(&root)
	if x0 >= x1 || y0 >= y1 {
		return Culled
	}
	if occluded, _ := r.occ.isOccluded(rb, x0, y0, x1, y1, root.pz-root.ez); occluded {
		r.Stats.OcclusionCulls++
		return Culled
	}

	maxLevel := args.MaxLevel
	if maxLevel < 0 || maxLevel > maxStackLevel {
		maxLevel = maxStackLevel
	}

	r.stack = append(r.stack[:0], root)
	for len(r.stack) > 0 {
		e := r.stack[len(r.stack)-1]
		r.stack = r.stack[:len(r.stack)-1]
		r.Stats.NodesVisited++

		x0, y0, x1, y1 := r.nodeRect(&e)
		if x0 >= x1 || y0 >= y1 {
			continue
		}
		occluded, _ := r.occ.isOccluded(rb, x0, y0, x1, y1, e.pz-e.ez)
		if occluded {
			r.Stats.OcclusionCulls++
			continue
		}
		node := args.Octree[e.address]
		if node.Mask == 0 || e.level >= maxLevel ||
			(2*e.ex <= r.mapThreshold && 2*e.ey <= r.mapThreshold) {
			r.splat(&e, node)
			continue
		}
		// Push far-to-near so the nearest child pops first.
		for i := 7; i >= 0; i-- {
			o := r.order[i]
			if node.Mask&(1<<o) == 0 {
				continue
			}
			r.stack = append(r.stack, stackEntry{
				address: node.Address + uint32(o),
				level:   e.level + 1,
				px:      e.px + (r.dx[o] >> e.level),
				py:      e.py + (r.dy[o] >> e.level),
				pz:      e.pz + (r.dz[o] >> e.level),
				ex:      e.ex >> 1,
				ey:      e.ey >> 1,
				ez:      e.ez >> 1,
			})
		}
	}
	return Rendered
}

// nodeRect is the conservative pixel bounding rectangle of a node, clipped
// to the tile.
func (r *OctreeRenderer) nodeRect(e *stackEntry) (x0, y0, x1, y1 int) {
	x0 = int((e.px - e.ex) >> subpixelShift)
	x1 = int((e.px+e.ex)>>subpixelShift) + 1
	y0 = int((e.py - e.ey) >> subpixelShift)
	y1 = int((e.py+e.ey)>>subpixelShift) + 1
	if x0 < r.tx0 {
		x0 = r.tx0
	}
	if y0 < r.ty0 {
		y0 = r.ty0
	}
	if x1 > r.tx1 {
		x1 = r.tx1
	}
	if y1 > r.ty1 {
		y1 = r.ty1
	}
	return x0, y0, x1, y1
}

func (r *OctreeRenderer) splat(e *stackEntry, node octreesplat.OctreeNode) {
	r.Stats.LeavesSplatted++
	c := Color32{R: node.R, G: node.G, B: node.B, A: 255}
	maxExtent := e.ex
	if e.ey > maxExtent {
		maxExtent = e.ey
	}
	dil := r.absDilation + int32(r.relDilation*float32(maxExtent))
	switch r.shape {
	case ShapePoint:
		x := int(e.px >> subpixelShift)
		y := int(e.py >> subpixelShift)
		if x >= r.tx0 && x < r.tx1 && y >= r.ty0 && y < r.ty1 {
			r.writePixel(x, y, e.pz, c)
		}
	case ShapeRectangle:
		r.fillRect(e.px, e.py, e.ex+dil, e.ey+dil, e.pz, c)
	case ShapeSquare:
		r.fillRect(e.px, e.py, maxExtent+dil, maxExtent+dil, e.pz, c)
	case ShapeCircle:
		r.fillEllipse(e.px, e.py, e.ex+dil, e.ey+dil, e.pz, c)
	case ShapeCube:
		r.fillCube(e, dil)
	}
}

// fillRect writes the axis-aligned rectangle of pixels whose centers fall
// within +-(ex,ey) of the fixed-point center. Center sampling makes
// adjacent cells tile the plane without double writes or holes.
func (r *OctreeRenderer) fillRect(px, py, ex, ey, pz int32, c Color32) {
	x0 := int((px - ex + subpixelHalf) >> subpixelShift)
	x1 := int((px + ex - subpixelHalf) >> subpixelShift)
	y0 := int((py - ey + subpixelHalf) >> subpixelShift)
	y1 := int((py + ey - subpixelHalf) >> subpixelShift)
	if x0 < r.tx0 {
		x0 = r.tx0
	}
	if y0 < r.ty0 {
		y0 = r.ty0
	}
	if x1 >= r.tx1 {
		x1 = r.tx1 - 1
	}
	if y1 >= r.ty1 {
		y1 = r.ty1 - 1
	}
	rb := r.rb
	for y := y0; y <= y1; y++ {
		row := y << rb.shiftX
		for x := x0; x <= x1; x++ {
			i := row + x
			if pz < rb.depth[i] {
				rb.depth[i] = pz
				rb.color[i] = c
			}
		}
	}
}

func (r *OctreeRenderer) fillEllipse(px, py, ex, ey, pz int32, c Color32) {
	if ex <= 0 || ey <= 0 {
		return
	}
	x0 := int((px - ex + subpixelHalf) >> subpixelShift)
	x1 := int((px + ex - subpixelHalf) >> subpixelShift)
	y0 := int((py - ey + subpixelHalf) >> subpixelShift)
	y1 := int((py + ey - subpixelHalf) >> subpixelShift)
	if x0 < r.tx0 {
		x0 = r.tx0
	}
	if y0 < r.ty0 {
		y0 = r.ty0
	}
	if x1 >= r.tx1 {
		x1 = r.tx1 - 1
	}
	if y1 >= r.ty1 {
		y1 = r.ty1 - 1
	}
	rb := r.rb
	invEx := 1 / float32(ex)
	invEy := 1 / float32(ey)
	for y := y0; y <= y1; y++ {
		dy := float32(int32(y)<<subpixelShift+subpixelHalf-py) * invEy
		row := y << rb.shiftX
		for x := x0; x <= x1; x++ {
			dx := float32(int32(x)<<subpixelShift+subpixelHalf-px) * invEx
			if dx*dx+dy*dy > 1 {
				continue
			}
			i := row + x
			if pz < rb.depth[i] {
				rb.depth[i] = pz
				rb.color[i] = c
			}
		}
	}
}

// fillCube draws the three viewer-facing face quads of the leaf cube using
// the per-column extents, each at its face center depth.
func (r *OctreeRenderer) fillCube(e *stackEntry, dil int32) {
	node := e
	cols := [3][3]int32{
		{r.dx[1] - r.dx[0], r.dy[1] - r.dy[0], r.dz[1] - r.dz[0]},
		{r.dx[2] - r.dx[0], r.dy[2] - r.dy[0], r.dz[2] - r.dz[0]},
		{r.dx[4] - r.dx[0], r.dy[4] - r.dy[0], r.dz[4] - r.dz[0]},
	}
	// Columns above are full axis steps of the root cube; scale them down
	// to this node's level. The face center sits one full scaled column
	// from the node center, the face quad is spanned by the other two.
	shift := node.level
	for axis := 0; axis < 3; axis++ {
		ax := cols[axis][0] >> shift
		ay := cols[axis][1] >> shift
		az := cols[axis][2] >> shift
		sign := int32(1)
		if az > 0 {
			sign = -1
		}
		b1 := cols[(axis+1)%3]
		b2 := cols[(axis+2)%3]
		ex := abs32(b1[0]>>shift) + abs32(b2[0]>>shift)
		ey := abs32(b1[1]>>shift) + abs32(b2[1]>>shift)
		fc := Color32{R: faceShade(axis, 0), G: faceShade(axis, 1), B: faceShade(axis, 2), A: 255}
		r.fillRect(node.px+sign*ax, node.py+sign*ay, ex+dil, ey+dil, node.pz+sign*az, fc)
	}
}

func faceShade(axis, channel int) uint8 {
	if axis == channel {
		return 230
	}
	return 60
}

func (r *OctreeRenderer) writePixel(x, y int, pz int32, c Color32) {
	i := y<<r.rb.shiftX + x
	if pz < r.rb.depth[i] {
		r.rb.depth[i] = pz
		r.rb.color[i] = c
	}
}

func fixed(v float32) int32 {
	return int32(math32.Round(v * subpixelSize))
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func octantSigns(o int) (sx, sy, sz int32) {
	sx, sy, sz = -1, -1, -1
	if o&1 != 0 {
		sx = 1
	}
	if o&2 != 0 {
		sy = 1
	}
	if o&4 != 0 {
		sz = 1
	}
	return sx, sy, sz
}
