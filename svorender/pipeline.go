package svorender

import (
	"sort"
	"sync"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"

	"github.com/dairin0d/octreesplat"
)

// MaxThreads is the size of the preallocated rendering job pool.
const MaxThreads = 16

// RenderConfig carries the per-frame tunables of the pipeline.
type RenderConfig struct {
	// ThreadCount in [1,MaxThreads] selects how many worker stripes the
	// frame is split into. One means everything runs on the caller's
	// goroutine, which keeps single-stepping simple.
	ThreadCount int
	// MaxLevel caps octree descent; negative means unbounded.
	MaxLevel int32
	// Splat dilation in pixels: constant and size-proportional parts.
	AbsoluteDilation float32
	RelativeDilation float32
	// MaxDistortion is the affinity residual above which a cage cell is
	// subdivided instead of rendered.
	MaxDistortion float32
	Shape         Shape
	// MapThreshold in pixels stops octree descent inside the splatter.
	MapThreshold int32
	// EffectiveNear in [0,1] is the fraction of the depth range clamping
	// how far in front of the near plane geometry may reach before it
	// counts as too close.
	EffectiveNear float32
	// ShowBounds draws the projected cage wireframe of every visible
	// object over its splats.
	ShowBounds bool
}

// FrameStats aggregates what a frame did across all workers.
type FrameStats struct {
	ModelsProjected int
	ModelsCulled    int
	Render          RenderStats
}

// frameState is the per-frame constant data shared read-only by workers.
type frameState struct {
	rb            *Renderbuffer
	cfg           *RenderConfig
	effectiveNear int32
	zSlope        float32
	zIntercept    float32
	models        []*octreesplat.Object3D
}

// renderJob owns one worker's renderer and subdivider state plus its
// assigned stripe of renderbuffer rows. Stripes partition the data rows so
// jobs never write the same pixel and need no locks.
type renderJob struct {
	renderer   OctreeRenderer
	subdivider CageSubdivider
	y0, y1     int
	primed     bool // previous render in this batch completed contiguously
}

// Pipeline is the per-frame driver: it projects object cages, culls and
// depth-sorts them front-to-back, partitions the renderbuffer into
// horizontal stripes and runs one rendering job per worker.
type Pipeline struct {
	jobs    [MaxThreads]renderJob
	visible []*octreesplat.Object3D
}

// Frame renders the models into the renderbuffer. The caller is expected
// to bracket it with [Renderbuffer.Begin] and [Renderbuffer.End].
func (p *Pipeline) Frame(rb *Renderbuffer, models []*octreesplat.Object3D, frustum *octreesplat.CameraFrustum, view mgl32.Mat4, cfg *RenderConfig) FrameStats {
	var stats FrameStats
	proj := frustum.Matrix()
	wNear, wFar := frustum.WNear(), frustum.WFar()
	zSlope := (wFar - wNear) / float32(DepthSteps)
	zIntercept := wNear

	// Depth at which W reaches zero, clamped to the configured fraction
	// of the depth range. NaN-safe: a degenerate slope falls through to
	// the clamp.
	nearLimit := -float32(DepthSteps) * cfg.EffectiveNear
	effNear := nearLimit
	if w0 := -zIntercept / zSlope; w0 > nearLimit {
		effNear = w0
	}
	if !(effNear < 0) {
		effNear = 0
	}

	jitterX, jitterY := rb.SamplingOffset()
	p.visible = p.visible[:0]
	for _, o := range models {
		stats.ModelsProjected++
		projectObject(o, view, proj, rb, jitterX, jitterY, frustum)
		if cullProjected(o, rb) {
			stats.ModelsCulled++
			continue
		}
		p.visible = append(p.visible, o)
	}
	sort.SliceStable(p.visible, func(i, j int) bool {
		return p.visible[i].ProjectedMin.Z < p.visible[j].ProjectedMin.Z
	})

	workers := cfg.ThreadCount
	if workers < 1 {
		workers = 1
	}
	if workers > MaxThreads {
		workers = MaxThreads
	}
	fs := frameState{
		rb:            rb,
		cfg:           cfg,
		effectiveNear: int32(effNear),
		zSlope:        zSlope,
		zIntercept:    zIntercept,
		models:        p.visible,
	}
	rows := rb.dataH
	for k := 0; k < workers; k++ {
		j := &p.jobs[k]
		j.y0 = k * rows / workers
		j.y1 = (k + 1) * rows / workers
		j.primed = false
		j.renderer.Stats = RenderStats{}
		j.subdivider.ZSlope = zSlope
		j.subdivider.ZIntercept = zIntercept
	}
	if workers == 1 {
		p.jobs[0].run(&fs)
	} else {
		var wg sync.WaitGroup
		wg.Add(workers)
		for k := 0; k < workers; k++ {
			go func(j *renderJob) {
				defer wg.Done()
				j.run(&fs)
			}(&p.jobs[k])
		}
		wg.Wait()
	}
	for k := 0; k < workers; k++ {
		s := &p.jobs[k].renderer.Stats
		stats.Render.NodesVisited += s.NodesVisited
		stats.Render.LeavesSplatted += s.LeavesSplatted
		stats.Render.OcclusionCulls += s.OcclusionCulls
	}
	return stats
}

// projectObject transforms the cage through modelview and projection,
// filling the object's projected cage and bounds. Position keeps the
// pre-divide pixel coordinates (pixel * W) and a depth linear in view
// distance; Projection keeps post-divide pixels.
func projectObject(o *octreesplat.Object3D, view, proj mgl32.Mat4, rb *Renderbuffer, jitterX, jitterY float32, frustum *octreesplat.CameraFrustum) {
	mv := view.Mul4(o.Matrix())
	dataW := float32(rb.dataW)
	dataH := float32(rb.dataH)
	depthScale := float32(DepthSteps) / (frustum.Far - frustum.Near)
	var minV, maxV ms3.Vec
	for i := range o.Cage {
		c := o.Cage[i]
		v := mv.Mul4x1(mgl32.Vec4{c.X, c.Y, c.Z, 1})
		clip := proj.Mul4x1(v)
		w := clip.W()
		depth := (-v.Z() - frustum.Near) * depthScale
		px := (clip.X()/w*0.5+0.5)*dataW + jitterX
		py := (0.5-clip.Y()/w*0.5)*dataH + jitterY
		o.ProjectedCage[i] = octreesplat.ProjectedVertex{
			Position:   ms3.Vec{X: px * w, Y: py * w, Z: depth},
			Projection: ms2.Vec{X: px, Y: py},
		}
		pv := ms3.Vec{X: px, Y: py, Z: depth}
		if i == 0 {
			minV, maxV = pv, pv
			continue
		}
		minV = ms3.Vec{X: math32.Min(minV.X, pv.X), Y: math32.Min(minV.Y, pv.Y), Z: math32.Min(minV.Z, pv.Z)}
		maxV = ms3.Vec{X: math32.Max(maxV.X, pv.X), Y: math32.Max(maxV.Y, pv.Y), Z: math32.Max(maxV.Z, pv.Z)}
	}
	o.ProjectedMin, o.ProjectedMax = minV, maxV
}

// cullProjected rejects objects whose projected bounds miss the viewport
// or the (0, DepthSteps) depth interval. Comparisons are arranged so NaN
// bounds cull.
func cullProjected(o *octreesplat.Object3D, rb *Renderbuffer) bool {
	keep := o.ProjectedMax.X > 0 && o.ProjectedMin.X < float32(rb.dataW) &&
		o.ProjectedMax.Y > 0 && o.ProjectedMin.Y < float32(rb.dataH) &&
		o.ProjectedMax.Z > 0 && o.ProjectedMin.Z < float32(DepthSteps)
	return !keep
}

// run renders every visible model, front to back, into the job's stripe.
func (j *renderJob) run(f *frameState) {
	for _, o := range f.models {
		j.renderModel(f, o)
		if f.cfg.ShowBounds {
			j.drawBounds(f, o)
		}
	}
}

func (j *renderJob) renderModel(f *frameState, o *octreesplat.Object3D) {
	if len(o.Octree) == 0 {
		return
	}
	cage := o.ProjectedCage
	m, distortion := octreesplat.CageToMatrix(&cage)
	sizeX := o.ProjectedMax.X - o.ProjectedMin.X
	sizeY := o.ProjectedMax.Y - o.ProjectedMin.Y
	root := o.Octree[0]
	isCube := f.cfg.Shape == ShapeCube
	isLeaf := root.Mask == 0 || f.cfg.MaxLevel == 0
	isTooClose := !(o.ProjectedMin.Z > float32(f.effectiveNear))
	isTooBig := !(sizeX < MaxSizeInPixels && sizeY < MaxSizeInPixels)
	isDistorted := !(distortion <= f.cfg.MaxDistortion)

	affine := o.IsAffine()
	switch octreesplat.Decide(isCube, isLeaf, isTooClose, isTooBig, isDistorted) {
	case octreesplat.Cull:
		j.primed = false
		return
	case octreesplat.Render:
		res := j.renderer.Render(f.rb, j.renderArgs(f, o, m, 0, 0, affine && j.primed))
		switch res {
		case Rendered:
			j.primed = affine
			return
		case Culled:
			return
		}
		// TooBig or TooClose: fall through to cage subdivision.
	}
	j.subdivide(f, o)
}

// subdivide walks the object's projected cage through the subdivider,
// re-deciding every cell and rendering the ones that pass.
func (j *renderJob) subdivide(f *frameState, o *octreesplat.Object3D) {
	t := o.Octree
	root := t[0]
	mask := root.Mask
	if mask == 0 || f.cfg.MaxLevel == 0 {
		// A lone leaf still subdivides spatially when too big or too
		// close; every spatial octant continues on the same node.
		mask = 0xff
	}
	affine := o.IsAffine()
	j.primed = false
	batchPrimed := false
	cb := func(s *SubdivisionState) uint8 {
		parent := t[s.Parent.Address]
		// A cell whose node is a leaf (or sits at the level cap) splits
		// spatially: every sub-cell keeps rendering the same node.
		parentLeaf := parent.Mask == 0 || (f.cfg.MaxLevel >= 0 && s.Parent.Level >= f.cfg.MaxLevel)
		addr := s.Parent.Address
		if !parentLeaf {
			addr = parent.Address + uint32(s.Octant)
		}
		level := s.Parent.Level + 1
		node := t[addr]
		cage := s.CellCage()
		minV, maxV := cageBounds(&cage)
		inside := maxV.X > 0 && minV.X < float32(f.rb.dataW) &&
			maxV.Y > float32(j.y0) && minV.Y < float32(j.y1) &&
			maxV.Z > 0 && minV.Z < float32(DepthSteps)
		if !inside {
			return 0
		}
		m, distortion := octreesplat.CageToMatrix(&cage)
		isCube := f.cfg.Shape == ShapeCube
		isLeaf := node.Mask == 0 || (f.cfg.MaxLevel >= 0 && level >= f.cfg.MaxLevel)
		isTooClose := !(minV.Z > float32(f.effectiveNear))
		isTooBig := !(maxV.X-minV.X < MaxSizeInPixels && maxV.Y-minV.Y < MaxSizeInPixels)
		isDistorted := !(distortion <= f.cfg.MaxDistortion)
		s.Data = SubdivisionData{Address: addr, Level: level, MinY: j.y0}

		switch octreesplat.Decide(isCube, isLeaf, isTooClose, isTooBig, isDistorted) {
		case octreesplat.Cull:
			return 0
		case octreesplat.Render:
			res := j.renderer.Render(f.rb, j.renderArgs(f, o, m, addr, level, batchPrimed))
			switch res {
			case Rendered:
				batchPrimed = affine
				return 0
			case Culled:
				return 0
			}
			// TooBig or TooClose: keep splitting this cell.
		}
		if isLeaf {
			return 0xff
		}
		return node.Mask
	}
	cage := o.ProjectedCage
	j.subdivider.Subdivide(&cage, SubdivisionData{Address: 0, Level: 0, MinY: j.y0}, mask, cb)
}

func (j *renderJob) renderArgs(f *frameState, o *octreesplat.Object3D, m octreesplat.Mat34, root uint32, level int32, reuse bool) RenderArgs {
	maxLevel := f.cfg.MaxLevel
	if maxLevel >= 0 {
		maxLevel -= level
		if maxLevel < 0 {
			maxLevel = 0
		}
	}
	return RenderArgs{
		Matrix:           m,
		Octree:           o.Octree,
		Root:             root,
		MinX:             0,
		MinY:             j.y0,
		MaxX:             f.rb.dataW,
		MaxY:             j.y1,
		AbsoluteDilation: f.cfg.AbsoluteDilation,
		RelativeDilation: f.cfg.RelativeDilation,
		MaxLevel:         maxLevel,
		Shape:            f.cfg.Shape,
		MapThreshold:     f.cfg.MapThreshold,
		EffectiveNear:    f.effectiveNear,
		ReuseStencil:     reuse,
	}
}

func cageBounds(cage *[8]octreesplat.ProjectedVertex) (minV, maxV ms3.Vec) {
	for i, v := range cage {
		pv := ms3.Vec{X: v.Projection.X, Y: v.Projection.Y, Z: v.Position.Z}
		if i == 0 {
			minV, maxV = pv, pv
			continue
		}
		minV = ms3.Vec{X: math32.Min(minV.X, pv.X), Y: math32.Min(minV.Y, pv.Y), Z: math32.Min(minV.Z, pv.Z)}
		maxV = ms3.Vec{X: math32.Max(maxV.X, pv.X), Y: math32.Max(maxV.Y, pv.Y), Z: math32.Max(maxV.Z, pv.Z)}
	}
	return minV, maxV
}

// cageEdges pairs cage corner indices differing in exactly one octant bit.
var cageEdges = [12][2]uint8{
	{0, 1}, {2, 3}, {4, 5}, {6, 7},
	{0, 2}, {1, 3}, {4, 6}, {5, 7},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// drawBounds draws the projected cage wireframe into the job's stripe with
// depth-tested single-pixel lines.
func (j *renderJob) drawBounds(f *frameState, o *octreesplat.Object3D) {
	rb := f.rb
	c := Color32{R: 255, G: 255, B: 255, A: 255}
	for _, e := range cageEdges {
		a := o.ProjectedCage[e[0]]
		b := o.ProjectedCage[e[1]]
		dx := b.Projection.X - a.Projection.X
		dy := b.Projection.Y - a.Projection.Y
		steps := int(math32.Max(math32.Abs(dx), math32.Abs(dy)))
		if !(steps >= 1) {
			steps = 1
		}
		if steps > 4*maxDimension {
			continue // degenerate or non-finite projection
		}
		for i := 0; i <= steps; i++ {
			t := float32(i) / float32(steps)
			x := int(a.Projection.X + dx*t)
			y := int(a.Projection.Y + dy*t)
			z := a.Position.Z + (b.Position.Z-a.Position.Z)*t
			if x < 0 || x >= rb.dataW || y < j.y0 || y >= j.y1 {
				continue
			}
			if !(z > 0 && z < float32(DepthSteps)) {
				continue
			}
			idx := y<<rb.shiftX + x
			pz := int32(z)
			if pz < rb.depth[idx] {
				rb.depth[idx] = pz
				rb.color[idx] = c
			}
		}
	}
}
