package svorender

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/geometry/ms1"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"

	"github.com/dairin0d/octreesplat"
)

// Demo is the host-facing surface of the renderer: an orbiting camera, a
// main octree model, an optional player marker octree, and every rendering
// tunable as a plain field applied on the next frame. Hosts drive it with
// Resize / camera setters / RenderFrame / ImageData and own everything
// else (windowing, input, uploads).
type Demo struct {
	// Tunables, applied each RenderFrame.
	ThreadCount      int
	MaxLevel         int32
	AbsoluteDilation float32
	RelativeDilation float32
	UseUpscaling     bool
	Shape            Shape
	ShowBounds       bool
	MaxDistortion    float32
	// UseMapAt3 raises the splatter's single-pixel threshold to 3 (it is
	// otherwise 1 at native resolution and 2 when upscaling).
	UseMapAt3     bool
	EffectiveNear float32
	Background    Color32

	// Stats of the most recent frame.
	Stats FrameStats

	rb       Renderbuffer
	pipeline Pipeline
	objects  []*octreesplat.Object3D
	player   *octreesplat.Object3D

	width, height int
	pitch, yaw    float32
	target        ms3.Vec
	distanceSteps float32
	zoomSteps     float32
	perspective   float32
	near, far     float32
}

// NewDemo validates the octrees and assembles a demo scene around them.
// playerOctree may be nil to omit the player marker.
func NewDemo(octree, playerOctree octreesplat.Octree) (*Demo, error) {
	if err := octree.Validate(); err != nil {
		return nil, err
	}
	d := &Demo{
		ThreadCount:   1,
		MaxLevel:      -1,
		MaxDistortion: 1,
		EffectiveNear: 0.01,
		Shape:         ShapeRectangle,
		Background:    Color32{A: 255},
	}
	d.objects = append(d.objects, octreesplat.NewObject3D(octree))
	if playerOctree != nil {
		if err := playerOctree.Validate(); err != nil {
			return nil, err
		}
		d.player = octreesplat.NewObject3D(playerOctree)
		d.player.SetScale(ms3.Vec{X: 0.05, Y: 0.05, Z: 0.05})
		d.objects = append(d.objects, d.player)
	}
	d.SwitchToPerspective()
	return d, nil
}

// Objects exposes the scene models, main octree first, so hosts can add or
// deform cages between frames.
func (d *Demo) Objects() []*octreesplat.Object3D { return d.objects }

// Resize sets the output resolution.
func (d *Demo) Resize(width, height int) error {
	if err := d.rb.Resize(width, height, d.UseUpscaling); err != nil {
		return err
	}
	d.width, d.height = width, height
	return nil
}

func (d *Demo) SetCameraPitch(pitch float32) {
	const limit = math32.Pi/2 - 1e-3
	d.pitch = ms1.Clamp(pitch, -limit, limit)
}

func (d *Demo) SetCameraYaw(yaw float32) { d.yaw = yaw }

func (d *Demo) CameraPitch() float32 { return d.pitch }
func (d *Demo) CameraYaw() float32   { return d.yaw }

// SetCameraZoom adjusts the aperture exponentially, an octave per 8 steps.
func (d *Demo) SetCameraZoom(steps float32) { d.zoomSteps = steps }

func (d *Demo) CameraZoom() float32 { return d.zoomSteps }

// SetCameraPerspective blends between orthographic (0) and perspective (1).
func (d *Demo) SetCameraPerspective(p float32) { d.perspective = ms1.Clamp(p, 0, 1) }

func (d *Demo) CameraPerspective() float32 { return d.perspective }

// MoveCamera translates the orbit target (and the player marker) by a
// delta given in the camera-local frame.
func (d *Demo) MoveCamera(dx, dy, dz float32) {
	rot := mgl32.HomogRotate3DY(d.yaw).Mul4(mgl32.HomogRotate3DX(d.pitch))
	delta := rot.Mul4x1(mgl32.Vec4{dx, dy, dz, 0})
	d.target = ms3.Add(d.target, ms3.Vec{X: delta.X(), Y: delta.Y(), Z: delta.Z()})
	if d.player != nil {
		d.player.SetPosition(d.target)
	}
}

// SwitchToPerspective applies the close-in perspective preset.
func (d *Demo) SwitchToPerspective() {
	d.distanceSteps = -8
	d.perspective = 0.98
	d.near, d.far = 0.001, 100
}

// SwitchToOrthographic applies the far flat-view preset.
func (d *Demo) SwitchToOrthographic() {
	d.distanceSteps = 56
	d.perspective = 0
	d.near, d.far = 0.001, 1000
}

// camera distance and aperture both scale an octave per 8 steps.
const (
	baseDistance = 4.0
	baseAperture = 4.0
)

func (d *Demo) distance() float32 {
	return baseDistance * math32.Exp2(d.distanceSteps/8)
}

// RenderFrame renders the scene with the current camera and tunables. The
// output is available from ImageData afterwards.
func (d *Demo) RenderFrame() error {
	if d.width == 0 || d.height == 0 {
		return errors.New("render before resize")
	}
	if d.rb.Upscaling() != d.UseUpscaling {
		if err := d.rb.Resize(d.width, d.height, d.UseUpscaling); err != nil {
			return err
		}
	}
	dist := d.distance()
	aperture := baseAperture * math32.Exp2(-d.zoomSteps/8)
	aspect := float32(d.width) / float32(d.height)
	frustum := octreesplat.CameraFrustum{
		Aperture:    ms2.Vec{X: aperture * aspect, Y: aperture},
		Focus:       ms3.Vec{Z: dist},
		Near:        d.near,
		Far:         d.far,
		Perspective: d.perspective,
	}
	camera := mgl32.Translate3D(d.target.X, d.target.Y, d.target.Z).
		Mul4(mgl32.HomogRotate3DY(d.yaw)).
		Mul4(mgl32.HomogRotate3DX(d.pitch)).
		Mul4(mgl32.Translate3D(0, 0, dist))
	view := camera.Inv()

	cfg := RenderConfig{
		ThreadCount:      d.ThreadCount,
		MaxLevel:         d.MaxLevel,
		AbsoluteDilation: d.AbsoluteDilation,
		RelativeDilation: d.RelativeDilation,
		MaxDistortion:    d.MaxDistortion,
		Shape:            d.Shape,
		MapThreshold:     d.mapThreshold(),
		EffectiveNear:    d.EffectiveNear,
		ShowBounds:       d.ShowBounds,
	}
	d.rb.Begin(d.Background)
	d.Stats = d.pipeline.Frame(&d.rb, d.objects, &frustum, view, &cfg)
	d.rb.End()
	return nil
}

// mapThreshold selects the pixel size at which the splatter collapses a
// node to a single splat: 1 at native resolution, 2 in the oversampled
// buffer, 3 when UseMapAt3 coarsens it further.
func (d *Demo) mapThreshold() int32 {
	switch {
	case d.UseMapAt3:
		return 3
	case d.UseUpscaling:
		return 2
	}
	return 1
}

// ImageData returns the final image. The pixel slice aliases internal
// storage and is valid until the next Resize.
func (d *Demo) ImageData() (width, height int, pix []Color32) {
	return d.rb.ImageData()
}
