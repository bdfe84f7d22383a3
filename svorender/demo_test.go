package svorender

import (
	"testing"

	"github.com/soypat/geometry/ms3"

	"github.com/dairin0d/octreesplat"
)

func demoScene(t *testing.T) *Demo {
	t.Helper()
	tree, err := octreesplat.BuildSphere(4)
	if err != nil {
		t.Fatal(err)
	}
	player, err := octreesplat.BuildSolid(0, 255, 220, 40)
	if err != nil {
		t.Fatal(err)
	}
	d, err := NewDemo(tree, player)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestNewDemoValidates(t *testing.T) {
	if _, err := NewDemo(octreesplat.Octree{}, nil); err == nil {
		t.Error("empty octree must be rejected")
	}
	bad := octreesplat.Octree{{Mask: 0xff, Address: 100}}
	if _, err := NewDemo(octreesplat.Octree{{}}, bad); err == nil {
		t.Error("corrupt player octree must be rejected")
	}
}

func TestDemoRenderFrame(t *testing.T) {
	d := demoScene(t)
	if err := d.RenderFrame(); err == nil {
		t.Fatal("rendering before resize must fail")
	}
	if err := d.Resize(64, 48); err != nil {
		t.Fatal(err)
	}
	if err := d.RenderFrame(); err != nil {
		t.Fatal(err)
	}
	w, h, pix := d.ImageData()
	if w != 64 || h != 48 || len(pix) != 64*48 {
		t.Fatalf("image %dx%d len %d", w, h, len(pix))
	}
	var lit int
	for _, c := range pix {
		if c.R|c.G|c.B != 0 {
			lit++
		}
	}
	if lit == 0 {
		t.Fatal("sphere scene rendered no pixels")
	}
	if d.Stats.Render.LeavesSplatted == 0 {
		t.Error("frame stats empty")
	}
}

func TestDemoPresets(t *testing.T) {
	d := demoScene(t)
	d.SwitchToOrthographic()
	if d.CameraPerspective() != 0 {
		t.Error("orthographic preset must zero the blend")
	}
	d.SwitchToPerspective()
	if p := d.CameraPerspective(); p != 0.98 {
		t.Errorf("perspective preset blend = %g, want 0.98", p)
	}
	d.SetCameraPerspective(2)
	if d.CameraPerspective() != 1 {
		t.Error("perspective blend must clamp to [0,1]")
	}
	d.SetCameraPitch(99)
	if !(d.CameraPitch() < 1.6) {
		t.Error("pitch must clamp below vertical")
	}
}

func TestDemoUpscalingToggle(t *testing.T) {
	d := demoScene(t)
	if err := d.Resize(32, 32); err != nil {
		t.Fatal(err)
	}
	if err := d.RenderFrame(); err != nil {
		t.Fatal(err)
	}
	d.UseUpscaling = true
	if err := d.RenderFrame(); err != nil {
		t.Fatal(err)
	}
	w, h, pix := d.ImageData()
	if w != 32 || h != 32 || len(pix) != 32*32 {
		t.Fatal("upscaled output must stay at final resolution")
	}
	if d.mapThreshold() != 2 {
		t.Errorf("upscaling selects map threshold 2, got %d", d.mapThreshold())
	}
	d.UseMapAt3 = true
	if d.mapThreshold() != 3 {
		t.Errorf("UseMapAt3 selects map threshold 3, got %d", d.mapThreshold())
	}
	d.UseMapAt3 = false
	d.UseUpscaling = false
	if d.mapThreshold() != 1 {
		t.Errorf("native threshold is 1, got %d", d.mapThreshold())
	}
}

func TestDemoMoveCamera(t *testing.T) {
	d := demoScene(t)
	player := d.Objects()[1]
	before := player.Position()
	d.MoveCamera(0, 0, -1)
	after := player.Position()
	if after == before {
		t.Fatal("player must follow camera movement")
	}
	// Yaw of a quarter turn redirects the local -Z step to world -X.
	d.SetCameraYaw(1.5707964)
	d.MoveCamera(0, 0, -1)
	moved := ms3.Sub(d.Objects()[1].Position(), after)
	if !(moved.X < -0.9) {
		t.Errorf("yawed move went %+v, want toward -X", moved)
	}
}

func TestDemoThreadedFrameMatchesSerial(t *testing.T) {
	render := func(threads int) []Color32 {
		d := demoScene(t)
		d.ThreadCount = threads
		if err := d.Resize(48, 48); err != nil {
			t.Fatal(err)
		}
		d.SetCameraYaw(0.6)
		d.SetCameraPitch(-0.3)
		if err := d.RenderFrame(); err != nil {
			t.Fatal(err)
		}
		_, _, pix := d.ImageData()
		return append([]Color32(nil), pix...)
	}
	one := render(1)
	eight := render(8)
	for i := range one {
		if one[i] != eight[i] {
			t.Fatalf("pixel %d differs across thread counts", i)
		}
	}
}
