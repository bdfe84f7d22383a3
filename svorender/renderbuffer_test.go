package svorender

import "testing"

func TestRenderbufferResize(t *testing.T) {
	var rb Renderbuffer
	if err := rb.Resize(0, 10, false); err == nil {
		t.Error("zero width must fail")
	}
	if err := rb.Resize(10, -1, false); err == nil {
		t.Error("negative height must fail")
	}
	if err := rb.Resize(100, 60, false); err != nil {
		t.Fatal(err)
	}
	if rb.DataWidth() != 100 || rb.DataHeight() != 60 {
		t.Errorf("data dims %dx%d", rb.DataWidth(), rb.DataHeight())
	}
	if stride := 1 << rb.ShiftX(); stride < 100 || stride >= 256 {
		t.Errorf("stride %d not the next power of two above 100", stride)
	}
	if err := rb.Resize(100, 60, true); err != nil {
		t.Fatal(err)
	}
	if rb.DataWidth() != 200 || rb.DataHeight() != 120 {
		t.Errorf("upscaled data dims %dx%d, want 200x120", rb.DataWidth(), rb.DataHeight())
	}
}

func TestRenderbufferBeginEnd(t *testing.T) {
	var rb Renderbuffer
	if err := rb.Resize(8, 4, false); err != nil {
		t.Fatal(err)
	}
	bg := Color32{R: 9, G: 8, B: 7, A: 255}
	rb.Begin(bg)
	for i, d := range rb.depth {
		if d != DepthSteps {
			t.Fatalf("depth[%d] = %d after Begin", i, d)
		}
	}
	// Paint one data pixel and resolve.
	rb.color[2<<rb.shiftX+3] = Color32{R: 200, A: 255}
	rb.End()
	w, h, pix := rb.ImageData()
	if w != 8 || h != 4 {
		t.Fatalf("image dims %dx%d", w, h)
	}
	if pix[2*8+3].R != 200 {
		t.Error("1x resolve must copy data pixels through")
	}
	if pix[0] != bg {
		t.Errorf("background pixel %+v", pix[0])
	}
}

func TestSamplingOffsetSchedule(t *testing.T) {
	var rb Renderbuffer
	if err := rb.Resize(4, 4, false); err != nil {
		t.Fatal(err)
	}
	if x, y := rb.SamplingOffset(); x != 0 || y != 0 {
		t.Error("no jitter without upscaling")
	}
	if err := rb.Resize(4, 4, true); err != nil {
		t.Fatal(err)
	}
	want := [4][2]float32{{-0.25, -0.25}, {0.25, -0.25}, {-0.25, 0.25}, {0.25, 0.25}}
	var first [4][2]float32
	for i := 0; i < 4; i++ {
		x, y := rb.SamplingOffset()
		first[i] = [2]float32{x, y}
		if x != want[i][0] || y != want[i][1] {
			t.Errorf("phase %d offset (%g,%g), want (%g,%g)", i, x, y, want[i][0], want[i][1])
		}
		rb.Begin(Color32{})
		rb.End()
	}
	// The schedule repeats identically.
	for i := 0; i < 4; i++ {
		x, y := rb.SamplingOffset()
		if x != first[i][0] || y != first[i][1] {
			t.Fatalf("phase schedule unstable at repeat %d", i)
		}
		rb.Begin(Color32{})
		rb.End()
	}
}

func TestUpscaleDownsample(t *testing.T) {
	var rb Renderbuffer
	if err := rb.Resize(2, 1, true); err != nil {
		t.Fatal(err)
	}
	rb.Begin(Color32{})
	// First output pixel averages its 2x2 data block.
	stride := 1 << rb.shiftX
	rb.color[0] = Color32{R: 100}
	rb.color[1] = Color32{R: 200}
	rb.color[stride] = Color32{R: 100}
	rb.color[stride+1] = Color32{R: 200}
	rb.End()
	_, _, pix := rb.ImageData()
	if pix[0].R != 150 {
		t.Errorf("downsampled pixel %d, want 150", pix[0].R)
	}
}

func TestUpscaleTemporalConvergence(t *testing.T) {
	var rb Renderbuffer
	if err := rb.Resize(4, 4, true); err != nil {
		t.Fatal(err)
	}
	fill := Color32{R: 180, G: 90, B: 45, A: 255}
	render := func() {
		rb.Begin(Color32{})
		for i := range rb.color {
			rb.color[i] = fill
		}
		rb.End()
	}
	var frame4, frame8 []Color32
	for i := 1; i <= 8; i++ {
		render()
		_, _, pix := rb.ImageData()
		if i == 4 {
			frame4 = append([]Color32(nil), pix...)
		}
		if i == 8 {
			frame8 = append([]Color32(nil), pix...)
		}
	}
	for i := range frame4 {
		if d := absDiff(frame4[i].R, frame8[i].R) + absDiff(frame4[i].G, frame8[i].G) + absDiff(frame4[i].B, frame8[i].B); d > 3 {
			t.Fatalf("static scene did not converge: pixel %d moved by %d", i, d)
		}
	}
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func TestOcclusionMap(t *testing.T) {
	var rb Renderbuffer
	if err := rb.Resize(16, 8, false); err != nil {
		t.Fatal(err)
	}
	rb.Begin(Color32{})
	var occ occlusionMap
	occ.reset(0, 0, 16, 8)
	// Fresh buffer: nothing occludes.
	if occluded, _ := occ.isOccluded(&rb, 0, 0, 16, 8, 100); occluded {
		t.Fatal("empty buffer cannot occlude")
	}
	// Cover rows 0..3 at depth 50.
	for y := 0; y < 4; y++ {
		row := rb.depth[y<<rb.shiftX:]
		for x := 0; x < 16; x++ {
			row[x] = 50
		}
	}
	occ.reset(0, 0, 16, 8)
	if occluded, _ := occ.isOccluded(&rb, 0, 0, 16, 4, 60); !occluded {
		t.Error("region at depth 50 must occlude a query at 60")
	}
	if occluded, _ := occ.isOccluded(&rb, 0, 0, 16, 4, 40); occluded {
		t.Error("nearer query must not be occluded")
	}
	// Clamp reports the first non-occluded row.
	occluded, clamp := occ.isOccluded(&rb, 0, 0, 16, 8, 60)
	if occluded {
		t.Fatal("rows 4..7 are background")
	}
	if clamp != 4 {
		t.Errorf("row clamp = %d, want 4", clamp)
	}
	if !occ.matches(0, 0, 16, 8) {
		t.Error("map must report its bound tile")
	}
	if occ.matches(0, 0, 16, 4) {
		t.Error("different tile must not match")
	}
}
