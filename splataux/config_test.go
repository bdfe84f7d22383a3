package splataux

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dairin0d/octreesplat"
	"github.com/dairin0d/octreesplat/svorender"
)

func TestDefaultViewerConfig(t *testing.T) {
	cfg := DefaultViewerConfig()
	if err := cfg.validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	shape, err := cfg.ParseShape()
	if err != nil || shape != svorender.ShapeRectangle {
		t.Errorf("default shape %v (%v)", shape, err)
	}
}

func TestLoadViewerConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewer.toml")
	body := `
width = 320
height = 200
thread_count = 8
shape = "circle"
use_upscaling = true
max_level = 9
effective_near = 0.05
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadViewerConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 320 || cfg.Height != 200 || cfg.ThreadCount != 8 {
		t.Errorf("loaded %+v", cfg)
	}
	if cfg.MaxLevel != 9 || !cfg.UseUpscaling || cfg.EffectiveNear != 0.05 {
		t.Errorf("loaded %+v", cfg)
	}
	// Unset keys keep their defaults.
	if cfg.MaxDistortion != 1 || cfg.SphereLevels != 7 {
		t.Errorf("defaults lost: %+v", cfg)
	}
	shape, err := cfg.ParseShape()
	if err != nil || shape != svorender.ShapeCircle {
		t.Errorf("shape %v (%v)", shape, err)
	}
}

func TestLoadViewerConfigRejects(t *testing.T) {
	cases := []string{
		"width = -3",
		"thread_count = 99",
		`shape = "blob"`,
		"sphere_levels = 20",
	}
	for _, body := range cases {
		path := filepath.Join(t.TempDir(), "viewer.toml")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadViewerConfig(path); err == nil {
			t.Errorf("config %q must be rejected", body)
		}
	}
}

func TestConfigApply(t *testing.T) {
	d, err := svorender.NewDemo(octreesplat.Octree{{R: 255}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultViewerConfig()
	cfg.ThreadCount = 7
	cfg.Shape = "square"
	cfg.UseMapAt3 = true
	cfg.MaxLevel = 5
	if err := cfg.Apply(d); err != nil {
		t.Fatal(err)
	}
	if d.ThreadCount != 7 || d.Shape != svorender.ShapeSquare || !d.UseMapAt3 || d.MaxLevel != 5 {
		t.Errorf("apply lost settings: %+v", d)
	}
	cfg.Shape = "nope"
	if err := cfg.Apply(d); err == nil {
		t.Error("bad shape must fail to apply")
	}
}
