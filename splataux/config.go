package splataux

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/dairin0d/octreesplat/svorender"
)

// ViewerConfig is the TOML-loadable configuration of the viewer hosts.
type ViewerConfig struct {
	Width            int     `toml:"width"`
	Height           int     `toml:"height"`
	ThreadCount      int     `toml:"thread_count"`
	MaxLevel         int32   `toml:"max_level"`
	Shape            string  `toml:"shape"`
	AbsoluteDilation float32 `toml:"absolute_dilation"`
	RelativeDilation float32 `toml:"relative_dilation"`
	MaxDistortion    float32 `toml:"max_distortion"`
	UseUpscaling     bool    `toml:"use_upscaling"`
	UseMapAt3        bool    `toml:"use_map_at_3"`
	ShowBounds       bool    `toml:"show_bounds"`
	EffectiveNear    float32 `toml:"effective_near"`
	SphereLevels     int     `toml:"sphere_levels"`
}

// DefaultViewerConfig returns the settings the viewers start with when no
// configuration file is given.
func DefaultViewerConfig() ViewerConfig {
	return ViewerConfig{
		Width:         960,
		Height:        640,
		ThreadCount:   4,
		MaxLevel:      -1,
		Shape:         "rectangle",
		MaxDistortion: 1,
		EffectiveNear: 0.01,
		SphereLevels:  7,
	}
}

// LoadViewerConfig reads a TOML file over the defaults.
func LoadViewerConfig(path string) (ViewerConfig, error) {
	cfg := DefaultViewerConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func (cfg *ViewerConfig) validate() error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("viewer resolution %dx%d invalid", cfg.Width, cfg.Height)
	}
	if cfg.ThreadCount < 1 || cfg.ThreadCount > svorender.MaxThreads {
		return fmt.Errorf("thread_count %d outside [1,%d]", cfg.ThreadCount, svorender.MaxThreads)
	}
	if _, err := cfg.ParseShape(); err != nil {
		return err
	}
	if cfg.SphereLevels < 1 || cfg.SphereLevels > 8 {
		return fmt.Errorf("sphere_levels %d outside [1,8]", cfg.SphereLevels)
	}
	return nil
}

// ParseShape maps the config's shape name onto the renderer enum.
func (cfg *ViewerConfig) ParseShape() (svorender.Shape, error) {
	switch cfg.Shape {
	case "", "rectangle":
		return svorender.ShapeRectangle, nil
	case "point":
		return svorender.ShapePoint, nil
	case "square":
		return svorender.ShapeSquare, nil
	case "circle":
		return svorender.ShapeCircle, nil
	case "cube":
		return svorender.ShapeCube, nil
	}
	return svorender.ShapeRectangle, fmt.Errorf("unknown shape %q", cfg.Shape)
}

// Apply copies the configuration onto a demo.
func (cfg *ViewerConfig) Apply(d *svorender.Demo) error {
	shape, err := cfg.ParseShape()
	if err != nil {
		return err
	}
	d.ThreadCount = cfg.ThreadCount
	d.MaxLevel = cfg.MaxLevel
	d.AbsoluteDilation = cfg.AbsoluteDilation
	d.RelativeDilation = cfg.RelativeDilation
	d.MaxDistortion = cfg.MaxDistortion
	d.UseUpscaling = cfg.UseUpscaling
	d.UseMapAt3 = cfg.UseMapAt3
	d.ShowBounds = cfg.ShowBounds
	d.EffectiveNear = cfg.EffectiveNear
	d.Shape = shape
	return nil
}
