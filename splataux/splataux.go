// Package splataux has auxiliary helpers for hosts of the splatting
// renderer: image export, HUD text rasterization and viewer configuration.
// Ideally hosts grow their own versions of these; the package exists to
// get demos and tools going quickly.
package splataux

import (
	"errors"
	"image"
	"image/png"
	"os"

	"github.com/dairin0d/octreesplat/svorender"
)

// ToRGBA copies a frame into a standard library image.
func ToRGBA(width, height int, pix []svorender.Color32) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, c := range pix[:width*height] {
		img.Pix[i*4+0] = c.R
		img.Pix[i*4+1] = c.G
		img.Pix[i*4+2] = c.B
		img.Pix[i*4+3] = c.A
	}
	return img
}

// WritePNG saves a frame to a PNG file.
func WritePNG(filename string, width, height int, pix []svorender.Color32) error {
	if width <= 0 || height <= 0 || len(pix) < width*height {
		return errors.New("invalid frame dimensions")
	}
	fp, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer fp.Close()
	if err := png.Encode(fp, ToRGBA(width, height, pix)); err != nil {
		return err
	}
	return fp.Sync()
}
