package splataux

import (
	"image"
	"image/color"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// HUD rasterizes overlay text lines into a frame image, for hosts that
// want frame statistics on screen without bringing their own text stack.
type HUD struct {
	font *truetype.Font
	ctx  *freetype.Context
	size float64
}

// NewHUD parses the embedded Go Regular face.
func NewHUD() (*HUD, error) {
	f, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, err
	}
	h := &HUD{font: f, ctx: freetype.NewContext(), size: 13}
	h.ctx.SetDPI(72)
	h.ctx.SetFont(f)
	h.ctx.SetFontSize(h.size)
	h.ctx.SetHinting(font.HintingNone)
	return h, nil
}

// Draw writes the lines into the top-left corner of dst, one below the
// other, with a one-pixel shadow so text stays readable over any scene.
func (h *HUD) Draw(dst *image.RGBA, lines []string) error {
	h.ctx.SetClip(dst.Bounds())
	h.ctx.SetDst(dst)
	lineHeight := int(h.size * 1.3)
	for pass := 0; pass < 2; pass++ {
		off := 1 - pass
		if pass == 0 {
			h.ctx.SetSrc(image.NewUniform(color.RGBA{A: 255}))
		} else {
			h.ctx.SetSrc(image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 255}))
		}
		y := lineHeight
		for _, line := range lines {
			if _, err := h.ctx.DrawString(line, freetype.Pt(6+off, y+off)); err != nil {
				return err
			}
			y += lineHeight
		}
	}
	return nil
}
