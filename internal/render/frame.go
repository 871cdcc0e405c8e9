// Package render turns a grid into images and text for people to look at.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/brighammerrick/Civilization-Simulation/internal/civ"
	"github.com/brighammerrick/Civilization-Simulation/internal/world"
)

// Border alphas. Water fades at coastlines; land and territory cells are
// drawn half transparent except along their borders.
const (
	waterAlpha       = 1.0
	waterBorderAlpha = 0.3
	landAlpha        = 0.5
	landBorderAlpha  = 1.0
)

// IsBorder reports whether any in-grid neighbor of p holds a different value.
func IsBorder(g *world.Grid, p world.Point) bool {
	v := g.At(p)
	for _, n := range g.Neighbors(p) {
		if g.At(n) != v {
			return true
		}
	}
	return false
}

// Frame renders one pixel per cell.
func Frame(g *world.Grid, reg *civ.Registry) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, g.Size, g.Size))
	for i, v := range g.Cells {
		p := g.PointAt(i)
		c := reg.ColorOf(v)
		border := IsBorder(g, p)

		alpha := landAlpha
		switch {
		case v == world.Water && border:
			alpha = waterBorderAlpha
		case v == world.Water:
			alpha = waterAlpha
		case border:
			alpha = landBorderAlpha
		}
		c.A = uint8(alpha*255 + 0.5)
		img.SetNRGBA(p.X, p.Y, c)
	}
	return img
}

// Scale enlarges img by an integer factor with nearest-neighbor sampling.
func Scale(img *image.NRGBA, factor int) *image.NRGBA {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	for y := 0; y < out.Bounds().Dy(); y++ {
		for x := 0; x < out.Bounds().Dx(); x++ {
			out.SetNRGBA(x, y, img.NRGBAAt(b.Min.X+x/factor, b.Min.Y+y/factor))
		}
	}
	return out
}

// EncodePNG writes the frame for g as PNG.
func EncodePNG(w io.Writer, g *world.Grid, reg *civ.Registry, scale int) error {
	return png.Encode(w, Scale(Frame(g, reg), scale))
}

// WritePNG saves the frame for g to dir/frame_<tick>.png and returns the path.
func WritePNG(dir string, tick uint64, g *world.Grid, reg *civ.Registry, scale int) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("frame_%06d.png", tick))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := EncodePNG(f, g, reg, scale); err != nil {
		f.Close()
		return "", fmt.Errorf("encode %s: %w", path, err)
	}
	return path, f.Close()
}

// opaque drops the alpha channel, for callers drawing on a solid background.
func opaque(c color.NRGBA) color.NRGBA {
	c.A = 255
	return c
}
