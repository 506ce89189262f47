// Package preview draws curve plots of a clip and encodes them as images.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"ska-importer/internal/clip"
)

// Options controls the output size of a preview.
type Options struct {
	Width       int
	Height      int
	Supersample int
}

var (
	background = color.NRGBA{R: 24, G: 24, B: 28, A: 255}
	gridColor  = color.NRGBA{R: 64, G: 64, B: 72, A: 255}
	labelColor = color.NRGBA{R: 220, G: 220, B: 220, A: 255}

	// w, x, y, z
	rotColors = [4]color.NRGBA{
		{R: 200, G: 200, B: 200, A: 255},
		{R: 230, G: 80, B: 80, A: 255},
		{R: 80, G: 210, B: 90, A: 255},
		{R: 90, G: 130, B: 240, A: 255},
	}
	// x, y, z
	transColors = [3]color.NRGBA{
		{R: 240, G: 150, B: 60, A: 255},
		{R: 200, G: 230, B: 70, A: 255},
		{R: 70, G: 220, B: 220, A: 255},
	}
)

// plot maps frames and values in [-1, 1] to pixels inside a band.
type plot struct {
	x0, x1     int
	top, bot   int
	start, end int
}

func (p *plot) px(frame int) int {
	if p.end <= p.start {
		return (p.x0 + p.x1) / 2
	}
	t := float64(frame-p.start) / float64(p.end-p.start)
	return p.x0 + int(math.Round(t*float64(p.x1-p.x0)))
}

func (p *plot) py(v float64) int {
	v = math.Max(-1, math.Min(1, v))
	mid := float64(p.top+p.bot) / 2
	half := float64(p.bot-p.top) / 2
	return int(math.Round(mid - v*half))
}

// Render plots every bone's rotation components in the upper half and its
// translation components, scaled by the largest absolute translation, in
// the lower half.
func Render(c *clip.Clip, opts Options) *image.NRGBA {
	ss := max(opts.Supersample, 1)
	w, h := opts.Width*ss, opts.Height*ss
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	fill(img, background)

	margin := 4 * ss
	labelBand := 14 * ss
	half := h / 2
	rot := plot{x0: margin, x1: w - margin - 1, top: labelBand, bot: half - margin, start: c.Start, end: c.End}
	tr := plot{x0: margin, x1: w - margin - 1, top: half + labelBand, bot: h - margin - 1, start: c.Start, end: c.End}

	for _, p := range []*plot{&rot, &tr} {
		hline(img, p.x0, p.x1, p.py(0), ss, gridColor)
	}

	scale := 0.0
	for _, b := range c.Bones {
		for _, k := range b.Translations {
			for _, v := range k.Value {
				scale = math.Max(scale, math.Abs(v))
			}
		}
	}

	for _, b := range c.Bones {
		for comp := 0; comp < 4; comp++ {
			px, py := -1, 0
			for _, k := range b.Rotations {
				x, y := rot.px(k.Frame), rot.py(k.Value[comp])
				if px >= 0 {
					line(img, px, py, x, y, ss, rotColors[comp])
				} else {
					dot(img, x, y, ss, rotColors[comp])
				}
				px, py = x, y
			}
		}
		if scale == 0 {
			continue
		}
		for comp := 0; comp < 3; comp++ {
			px, py := -1, 0
			for _, k := range b.Translations {
				x, y := tr.px(k.Frame), tr.py(k.Value[comp]/scale)
				if px >= 0 {
					line(img, px, py, x, y, ss, transColors[comp])
				} else {
					dot(img, x, y, ss, transColors[comp])
				}
				px, py = x, y
			}
		}
	}

	out := img
	if ss > 1 {
		out = downscale(img, opts.Width, opts.Height)
	}

	label(out, 4, 11, fmt.Sprintf("%s  rotation  frames %d-%d", c.Name, c.Start, c.End))
	label(out, 4, opts.Height/2+11, fmt.Sprintf("translation  max |t| %.3g", scale))
	return out
}

func fill(img *image.NRGBA, c color.NRGBA) {
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// downscale resamples the opaque supersampled canvas to w×h.
func downscale(img *image.NRGBA, w, h int) *image.NRGBA {
	if b := img.Bounds(); b.Dx() <= w && b.Dy() <= h {
		return img
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func dot(img *image.NRGBA, x, y, size int, c color.NRGBA) {
	r := size / 2
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if (image.Point{X: x + dx, Y: y + dy}).In(img.Rect) {
				img.SetNRGBA(x+dx, y+dy, c)
			}
		}
	}
}

func hline(img *image.NRGBA, x0, x1, y, size int, c color.NRGBA) {
	for x := x0; x <= x1; x++ {
		dot(img, x, y, size, c)
	}
}

// line draws a Bresenham segment with square pens of the given size.
func line(img *image.NRGBA, x0, y0, x1, y1, size int, c color.NRGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		dot(img, x0, y0, size, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func label(img *image.NRGBA, x, y int, s string) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// Ext returns the file extension for format.
func Ext(format string) string {
	return "." + strings.ToLower(format)
}

// Encode writes img to w as "webp" or "tga".
func Encode(w io.Writer, img image.Image, format string) error {
	switch strings.ToLower(format) {
	case "webp":
		if err := nativewebp.Encode(w, img, nil); err != nil {
			return fmt.Errorf("preview: webp encode: %w", err)
		}
	case "tga":
		if err := tga.Encode(w, img); err != nil {
			return fmt.Errorf("preview: tga encode: %w", err)
		}
	default:
		return fmt.Errorf("preview: unknown format %q", format)
	}
	return nil
}
