package drawing

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/vector"
)

// dotSides is the polygon resolution used for dots and segment joins.
const dotSides = 12

// RasterCanvas paints strokes into an RGBA image with anti-aliasing. It is
// used to export overlay frames.
type RasterCanvas struct {
	img        *image.RGBA
	background color.Color
	z          *vector.Rasterizer
}

// NewRasterCanvas creates a transparent canvas of the given pixel size.
func NewRasterCanvas(width, height int) *RasterCanvas {
	c := &RasterCanvas{
		img:        image.NewRGBA(image.Rect(0, 0, width, height)),
		background: color.Transparent,
		z:          vector.NewRasterizer(width, height),
	}
	return c
}

// SetBackground sets the colour Clear fills with.
func (c *RasterCanvas) SetBackground(bg color.Color) {
	c.background = bg
}

// Image returns the backing image.
func (c *RasterCanvas) Image() *image.RGBA {
	return c.img
}

// Clear fills the canvas with the background colour.
func (c *RasterCanvas) Clear() {
	draw.Draw(c.img, c.img.Bounds(), image.NewUniform(c.background), image.Point{}, draw.Src)
}

// DrawStroke paints a polyline of the given width; one point paints a dot.
func (c *RasterCanvas) DrawStroke(points []Vec, hex string, width float64) {
	if len(points) == 0 {
		return
	}
	src := image.NewUniform(parseColor(hex))
	r := width / 2
	if r < 0.5 {
		r = 0.5
	}

	// Each shape is filled on its own: overlapping paths of opposite winding
	// would cancel out inside a single rasterization.
	for i, p := range points {
		c.fill(src, func() { c.addDisc(p, r) })
		if i > 0 {
			prev := points[i-1]
			c.fill(src, func() { c.addSegment(prev, p, r) })
		}
	}
}

func (c *RasterCanvas) fill(src image.Image, path func()) {
	b := c.img.Bounds()
	c.z.Reset(b.Dx(), b.Dy())
	c.z.DrawOp = draw.Over
	path()
	c.z.Draw(c.img, b, src, image.Point{})
}

func (c *RasterCanvas) addDisc(p Vec, r float64) {
	for i := 0; i < dotSides; i++ {
		a := 2 * math.Pi * float64(i) / dotSides
		x := float32(p.X + r*math.Cos(a))
		y := float32(p.Y + r*math.Sin(a))
		if i == 0 {
			c.z.MoveTo(x, y)
		} else {
			c.z.LineTo(x, y)
		}
	}
	c.z.ClosePath()
}

func (c *RasterCanvas) addSegment(a, b Vec, r float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return
	}
	nx, ny := -dy/l*r, dx/l*r
	c.z.MoveTo(float32(a.X+nx), float32(a.Y+ny))
	c.z.LineTo(float32(b.X+nx), float32(b.Y+ny))
	c.z.LineTo(float32(b.X-nx), float32(b.Y-ny))
	c.z.LineTo(float32(a.X-nx), float32(a.Y-ny))
	c.z.ClosePath()
}

// EncodePNG writes the canvas as a PNG image.
func (c *RasterCanvas) EncodePNG(w io.Writer) error {
	if err := png.Encode(w, c.img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func parseColor(hex string) color.Color {
	col, err := colorful.Hex(hex)
	if err != nil {
		col, _ = colorful.Hex(DefaultColor)
	}
	return col
}
