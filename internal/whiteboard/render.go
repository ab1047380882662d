package whiteboard

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/syncroom/collab-platform/internal/event"
)

// Render replays the board onto a blank raster: strokes in stored order,
// then texts. The output depends only on the stored sequences, which is the
// round-trip guarantee the tests lean on.
func (b *Board) Render(w, h int) *image.RGBA {
	return Render(b.Strokes(), b.Texts(), w, h)
}

// ExportPNG encodes the rendered canvas as PNG. Leaf operation, no state
// impact.
func (b *Board) ExportPNG(out io.Writer, w, h int) error {
	return png.Encode(out, b.Render(w, h))
}

// Render replays stroke and text sequences against a blank canvas.
func Render(strokes []Stroke, texts []TextItem, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill(img, background)

	for _, s := range strokes {
		renderStroke(img, s)
	}
	for _, t := range texts {
		renderText(img, t)
	}
	return img
}

var background = color.RGBA{R: 255, G: 255, B: 255, A: 255}

func renderStroke(img *image.RGBA, s Stroke) {
	if len(s.Points) == 0 {
		return
	}

	col := parseHexColor(s.Color)
	size := int(math.Max(1, s.Size))

	switch s.Tool {
	case ToolEraser:
		drawPolyline(img, s.Points, size, background)
	case ToolSquare:
		first, last := s.Points[0], s.Points[len(s.Points)-1]
		drawRect(img, int(first.X), int(first.Y), int(last.X), int(last.Y), size, col)
	case ToolCircle:
		first, last := s.Points[0], s.Points[len(s.Points)-1]
		drawEllipse(img, int(first.X), int(first.Y), int(last.X), int(last.Y), size, col)
	default: // pencil and anything unrecognized degrade to line segments
		drawPolyline(img, s.Points, size, col)
	}
}

// renderText stamps a deterministic block per rune. This is a placeholder
// glyph rendering: the round-trip invariant needs determinism, not
// typography.
func renderText(img *image.RGBA, t TextItem) {
	col := parseHexColor(t.Color)
	size := int(math.Max(4, t.Size*4))
	x := int(t.X)
	y := int(t.Y)
	for range t.Text {
		fillRect(img, x, y-size, x+size*3/5, y, col)
		x += size*3/5 + 2
	}
}

func drawPolyline(img *image.RGBA, pts []event.Point, size int, col color.RGBA) {
	if len(pts) == 1 {
		stampDisc(img, int(pts[0].X), int(pts[0].Y), size, col)
		return
	}
	for i := 1; i < len(pts); i++ {
		drawLine(img, int(pts[i-1].X), int(pts[i-1].Y), int(pts[i].X), int(pts[i].Y), size, col)
	}
}

// drawLine is Bresenham with a disc stamped at each step for thickness.
func drawLine(img *image.RGBA, x0, y0, x1, y1, size int, col color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		stampDisc(img, x0, y0, size, col)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func drawRect(img *image.RGBA, x0, y0, x1, y1, size int, col color.RGBA) {
	drawLine(img, x0, y0, x1, y0, size, col)
	drawLine(img, x1, y0, x1, y1, size, col)
	drawLine(img, x1, y1, x0, y1, size, col)
	drawLine(img, x0, y1, x0, y0, size, col)
}

// drawEllipse traces the midpoint ellipse inscribed in the bounding box
// defined by the two corners.
func drawEllipse(img *image.RGBA, x0, y0, x1, y1, size int, col color.RGBA) {
	cx := (x0 + x1) / 2
	cy := (y0 + y1) / 2
	a := abs(x1-x0) / 2
	b := abs(y1-y0) / 2
	if a == 0 || b == 0 {
		drawLine(img, x0, y0, x1, y1, size, col)
		return
	}

	a2 := float64(a * a)
	b2 := float64(b * b)

	// Region 1
	x, y := 0, b
	d1 := b2 - a2*float64(b) + 0.25*a2
	dx := 2 * b2 * float64(x)
	dy := 2 * a2 * float64(y)
	for dx < dy {
		stampQuad(img, cx, cy, x, y, size, col)
		if d1 < 0 {
			x++
			dx += 2 * b2
			d1 += dx + b2
		} else {
			x++
			y--
			dx += 2 * b2
			dy -= 2 * a2
			d1 += dx - dy + b2
		}
	}

	// Region 2
	d2 := b2*(float64(x)+0.5)*(float64(x)+0.5) + a2*(float64(y)-1)*(float64(y)-1) - a2*b2
	for y >= 0 {
		stampQuad(img, cx, cy, x, y, size, col)
		if d2 > 0 {
			y--
			dy -= 2 * a2
			d2 += a2 - dy
		} else {
			y--
			x++
			dx += 2 * b2
			dy -= 2 * a2
			d2 += dx - dy + a2
		}
	}
}

func stampQuad(img *image.RGBA, cx, cy, x, y, size int, col color.RGBA) {
	stampDisc(img, cx+x, cy+y, size, col)
	stampDisc(img, cx-x, cy+y, size, col)
	stampDisc(img, cx+x, cy-y, size, col)
	stampDisc(img, cx-x, cy-y, size, col)
}

// stampDisc fills a filled circle of diameter size centered at (cx, cy).
func stampDisc(img *image.RGBA, cx, cy, size int, col color.RGBA) {
	r := size / 2
	if r == 0 {
		setPixel(img, cx, cy, col)
		return
	}
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				setPixel(img, cx+dx, cy+dy, col)
			}
		}
	}
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			setPixel(img, x, y, col)
		}
	}
}

func fill(img *image.RGBA, col color.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}

func setPixel(img *image.RGBA, x, y int, col color.RGBA) {
	if !image.Pt(x, y).In(img.Bounds()) {
		return
	}
	img.SetRGBA(x, y, col)
}

// parseHexColor decodes #RGB and #RRGGBB; anything else is black.
func parseHexColor(s string) color.RGBA {
	c := color.RGBA{A: 255}
	if len(s) == 0 || s[0] != '#' {
		return c
	}
	hex := s[1:]
	switch len(hex) {
	case 3:
		c.R = nibble(hex[0]) * 17
		c.G = nibble(hex[1]) * 17
		c.B = nibble(hex[2]) * 17
	case 6:
		c.R = nibble(hex[0])<<4 | nibble(hex[1])
		c.G = nibble(hex[2])<<4 | nibble(hex[3])
		c.B = nibble(hex[4])<<4 | nibble(hex[5])
	}
	return c
}

func nibble(b byte) uint8 {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
