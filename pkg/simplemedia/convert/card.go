package convert

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"unicode/utf8"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	glyphWidth = 7
	lineHeight = 15
	ascent     = 11
)

// card is a fixed-layout summary image used by the informational
// converters.
type card struct {
	width, height int
	background    color.RGBA
	titleColor    color.RGBA
	bodyColor     color.RGBA
	titleAt       image.Point
	bodyAt        image.Point
	decorate      func(img *image.RGBA)
}

func (c card) render(title, body string) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	fillRect(img, img.Bounds(), c.background)
	if c.decorate != nil {
		c.decorate(img)
	}
	margin := c.width - 20
	drawText(img, c.titleColor, c.titleAt, title, margin-c.titleAt.X)
	drawText(img, c.bodyColor, c.bodyAt, body, margin-c.bodyAt.X)
	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// drawText writes text starting with its top-left corner at pt, wrapping
// lines wider than maxWidth pixels and stopping at the bottom edge.
func drawText(img *image.RGBA, col color.RGBA, pt image.Point, text string, maxWidth int) int {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
	}
	y := pt.Y + ascent
	for _, line := range wrapLines(text, maxWidth/glyphWidth) {
		if y > img.Bounds().Dy() {
			break
		}
		d.Dot = fixed.P(pt.X, y)
		d.DrawString(line)
		y += lineHeight
	}
	return y - ascent
}

func wrapLines(text string, cols int) []string {
	if cols < 1 {
		cols = 1
	}
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.ReplaceAll(line, "\t", "    ")
		for utf8.RuneCountInString(line) > cols {
			runes := []rune(line)
			out = append(out, string(runes[:cols]))
			line = string(runes[cols:])
		}
		out = append(out, line)
	}
	return out
}

func fillRect(img *image.RGBA, r image.Rectangle, col color.RGBA) {
	draw.Draw(img, r, image.NewUniform(col), image.Point{}, draw.Src)
}

func strokeRect(img *image.RGBA, r image.Rectangle, col color.RGBA, width int) {
	for i := 0; i < width; i++ {
		fillRect(img, image.Rect(r.Min.X, r.Min.Y+i, r.Max.X, r.Min.Y+i+1), col)
		fillRect(img, image.Rect(r.Min.X, r.Max.Y-i-1, r.Max.X, r.Max.Y-i), col)
		fillRect(img, image.Rect(r.Min.X+i, r.Min.Y, r.Min.X+i+1, r.Max.Y), col)
		fillRect(img, image.Rect(r.Max.X-i-1, r.Min.Y, r.Max.X-i, r.Max.Y), col)
	}
}

// drawLine draws a one pixel line with Bresenham's algorithm.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		img.SetRGBA(x0, y0, col)
		if x0 == x1 && y0 == y1 {
			return
		}
		if e2 := 2 * e; e2 >= dy {
			e += dy
			x0 += sx
		} else {
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

var (
	officeCard = card{
		width: 800, height: 600,
		background: color.RGBA{240, 240, 240, 255},
		titleColor: color.RGBA{255, 255, 255, 255},
		bodyColor:  color.RGBA{50, 50, 50, 255},
		titleAt:    image.Pt(20, 22),
		bodyAt:     image.Pt(20, 80),
		decorate: func(img *image.RGBA) {
			fillRect(img, image.Rect(0, 0, 800, 60), color.RGBA{43, 108, 176, 255})
		},
	}

	archiveCard = card{
		width: 800, height: 600,
		background: color.RGBA{255, 250, 230, 255},
		titleColor: color.RGBA{100, 80, 20, 255},
		bodyColor:  color.RGBA{60, 50, 30, 255},
		titleAt:    image.Pt(40, 60),
		bodyAt:     image.Pt(40, 110),
		decorate: func(img *image.RGBA) {
			fillRect(img, image.Rect(20, 10, 200, 40), color.RGBA{210, 180, 100, 255})
			strokeRect(img, image.Rect(20, 40, 780, 580), color.RGBA{180, 150, 80, 255}, 3)
		},
	}

	blueprintCard = card{
		width: 800, height: 600,
		background: color.RGBA{10, 50, 100, 255},
		titleColor: color.RGBA{255, 255, 255, 255},
		bodyColor:  color.RGBA{200, 230, 255, 255},
		titleAt:    image.Pt(20, 20),
		bodyAt:     image.Pt(20, 80),
		decorate: func(img *image.RGBA) {
			grid := color.RGBA{30, 80, 150, 255}
			for x := 0; x < 800; x += 50 {
				drawLine(img, x, 0, x, 599, grid)
			}
			for y := 0; y < 600; y += 50 {
				drawLine(img, 0, y, 799, y, grid)
			}
			white := color.RGBA{255, 255, 255, 255}
			strokeRect(img, image.Rect(500, 300, 750, 550), white, 2)
			drawLine(img, 500, 300, 550, 250, white)
			drawLine(img, 750, 300, 799, 251, white)
			drawLine(img, 550, 250, 799, 250, white)
		},
	}

	bimCard = card{
		width: 800, height: 600,
		background: color.RGBA{30, 30, 35, 255},
		titleColor: color.RGBA{255, 255, 255, 255},
		bodyColor:  color.RGBA{180, 200, 180, 255},
		titleAt:    image.Pt(120, 40),
		bodyAt:     image.Pt(120, 130),
		decorate: func(img *image.RGBA) {
			green := color.RGBA{100, 200, 100, 255}
			fillRect(img, image.Rect(0, 99, 800, 101), green)
			drawLine(img, 100, 0, 100, 599, green)
			icon := color.RGBA{100, 255, 100, 255}
			drawLine(img, 600, 200, 750, 200, icon)
			drawLine(img, 600, 200, 675, 100, icon)
			drawLine(img, 750, 200, 675, 100, icon)
			strokeRect(img, image.Rect(620, 200, 730, 300), icon, 2)
		},
	}

	fontErrorCard = card{
		width: 400, height: 200,
		background: color.RGBA{255, 0, 0, 255},
		titleColor: color.RGBA{255, 255, 255, 255},
		bodyColor:  color.RGBA{255, 255, 255, 255},
		titleAt:    image.Pt(20, 70),
		bodyAt:     image.Pt(20, 95),
	}
)
