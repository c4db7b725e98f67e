package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"strings"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"

	"github.com/printbridge/peripage-usb-server/printer"
)

// TextOptions controls text rasterization.
type TextOptions struct {
	// Size is the font size in points. Zero means 18; below 12 gets
	// hard to read on thermal paper.
	Size float64

	// LineSpacing multiplies the font's line height. Zero means 1.0.
	LineSpacing float64

	// FontFile is a path to a TTF file. Empty means the embedded Go
	// Regular face.
	FontFile string

	// Threshold is the luminance cut-off when packing; antialiased
	// edges darker than this print black. Zero means DefaultThreshold.
	Threshold uint8
}

// textMargin keeps glyphs off the unprintable paper edge.
const textMargin = 8

// FromText rasterizes UTF-8 text into a printable document, wrapping
// lines at the paper width.
func FromText(text string, opts TextOptions) (*printer.Document, error) {
	if opts.Size == 0 {
		opts.Size = 18
	}
	if opts.LineSpacing == 0 {
		opts.LineSpacing = 1.0
	}
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	f, err := loadFont(opts.FontFile)
	if err != nil {
		return nil, err
	}
	face := truetype.NewFace(f, &truetype.Options{Size: opts.Size, DPI: 72})
	defer face.Close()

	maxWidth := fixed.I(printer.DocumentWidth - 2*textMargin)
	lines := wrapLines(face, text, maxWidth)

	metrics := face.Metrics()
	lineHeight := int(float64(metrics.Height.Ceil()) * opts.LineSpacing)
	if lineHeight < 1 {
		lineHeight = 1
	}
	height := len(lines)*lineHeight + 2*textMargin

	canvas := image.NewGray(image.Rect(0, 0, printer.DocumentWidth, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Gray{Y: 0xff}), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.Black,
		Face: face,
	}
	y := textMargin + metrics.Ascent.Ceil()
	for _, line := range lines {
		d.Dot = fixed.P(textMargin, y)
		d.DrawString(line)
		y += lineHeight
	}

	return packGray(canvas, threshold, false)
}

func loadFont(path string) (*truetype.Font, error) {
	data := goregular.TTF
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read font file: %w", err)
		}
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("cannot parse font: %w", err)
	}
	return f, nil
}

// wrapLines splits text on newlines and greedily wraps each paragraph
// to the given advance width. Words wider than a whole line stay on
// their own line and overflow to the right.
func wrapLines(face font.Face, text string, maxWidth fixed.Int26_6) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		line := words[0]
		for _, word := range words[1:] {
			candidate := line + " " + word
			if font.MeasureString(face, candidate) > maxWidth {
				lines = append(lines, line)
				line = word
				continue
			}
			line = candidate
		}
		lines = append(lines, line)
	}
	return lines
}
