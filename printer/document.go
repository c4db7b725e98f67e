package printer

import "fmt"

// Paper geometry of the PeriPage A6. The print head is 384 dots wide
// (48 mm), one bit per dot, MSB leftmost.
const (
	DocumentWidth = 384
	BytesPerRow   = DocumentWidth / 8
)

// Document is an immutable monochrome bitmap at the printer's fixed
// width. Height is derived from the buffer length; a bit value of 1 is
// a black dot.
type Document struct {
	pixels []byte
}

// NewDocument wraps a packed 1-bit pixel buffer. The buffer length must
// be an exact multiple of the 48-byte row.
func NewDocument(pixels []byte) (*Document, error) {
	if len(pixels)%BytesPerRow != 0 {
		return nil, fmt.Errorf("%w: pixel buffer of %d bytes is not a multiple of the %d-byte row",
			ErrInvalidArgument, len(pixels), BytesPerRow)
	}
	return &Document{pixels: pixels}, nil
}

// Width returns the fixed document width in pixels.
func (d *Document) Width() int { return DocumentWidth }

// Height returns the document height in pixels.
func (d *Document) Height() int { return len(d.pixels) / BytesPerRow }

// Pixels returns the packed pixel buffer. Callers must not modify it.
func (d *Document) Pixels() []byte { return d.pixels }

// Pixel reports whether the dot at (x, y) is black. Out-of-range
// coordinates are white.
func (d *Document) Pixel(x, y int) bool {
	if x < 0 || y < 0 || x >= DocumentWidth || y >= d.Height() {
		return false
	}
	idx := (y*DocumentWidth + x) / 8
	return d.pixels[idx]&(1<<(7-uint(x%8))) != 0
}
