package render

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printbridge/peripage-usb-server/printer"
)

func grayImage(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func TestFromImageBlackAndWhite(t *testing.T) {
	white := grayImage(printer.DocumentWidth, 4, 0xff)
	doc, err := FromImage(white, ImageOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, doc.Height())
	assert.Equal(t, make([]byte, 4*printer.BytesPerRow), doc.Pixels(), "white input prints nothing")

	black := grayImage(printer.DocumentWidth, 4, 0x00)
	doc, err = FromImage(black, ImageOptions{})
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xff}, 4*printer.BytesPerRow), doc.Pixels(), "black input is all ink")
}

func TestFromImageInvert(t *testing.T) {
	white := grayImage(printer.DocumentWidth, 2, 0xff)
	doc, err := FromImage(white, ImageOptions{Invert: true})
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xff}, 2*printer.BytesPerRow), doc.Pixels())
}

func TestFromImageResizesToPaperWidth(t *testing.T) {
	wide := grayImage(768, 100, 0x00)
	doc, err := FromImage(wide, ImageOptions{})
	require.NoError(t, err)
	assert.Equal(t, printer.DocumentWidth, doc.Width())
	assert.Equal(t, 50, doc.Height(), "aspect ratio is preserved")
}

func TestFromImageRotate(t *testing.T) {
	// 100x384 rotated 90 degrees becomes 384 wide, no resize needed.
	tall := grayImage(100, printer.DocumentWidth, 0x00)
	doc, err := FromImage(tall, ImageOptions{Rotate: 90})
	require.NoError(t, err)
	assert.Equal(t, 100, doc.Height())

	_, err = FromImage(tall, ImageOptions{Rotate: 45})
	assert.Error(t, err)
}

func TestFromImageThreshold(t *testing.T) {
	mid := grayImage(printer.DocumentWidth, 1, 0x60)

	doc, err := FromImage(mid, ImageOptions{Threshold: 0x50})
	require.NoError(t, err)
	assert.Equal(t, make([]byte, printer.BytesPerRow), doc.Pixels(), "0x60 is above a 0x50 threshold")

	doc, err = FromImage(mid, ImageOptions{Threshold: 0x70})
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xff}, printer.BytesPerRow), doc.Pixels())
}

func TestFromImageDitherPreservesExtremes(t *testing.T) {
	img := grayImage(printer.DocumentWidth, 8, 0x00)
	doc, err := FromImage(img, ImageOptions{Dither: true})
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xff}, 8*printer.BytesPerRow), doc.Pixels(), "pure black survives dithering")
}

func TestFromImageDitherMidGray(t *testing.T) {
	img := grayImage(printer.DocumentWidth, 16, 0x80)
	doc, err := FromImage(img, ImageOptions{Dither: true})
	require.NoError(t, err)

	ink := 0
	for y := 0; y < doc.Height(); y++ {
		for x := 0; x < doc.Width(); x++ {
			if doc.Pixel(x, y) {
				ink++
			}
		}
	}
	total := doc.Width() * doc.Height()
	assert.Greater(t, ink, total/4, "mid gray dithers to a mix, not solid white")
	assert.Less(t, ink, 3*total/4, "mid gray dithers to a mix, not solid black")
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	src := image.NewGray(image.Rect(0, 0, 10, 10))
	require.NoError(t, png.Encode(&buf, src))

	img, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 10, img.Bounds().Dx())

	_, err = Decode(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}

func TestFromText(t *testing.T) {
	doc, err := FromText("Hello World", TextOptions{})
	require.NoError(t, err)
	assert.Equal(t, printer.DocumentWidth, doc.Width())
	assert.Greater(t, doc.Height(), 0)

	ink := 0
	for y := 0; y < doc.Height(); y++ {
		for x := 0; x < doc.Width(); x++ {
			if doc.Pixel(x, y) {
				ink++
			}
		}
	}
	assert.Greater(t, ink, 0, "rendered text must leave ink on the page")
}

func TestFromTextMultiline(t *testing.T) {
	one, err := FromText("line", TextOptions{})
	require.NoError(t, err)
	three, err := FromText("line\nline\nline", TextOptions{})
	require.NoError(t, err)
	assert.Greater(t, three.Height(), one.Height())
}

func TestFromTextBadFontFile(t *testing.T) {
	_, err := FromText("hi", TextOptions{FontFile: "/does/not/exist.ttf"})
	assert.Error(t, err)
}

func TestWrapLines(t *testing.T) {
	face := basicfont.Face7x13

	lines := wrapLines(face, "short", fixed.I(200))
	assert.Equal(t, []string{"short"}, lines)

	lines = wrapLines(face, "a\n\nb", fixed.I(200))
	assert.Equal(t, []string{"a", "", "b"}, lines, "blank lines survive wrapping")

	long := "word word word word word word word word word word"
	lines = wrapLines(face, long, fixed.I(100))
	assert.Greater(t, len(lines), 1, "long paragraphs wrap")
	for _, line := range lines {
		assert.LessOrEqual(t, font.MeasureString(face, line).Ceil(), 100)
	}
}
