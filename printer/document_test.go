package printer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocument(t *testing.T) {
	for _, rows := range []int{0, 1, 24, 100, 255, 1000} {
		doc, err := NewDocument(make([]byte, rows*BytesPerRow))
		require.NoError(t, err, "%d rows", rows)
		assert.Equal(t, rows, doc.Height())
		assert.Equal(t, DocumentWidth, doc.Width())
	}
}

func TestNewDocumentRejectsRaggedBuffers(t *testing.T) {
	for _, n := range []int{1, 47, 49, 95, 48*10 + 1, 48*10 - 1} {
		_, err := NewDocument(make([]byte, n))
		assert.ErrorIs(t, err, ErrInvalidArgument, "%d bytes", n)
	}
}

func TestDocumentPixel(t *testing.T) {
	pixels := make([]byte, 2*BytesPerRow)
	pixels[0] = 0x80               // (0, 0)
	pixels[0] |= 0x01              // (7, 0)
	pixels[5] = 0x10               // (43, 0): bit 3 of byte 5
	pixels[BytesPerRow] = 1        // (7, 1)
	pixels[2*BytesPerRow-1] = 0x01 // (383, 1)

	doc, err := NewDocument(pixels)
	require.NoError(t, err)

	assert.True(t, doc.Pixel(0, 0))
	assert.True(t, doc.Pixel(7, 0))
	assert.True(t, doc.Pixel(43, 0))
	assert.True(t, doc.Pixel(7, 1))
	assert.True(t, doc.Pixel(383, 1))

	assert.False(t, doc.Pixel(1, 0))
	assert.False(t, doc.Pixel(6, 0))
	assert.False(t, doc.Pixel(0, 1))
	assert.False(t, doc.Pixel(383, 0))
}

func TestDocumentPixelOutOfRange(t *testing.T) {
	doc, err := NewDocument(make([]byte, 2*BytesPerRow))
	require.NoError(t, err)

	for _, coord := range [][2]int{{-1, 0}, {0, -1}, {384, 0}, {0, 2}, {1 << 20, 1 << 20}} {
		assert.False(t, doc.Pixel(coord[0], coord[1]), "coordinate %v", coord)
	}
}

func TestDocumentPixelMatchesPackedBits(t *testing.T) {
	// A recognizable pattern: byte value equals its row-local index.
	pixels := make([]byte, 4*BytesPerRow)
	for i := range pixels {
		pixels[i] = byte(i % BytesPerRow)
	}
	doc, err := NewDocument(pixels)
	require.NoError(t, err)

	for y := 0; y < doc.Height(); y++ {
		for x := 0; x < DocumentWidth; x++ {
			want := pixels[(y*DocumentWidth+x)/8]&(1<<(7-uint(x%8))) != 0
			assert.Equal(t, want, doc.Pixel(x, y), "pixel (%d, %d)", x, y)
		}
	}
}
