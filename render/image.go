// Package render turns images and text into printable documents. It is
// the lossy half of the pipeline: everything here happens before the
// protocol engine and produces nothing but packed 1-bit pixels.
package render

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/nfnt/resize"

	"github.com/printbridge/peripage-usb-server/printer"
)

// DefaultThreshold is the luminance cut-off between white and black.
const DefaultThreshold = 0x80

// ImageOptions controls image preparation.
type ImageOptions struct {
	// Threshold is the luminance below which a pixel prints black.
	// Zero means DefaultThreshold.
	Threshold uint8

	// Invert flips black and white after thresholding.
	Invert bool

	// Rotate turns the image by 0, 90, 180 or 270 degrees clockwise
	// before resizing.
	Rotate int

	// Dither applies Floyd-Steinberg error diffusion instead of a hard
	// threshold.
	Dither bool
}

// Decode reads an image in any registered format (PNG, JPEG, GIF).
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("cannot decode image: %w", err)
	}
	return img, nil
}

// FromImage prepares an arbitrary image for printing: grayscale, rotate,
// scale to the fixed 384-pixel width, reduce to 1 bit per pixel.
func FromImage(img image.Image, opts ImageOptions) (*printer.Document, error) {
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	gray, err := rotateGray(toGray(img), opts.Rotate)
	if err != nil {
		return nil, err
	}

	if gray.Bounds().Dx() != printer.DocumentWidth {
		scaled := resize.Resize(printer.DocumentWidth, 0, gray, resize.Lanczos3)
		gray = toGray(scaled)
	}

	if opts.Dither {
		ditherFloydSteinberg(gray, threshold)
	}
	return packGray(gray, threshold, opts.Invert)
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return g
}

func rotateGray(g *image.Gray, deg int) (*image.Gray, error) {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	switch deg {
	case 0:
		return g, nil
	case 90:
		out := image.NewGray(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.SetGray(h-1-y, x, g.GrayAt(x, y))
			}
		}
		return out, nil
	case 180:
		out := image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.SetGray(w-1-x, h-1-y, g.GrayAt(x, y))
			}
		}
		return out, nil
	case 270:
		out := image.NewGray(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.SetGray(y, w-1-x, g.GrayAt(x, y))
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("invalid rotation %d, must be 0, 90, 180 or 270", deg)
	}
}

// ditherFloydSteinberg diffuses quantization error over the neighbors,
// quantizing against the given threshold.
func ditherFloydSteinberg(g *image.Gray, threshold uint8) {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()

	px := make([]int32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px[y*w+x] = int32(g.GrayAt(x, y).Y)
		}
	}

	spread := func(x, y int, qe int32, num int32) {
		if x < 0 || x >= w || y >= h {
			return
		}
		px[y*w+x] += qe * num / 16
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			old := px[y*w+x]
			var quantized int32
			if old >= int32(threshold) {
				quantized = 255
			}
			px[y*w+x] = quantized
			qe := old - quantized

			spread(x+1, y, qe, 7)
			spread(x-1, y+1, qe, 3)
			spread(x, y+1, qe, 5)
			spread(x+1, y+1, qe, 1)
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := px[y*w+x]
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			g.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}
}

// packGray converts a 384-wide grayscale image to a packed document,
// MSB leftmost, set bit = black.
func packGray(g *image.Gray, threshold uint8, invert bool) (*printer.Document, error) {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w != printer.DocumentWidth {
		return nil, fmt.Errorf("image is %d pixels wide, expected %d", w, printer.DocumentWidth)
	}

	pixels := make([]byte, printer.BytesPerRow*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			black := g.GrayAt(x, y).Y < threshold
			if invert {
				black = !black
			}
			if black {
				pixels[(y*w+x)/8] |= 1 << (7 - uint(x%8))
			}
		}
	}
	return printer.NewDocument(pixels)
}
