package pal

import "image"

// Frame is one decoded 720×576 grayscale picture.
type Frame struct {
	Width  int
	Height int
	// Pix holds one luminance byte per pixel, row-major.
	Pix []byte
	// Index counts frames emitted by the decoder, starting at 0.
	Index uint64
}

// At returns the luminance of pixel (x, y).
func (f *Frame) At(x, y int) byte {
	return f.Pix[y*f.Width+x]
}

// RGBA expands the frame to 4 bytes per pixel with full opacity.
func (f *Frame) RGBA() []byte {
	out := make([]byte, len(f.Pix)*4)
	for i, g := range f.Pix {
		out[4*i] = g
		out[4*i+1] = g
		out[4*i+2] = g
		out[4*i+3] = 255
	}
	return out
}

// Image wraps the frame as an image.Gray without copying.
func (f *Frame) Image() *image.Gray {
	return &image.Gray{
		Pix:    f.Pix,
		Stride: f.Width,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}
