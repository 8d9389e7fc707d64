package hills

import (
	"image"
	"sync"

	"golang.org/x/image/draw"
)

// Border names one edge of a shade bitmap.
type Border int

const (
	BorderWest Border = iota
	BorderEast
	BorderNorth
	BorderSouth
)

// ShadeBitmap is a square greyscale shade raster, padding included. The
// mutex guards pixel mutations while a neighbor border is merged into the
// padding stripes; only one merge runs per sink at a time.
type ShadeBitmap struct {
	gray    *image.Gray
	padding int
	mu      sync.Mutex
}

func (b *ShadeBitmap) Width() int {
	return b.gray.Rect.Dx()
}

func (b *ShadeBitmap) Height() int {
	return b.gray.Rect.Dy()
}

func (b *ShadeBitmap) Padding() int {
	return b.padding
}

// Bytes exposes the backing pixel storage, row-major.
func (b *ShadeBitmap) Bytes() []byte {
	return b.gray.Pix
}

// SizeBytes is the in-memory footprint of the pixel data.
func (b *ShadeBitmap) SizeBytes() int64 {
	return int64(len(b.gray.Pix))
}

// Image exposes the bitmap as a standard image for encoding.
func (b *ShadeBitmap) Image() *image.Gray {
	return b.gray
}

// GraphicsFactory materialises raw shade bytes into bitmaps. The engine
// only depends on this interface; callers may substitute a platform
// implementation.
type GraphicsFactory interface {
	CreateMonoBitmap(width, height int, bytes []byte, padding int) *ShadeBitmap
}

// MonoGraphicsFactory is the default in-process factory, backing bitmaps
// with image.Gray.
type MonoGraphicsFactory struct{}

func (MonoGraphicsFactory) CreateMonoBitmap(width, height int, bytes []byte, padding int) *ShadeBitmap {
	if len(bytes) != width*height {
		return nil
	}

	return &ShadeBitmap{
		gray: &image.Gray{
			Pix:    bytes,
			Stride: width,
			Rect:   image.Rect(0, 0, width, height),
		},
		padding: padding,
	}
}

// MergeSameSized copies one edge stripe of a same-sized neighbor bitmap
// into the padding of center, to hide interpolation seams at tile borders.
func MergeSameSized(center, neighbor *ShadeBitmap, border Border, padding int) {
	sink, source := center, neighbor

	w := sink.Width()
	h := sink.Height()

	var clip image.Rectangle
	var offX, offY int

	switch border {
	case BorderWest:
		clip = image.Rect(0, padding, padding, padding+(h-2*padding))
		offX, offY = -w+2*padding, 0
	case BorderEast:
		clip = image.Rect(w-padding, padding, w, padding+(h-2*padding))
		offX, offY = w-2*padding, 0
	case BorderNorth:
		clip = image.Rect(padding, 0, padding+(w-2*padding), padding)
		offX, offY = 0, -h+2*padding
	case BorderSouth:
		clip = image.Rect(padding, h-padding, padding+(w-2*padding), h)
		offX, offY = 0, h-2*padding
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()

	sp := image.Pt(clip.Min.X-offX, clip.Min.Y-offY)
	draw.Draw(sink.gray, clip, source.gray, sp, draw.Src)
}
