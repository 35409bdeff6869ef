package chunk

import (
	"fmt"

	"png.adpollak.net/internal/binread"
	"png.adpollak.net/internal/oops"
)

type ColorType uint8

const (
	Greyscale      ColorType = 0
	TrueColor      ColorType = 2
	IndexedColor   ColorType = 3
	GreyscaleAlpha ColorType = 4
	TrueColorAlpha ColorType = 6
)

func ColorTypeFromRaw(b byte) (ColorType, error) {
	switch ct := ColorType(b); ct {
	case Greyscale, TrueColor, IndexedColor, GreyscaleAlpha, TrueColorAlpha:
		return ct, nil
	}
	return 0, oops.Format(oops.ErrUnknownCode, "color type %d", b)
}

// BytesPerPixel is the number of samples per pixel, which is also the byte
// count per pixel at bit depth 8.
func (c ColorType) BytesPerPixel() int {
	switch c {
	case Greyscale:
		return 1
	case TrueColor:
		return 3
	case IndexedColor:
		return 1
	case GreyscaleAlpha:
		return 2
	case TrueColorAlpha:
		return 4
	}
	return 0
}

// Channels is an alias of BytesPerPixel that reads better where bit depth is
// not 8.
func (c ColorType) Channels() int {
	return c.BytesPerPixel()
}

func (c ColorType) String() string {
	switch c {
	case Greyscale:
		return "Greyscale"
	case TrueColor:
		return "Truecolor"
	case IndexedColor:
		return "Indexed-color"
	case GreyscaleAlpha:
		return "Greyscale with alpha"
	case TrueColorAlpha:
		return "Truecolor with alpha"
	}
	return fmt.Sprintf("ColorType(%d)", uint8(c))
}

// allowedDepths lists the legal bit depths for each color type.
var allowedDepths = map[ColorType][]uint8{
	Greyscale:      {1, 2, 4, 8, 16},
	TrueColor:      {8, 16},
	IndexedColor:   {1, 2, 4, 8},
	GreyscaleAlpha: {8, 16},
	TrueColorAlpha: {8, 16},
}

type InterlaceMethod uint8

const (
	InterlaceNone  InterlaceMethod = 0
	InterlaceAdam7 InterlaceMethod = 1
)

func InterlaceMethodFromRaw(b byte) (InterlaceMethod, error) {
	switch im := InterlaceMethod(b); im {
	case InterlaceNone, InterlaceAdam7:
		return im, nil
	}
	return 0, oops.Format(oops.ErrUnknownCode, "interlace method %d", b)
}

func (i InterlaceMethod) String() string {
	switch i {
	case InterlaceNone:
		return "None"
	case InterlaceAdam7:
		return "Adam7"
	}
	return fmt.Sprintf("InterlaceMethod(%d)", uint8(i))
}

// CompressionMethod is shared by IHDR, zTXt, iTXt and iCCP. Only zlib
// deflate is defined.
type CompressionMethod uint8

const CompressionDeflate CompressionMethod = 0

func CompressionMethodFromRaw(b byte) (CompressionMethod, error) {
	if CompressionMethod(b) != CompressionDeflate {
		return 0, oops.Format(oops.ErrUnknownCode, "compression method %d", b)
	}
	return CompressionDeflate, nil
}

// FilterMethodAdaptive is the only filter method; it selects the five
// per-scanline filter types.
const FilterMethodAdaptive uint8 = 0

// Header holds the IHDR fields.
type Header struct {
	Width             uint32
	Height            uint32
	BitDepth          uint8
	ColorType         ColorType
	CompressionMethod CompressionMethod
	FilterMethod      uint8
	InterlaceMethod   InterlaceMethod
}

const headerLength = 13

// DecodeHeader decodes and validates an IHDR chunk.
func DecodeHeader(c Chunk) (*Header, error) {
	if c.Type != ChunkIHDR {
		return nil, oops.Format(oops.ErrMissingHeader, "got %s", c.Type)
	}
	if len(c.Data) != headerLength {
		return nil, oops.Format(nil, "invalid length for IHDR: %d", len(c.Data))
	}

	cur := binread.NewCursor(c.Data)
	width, _ := cur.Uint32()
	height, _ := cur.Uint32()
	bitDepth, _ := cur.Uint8()
	rawColorType, _ := cur.Uint8()
	rawCompression, _ := cur.Uint8()
	filterMethod, _ := cur.Uint8()
	rawInterlace, _ := cur.Uint8()

	colorType, err := ColorTypeFromRaw(rawColorType)
	if err != nil {
		return nil, err
	}
	compression, err := CompressionMethodFromRaw(rawCompression)
	if err != nil {
		return nil, err
	}
	if filterMethod != FilterMethodAdaptive {
		return nil, oops.Format(oops.ErrUnknownCode, "filter method %d", filterMethod)
	}
	interlace, err := InterlaceMethodFromRaw(rawInterlace)
	if err != nil {
		return nil, err
	}

	h := &Header{
		Width:             width,
		Height:            height,
		BitDepth:          bitDepth,
		ColorType:         colorType,
		CompressionMethod: compression,
		FilterMethod:      filterMethod,
		InterlaceMethod:   interlace,
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// Validate checks dimensions and the bit depth / color type combination.
func (h *Header) Validate() error {
	if h.Width == 0 || h.Height == 0 {
		return oops.Format(nil, "non-positive dimension %dx%d", h.Width, h.Height)
	}
	if h.Width > maxLength || h.Height > maxLength {
		return oops.Format(nil, "dimension %dx%d exceeds 2^31-1", h.Width, h.Height)
	}
	depths, ok := allowedDepths[h.ColorType]
	if !ok {
		return oops.Format(oops.ErrUnknownCode, "color type %d", uint8(h.ColorType))
	}
	for _, d := range depths {
		if d == h.BitDepth {
			return nil
		}
	}
	return oops.Format(nil, "bit depth %d is not allowed for color type %s", h.BitDepth, h.ColorType)
}

// BitsPerPixel is channels times bit depth.
func (h *Header) BitsPerPixel() int {
	return h.ColorType.Channels() * int(h.BitDepth)
}

// FilterStride is the distance in bytes between a byte and its "left"
// neighbour for filtering: one whole pixel, or one byte when pixels are
// smaller than a byte.
func (h *Header) FilterStride() int {
	if s := h.BitsPerPixel() / 8; s > 0 {
		return s
	}
	return 1
}

// RowBytes is the number of pixel bytes in a scanline of the given width,
// excluding the filter byte.
func (h *Header) RowBytes(width int) int {
	return (width*h.BitsPerPixel() + 7) / 8
}

// ScanlineLength is RowBytes(Width) plus the filter-type byte.
func (h *Header) ScanlineLength() int {
	return h.RowBytes(int(h.Width)) + 1
}

// PixelBufferLength is the size of the unfiltered, deinterlaced image.
func (h *Header) PixelBufferLength() (int, error) {
	total := uint64(h.RowBytes(int(h.Width))) * uint64(h.Height)
	if total > uint64(maxInt) {
		return 0, oops.Format(nil, "image %dx%d is too large", h.Width, h.Height)
	}
	return int(total), nil
}

const maxInt = int(^uint(0) >> 1)

func (h *Header) String() string {
	return fmt.Sprintf("%dx%d %d-bit %s, interlace %s", h.Width, h.Height, h.BitDepth, h.ColorType, h.InterlaceMethod)
}
