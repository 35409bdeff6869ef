package chunk

import (
	"bytes"

	"png.adpollak.net/internal/binread"
	"png.adpollak.net/internal/oops"
)

// bKGD, tRNS and sBIT change shape with the image's color type. Each is a
// closed set of variants, chosen from the header at decode time.

type Background interface {
	isBackground()
}

type BackgroundGrey struct {
	Value uint16
}

type BackgroundRGB struct {
	Red, Green, Blue uint16
}

type BackgroundIndex struct {
	Index uint8
}

func (BackgroundGrey) isBackground()  {}
func (BackgroundRGB) isBackground()   {}
func (BackgroundIndex) isBackground() {}

func DecodeBackground(c Chunk, hdr *Header) (Background, error) {
	if hdr == nil {
		return nil, oops.Format(oops.ErrMissingHeader, "bKGD needs the image header")
	}
	switch hdr.ColorType {
	case Greyscale, GreyscaleAlpha:
		v, err := exactUint16s(c, 1)
		if err != nil {
			return nil, err
		}
		return BackgroundGrey{Value: v[0]}, nil
	case TrueColor, TrueColorAlpha:
		v, err := exactUint16s(c, 3)
		if err != nil {
			return nil, err
		}
		return BackgroundRGB{Red: v[0], Green: v[1], Blue: v[2]}, nil
	case IndexedColor:
		if len(c.Data) != 1 {
			return nil, oops.Format(nil, "bKGD length must be 1 byte for indexed color; got: %d", len(c.Data))
		}
		return BackgroundIndex{Index: c.Data[0]}, nil
	}
	return nil, oops.Format(oops.ErrUnknownCode, "color type %d", uint8(hdr.ColorType))
}

type Transparency interface {
	isTransparency()
}

// TransparencyGrey marks one grey sample value as fully transparent.
type TransparencyGrey struct {
	Value uint16
}

// TransparencyRGB marks one RGB sample value as fully transparent.
type TransparencyRGB struct {
	Red, Green, Blue uint16
}

// TransparencyIndexed holds alpha values for the first len(Alpha) palette
// entries; the rest are opaque.
type TransparencyIndexed struct {
	Alpha []uint8
}

func (TransparencyGrey) isTransparency()    {}
func (TransparencyRGB) isTransparency()     {}
func (TransparencyIndexed) isTransparency() {}

func DecodeTransparency(c Chunk, hdr *Header) (Transparency, error) {
	if hdr == nil {
		return nil, oops.Format(oops.ErrMissingHeader, "tRNS needs the image header")
	}
	switch hdr.ColorType {
	case Greyscale:
		v, err := exactUint16s(c, 1)
		if err != nil {
			return nil, err
		}
		return TransparencyGrey{Value: v[0]}, nil
	case TrueColor:
		v, err := exactUint16s(c, 3)
		if err != nil {
			return nil, err
		}
		return TransparencyRGB{Red: v[0], Green: v[1], Blue: v[2]}, nil
	case IndexedColor:
		if len(c.Data) > 256 {
			return nil, oops.Format(nil, "tRNS has %d entries, max is 256", len(c.Data))
		}
		return TransparencyIndexed{Alpha: bytes.Clone(c.Data)}, nil
	}
	return nil, oops.Format(nil, "tRNS is not allowed for color type %s", hdr.ColorType)
}

// SignificantBits is the sBIT chunk: the number of significant bits per
// channel, in channel order (grey or red, green, blue, then alpha). Indexed
// images report the palette's RGB channels.
type SignificantBits []uint8

func DecodeSignificantBits(c Chunk, hdr *Header) (SignificantBits, error) {
	if hdr == nil {
		return nil, oops.Format(oops.ErrMissingHeader, "sBIT needs the image header")
	}
	want := hdr.ColorType.Channels()
	maxBits := hdr.BitDepth
	if hdr.ColorType == IndexedColor {
		want, maxBits = 3, 8
	}
	if len(c.Data) != want {
		return nil, oops.Format(nil, "sBIT length must be %d bytes for %s; got: %d", want, hdr.ColorType, len(c.Data))
	}
	for _, b := range c.Data {
		if b == 0 || b > maxBits {
			return nil, oops.Format(nil, "sBIT value %d not in 1..%d", b, maxBits)
		}
	}
	return SignificantBits(bytes.Clone(c.Data)), nil
}

func exactUint16s(c Chunk, n int) ([]uint16, error) {
	if len(c.Data) != 2*n {
		return nil, oops.Format(nil, "%s length must be %d bytes; got: %d", c.Type, 2*n, len(c.Data))
	}
	cur := binread.NewCursor(c.Data)
	out := make([]uint16, n)
	for i := range out {
		out[i], _ = cur.Uint16()
	}
	return out, nil
}
