package chunk

import (
	"png.adpollak.net/internal/oops"
)

// Decode returns the typed record for c. hdr is only consulted for chunk
// types whose layout depends on the color type (bKGD, tRNS, sBIT) and may be
// nil otherwise. Chunks this package cannot decode, including IDAT and IEND,
// return an error wrapping oops.ErrUnknownChunk.
func Decode(c Chunk, hdr *Header) (any, error) {
	switch c.Type {
	case ChunkIHDR:
		return DecodeHeader(c)
	case ChunkPLTE:
		return DecodePalette(c)
	case ChunkgAMA:
		return DecodeGamma(c)
	case ChunkcHRM:
		return DecodeChromaticities(c)
	case ChunkpHYs:
		return DecodePhysical(c)
	case ChunksRGB:
		return DecodeSRGB(c)
	case ChunkbKGD:
		return DecodeBackground(c, hdr)
	case ChunktRNS:
		return DecodeTransparency(c, hdr)
	case ChunksBIT:
		return DecodeSignificantBits(c, hdr)
	case ChunkhIST:
		return DecodeHistogram(c)
	case ChunksPLT:
		return DecodeSuggestedPalette(c)
	case ChunktEXt:
		return DecodeText(c)
	case ChunkzTXt:
		return DecodeCompressedText(c)
	case ChunkiTXt:
		return DecodeInternationalText(c)
	case ChunkiCCP:
		return DecodeICCProfile(c)
	case ChunktIME:
		return DecodeTime(c)
	case ChunkeXIf:
		return DecodeExif(c)
	}
	return nil, oops.Format(oops.ErrUnknownChunk, "%s", c.Type)
}
