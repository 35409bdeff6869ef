package chunk

import (
	"fmt"

	"png.adpollak.net/internal/oops"
)

// ChunkType is the four-letter chunk tag. Any four ASCII letters form a valid
// type; the variables below name the ones this package knows how to decode.
type ChunkType struct {
	slug string
}

func (c ChunkType) String() string {
	return c.slug
}

// FromString validates a raw tag. Unknown tags are not an error: a decoder
// must be able to skip chunks it does not understand.
func FromString(s string) (ChunkType, error) {
	if len(s) != 4 {
		return Unknown, oops.Format(nil, "chunk type %q is not 4 bytes", s)
	}
	for i := 0; i < len(s); i++ {
		if !isLetter(s[i]) {
			return Unknown, oops.Format(nil, "chunk type %q contains non-letter byte 0x%02x", s, s[i])
		}
	}
	for _, known := range knownTypes {
		if known.slug == s {
			return known, nil
		}
	}
	return ChunkType{s}, nil
}

// IsKnown reports whether the type is one of the registered PNG chunk types.
func (c ChunkType) IsKnown() bool {
	for _, known := range knownTypes {
		if known == c {
			return true
		}
	}
	return false
}

// IsCritical determines if a chunk is a Critical or Ancillary type.
func (c ChunkType) IsCritical() bool {
	return len(c.slug) == 4 && isUpper(c.slug[0])
}

func (c ChunkType) IsPublic() bool {
	return len(c.slug) == 4 && isUpper(c.slug[1])
}

func (c ChunkType) IsSafeToCopy() bool {
	return len(c.slug) == 4 && !isUpper(c.slug[3])
}

func (c ChunkType) GoString() string {
	return fmt.Sprintf("chunk.ChunkType(%q)", c.slug)
}

func isUpper(b byte) bool {
	return b >= 'A' && b <= 'Z'
}

func isLetter(b byte) bool {
	return isUpper(b) || (b >= 'a' && b <= 'z')
}

var (
	Unknown = ChunkType{""}

	// NOTE: Critical chunks
	ChunkIHDR = ChunkType{"IHDR"}
	ChunkPLTE = ChunkType{"PLTE"}
	ChunkIDAT = ChunkType{"IDAT"}
	ChunkIEND = ChunkType{"IEND"}

	// NOTE:  Ancillary chunks
	ChunkcHRM = ChunkType{"cHRM"}
	ChunkgAMA = ChunkType{"gAMA"}
	ChunkiCCP = ChunkType{"iCCP"}
	ChunksBIT = ChunkType{"sBIT"}
	ChunksRGB = ChunkType{"sRGB"}
	ChunkbKGD = ChunkType{"bKGD"}
	ChunkhIST = ChunkType{"hIST"}
	ChunktRNS = ChunkType{"tRNS"}
	ChunkpHYs = ChunkType{"pHYs"}
	ChunksPLT = ChunkType{"sPLT"}
	ChunktIME = ChunkType{"tIME"}
	ChunkiTXt = ChunkType{"iTXt"}
	ChunktEXt = ChunkType{"tEXt"}
	ChunkzTXt = ChunkType{"zTXt"}
	ChunkeXIf = ChunkType{"eXIf"}
)

var knownTypes = []ChunkType{
	ChunkIHDR, ChunkPLTE, ChunkIDAT, ChunkIEND,
	ChunkcHRM, ChunkgAMA, ChunkiCCP, ChunksBIT, ChunksRGB, ChunkbKGD, ChunkhIST,
	ChunktRNS, ChunkpHYs, ChunksPLT, ChunktIME, ChunkiTXt, ChunktEXt, ChunkzTXt, ChunkeXIf,
}
