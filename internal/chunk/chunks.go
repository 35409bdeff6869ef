package chunk

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/snksoft/crc"
	"png.adpollak.net/internal/binread"
	"png.adpollak.net/internal/logging"
	"png.adpollak.net/internal/oops"
)

// Signature is the 8-byte header every PNG datastream starts with:
// 137 80 78 71 13 10 26 10.
const Signature = "\x89\x50\x4E\x47\x0D\x0A\x1A\x0A"

// maxLength is the largest chunk length the format allows (2^31-1).
const maxLength = 1<<31 - 1

// Chunk defines the chunk layout as specified by PNG datastream structure.
//
//	+------------+ +------------+ +------------+ +-------+
//	|   LENGTH   | | CHUNK TYPE | | CHUNK DATA | |  CRC  |
//	+------------+ +------------+ +------------+ +-------+
type Chunk struct {
	Length uint32    // A four-byte unsigned integer giving the number of bytes in the chunk's data field.
	Type   ChunkType // A sequence of four bytes defining the chunk type.
	Data   []byte    // The data bytes of the relevant chunk type; can be zero length.
	Crc    uint32    // The stored CRC over chunk type and data, but NOT length.
}

func (c Chunk) IsCritical() bool {
	return c.Type.IsCritical()
}

func (c Chunk) String() string {
	return fmt.Sprintf("Chunk (type: %s, length: %d, critical: %t)", c.Type, c.Length, c.IsCritical())
}

// Options control how strictly chunks are framed.
type Options struct {
	// IgnoreChecksums accepts chunks whose stored CRC does not match the
	// CRC-32 of type and data.
	IgnoreChecksums bool

	// MaxChunkLength, if non-zero, rejects longer chunks before allocating
	// their payload. Only the streaming Reader needs it; Frame already knows
	// how much data there is.
	MaxChunkLength uint32
}

var crcTable = crc.NewTable(crc.CRC32)

func checksum(typeAndData []byte) uint32 {
	return uint32(crcTable.CalculateCRC(typeAndData))
}

// IsPng determines if data begins with the PNG signature.
func IsPng(data []byte) bool {
	return len(data) >= len(Signature) && string(data[:len(Signature)]) == Signature
}

// Frame splits a complete PNG datastream into its chunks, in file order. The
// whole buffer must be consumed by well-formed chunks; anything left over is
// reported as truncation.
func Frame(data []byte, opts Options) ([]Chunk, error) {
	if !IsPng(data) {
		n := len(data)
		if n > len(Signature) {
			n = len(Signature)
		}
		return nil, oops.Format(oops.ErrSignature, "signature mismatch: got %x, expected %x", data[:n], Signature)
	}

	cur := binread.NewCursor(data)
	_ = cur.Seek(len(Signature))

	var chunks []Chunk
	for cur.Len() > 0 {
		start := cur.Offset()

		length, err := cur.Uint32()
		if err != nil {
			return nil, oops.Format(oops.ErrTruncated, "chunk %d at offset %d: length", len(chunks), start)
		}
		if length > maxLength {
			return nil, oops.Format(nil, "chunk %d at offset %d: length %d exceeds 2^31-1", len(chunks), start, length)
		}
		// Explicit bound check: type, data and CRC must all fit.
		if uint64(cur.Len()) < 4+uint64(length)+4 {
			return nil, oops.Format(oops.ErrTruncated,
				"chunk %d at offset %d declares %d data bytes but only %d bytes remain", len(chunks), start, length, cur.Len())
		}

		typeAndData, _ := cur.Bytes(4 + int(length))
		stored, _ := cur.Uint32()

		c, err := newChunk(length, typeAndData, stored, opts)
		if err != nil {
			return nil, err
		}
		logging.Debug().Str("type", c.Type.String()).Uint32("length", length).Int("offset", start).Msg("framed chunk")
		chunks = append(chunks, c)
	}

	return chunks, nil
}

// newChunk validates the type and CRC and copies the payload so the chunk
// does not alias the source buffer.
func newChunk(length uint32, typeAndData []byte, stored uint32, opts Options) (Chunk, error) {
	chunkType, err := FromString(string(typeAndData[:4]))
	if err != nil {
		return Chunk{}, err
	}

	if !opts.IgnoreChecksums {
		if computed := checksum(typeAndData); computed != stored {
			return Chunk{}, oops.Format(oops.ErrChecksum,
				"chunk %s: stored %08x, calculated %08x", chunkType, stored, computed)
		}
	}

	return Chunk{
		Length: length,
		Type:   chunkType,
		Data:   bytes.Clone(typeAndData[4:]),
		Crc:    stored,
	}, nil
}

// Reader reads chunks one at a time from a stream. It is single-pass: once a
// chunk is returned the underlying bytes are gone.
type Reader struct {
	r      io.Reader
	opts   Options
	header [8]byte
	index  int
}

// NewReader wraps r; call ReadSignature before the first Next.
func NewReader(r io.Reader, opts Options) *Reader {
	return &Reader{r: r, opts: opts}
}

// ReadSignature consumes and validates the 8-byte PNG signature. It must be
// called once before Next.
func (r *Reader) ReadSignature() error {
	var sig [len(Signature)]byte
	n, err := io.ReadFull(r.r, sig[:])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return oops.IO(err, "failed to read signature")
	}
	if string(sig[:n]) != Signature {
		return oops.Format(oops.ErrSignature, "signature mismatch: got %x, expected %x", sig[:n], Signature)
	}
	return nil
}

// Next returns the next chunk, or io.EOF when the stream ends cleanly on a
// chunk boundary.
func (r *Reader) Next() (Chunk, error) {
	n, err := io.ReadFull(r.r, r.header[:])
	switch {
	case errors.Is(err, io.EOF) && n == 0:
		return Chunk{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return Chunk{}, oops.Format(oops.ErrTruncated, "chunk %d: short header", r.index)
	case err != nil:
		return Chunk{}, oops.IO(err, "chunk %d: failed to read header", r.index)
	}

	length, _ := binread.Uint32BE(r.header[:4])
	if length > maxLength || (r.opts.MaxChunkLength != 0 && length > r.opts.MaxChunkLength) {
		return Chunk{}, oops.Format(nil, "chunk %d (%s): length %d too large", r.index, r.header[4:8], length)
	}

	// Type and data are kept contiguous for the CRC.
	typeAndData := make([]byte, 4+int(length))
	copy(typeAndData, r.header[4:8])
	if _, err := io.ReadFull(r.r, typeAndData[4:]); err != nil {
		return Chunk{}, r.bodyError(err, "data")
	}
	var crcBytes [4]byte
	if _, err := io.ReadFull(r.r, crcBytes[:]); err != nil {
		return Chunk{}, r.bodyError(err, "CRC")
	}
	stored, _ := binread.Uint32BE(crcBytes[:])

	c, err := newChunk(length, typeAndData, stored, r.opts)
	if err != nil {
		return Chunk{}, err
	}
	r.index++
	return c, nil
}

func (r *Reader) bodyError(err error, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return oops.Format(oops.ErrTruncated, "chunk %d: short %s", r.index, what)
	}
	return oops.IO(err, "chunk %d: failed to read %s", r.index, what)
}
