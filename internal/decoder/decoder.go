// Package decoder reconstructs the pixel data of a PNG file: it frames the
// datastream, gathers the IDAT chunks, inflates them and reverses the
// scanline filters.
package decoder

import (
	"os"

	"png.adpollak.net/internal/chunk"
	"png.adpollak.net/internal/config"
	"png.adpollak.net/internal/filter"
	"png.adpollak.net/internal/inflate"
	"png.adpollak.net/internal/logging"
	"png.adpollak.net/internal/oops"
)

// PngDecoder represents the process of reconstructing the reference image from a
// PNG datastream. It owns its chunks; decoders never share state.
type PngDecoder struct {
	Chunks []chunk.Chunk
}

// Open reads the whole file at path and frames it, using the global config
// for checksum handling.
func Open(path string) (*PngDecoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.IO(err, "failed to read %s", path)
	}
	logging.Debug().Str("path", path).Int("bytes", len(data)).Msg("read png file")

	return OpenBytes(data, chunk.Options{
		IgnoreChecksums: config.Config.IgnoreChecksums,
		MaxChunkLength:  config.Config.MaxChunkLength,
	})
}

// OpenBytes frames an in-memory datastream. data is not retained.
func OpenBytes(data []byte, opts chunk.Options) (*PngDecoder, error) {
	chunks, err := chunk.Frame(data, opts)
	if err != nil {
		return nil, err
	}
	return &PngDecoder{Chunks: chunks}, nil
}

// Header decodes the first chunk, which must be IHDR.
func (p *PngDecoder) Header() (*chunk.Header, error) {
	if len(p.Chunks) == 0 {
		return nil, oops.Format(oops.ErrMissingHeader, "datastream has no chunks")
	}
	return chunk.DecodeHeader(p.Chunks[0])
}

// ImageData returns the reconstructed pixel buffer: rows of
// hdr.RowBytes(width) bytes, top to bottom. Only IHDR and IDAT are consulted,
// so broken ancillary chunks never get in the way. Nothing is cached; every
// call does the full work again.
func (p *PngDecoder) ImageData() ([]byte, error) {
	hdr, err := p.Header()
	if err != nil {
		return nil, err
	}

	// The zlib stream spans every IDAT chunk, in file order.
	idat, count := p.concatIDAT()
	if count == 0 {
		return nil, oops.Format(oops.ErrTruncated, "no IDAT chunks")
	}
	logging.Debug().Int("chunks", count).Int("bytes", len(idat)).Msg("collected IDAT data")

	inflated, err := inflate.Inflate(idat)
	if err != nil {
		return nil, err
	}

	pixels, err := filter.Unfilter(inflated, hdr)
	if err != nil {
		return nil, err
	}
	logging.Debug().Stringer("header", hdr).Int("bytes", len(pixels)).Msg("reconstructed pixels")
	return pixels, nil
}

func (p *PngDecoder) concatIDAT() ([]byte, int) {
	size, count := 0, 0
	for _, c := range p.Chunks {
		if c.Type == chunk.ChunkIDAT {
			size += len(c.Data)
			count++
		}
	}
	idat := make([]byte, 0, size)
	for _, c := range p.Chunks {
		if c.Type == chunk.ChunkIDAT {
			idat = append(idat, c.Data...)
		}
	}
	return idat, count
}

// find returns the first chunk of type t.
func (p *PngDecoder) find(t chunk.ChunkType) (chunk.Chunk, bool) {
	for _, c := range p.Chunks {
		if c.Type == t {
			return c, true
		}
	}
	return chunk.Chunk{}, false
}

// Palette decodes PLTE, or returns nil if the file has none.
func (p *PngDecoder) Palette() (chunk.Palette, error) {
	c, ok := p.find(chunk.ChunkPLTE)
	if !ok {
		return nil, nil
	}
	return chunk.DecodePalette(c)
}

// Transparency decodes tRNS against the header, or returns nil if the file
// has none.
func (p *PngDecoder) Transparency() (chunk.Transparency, error) {
	c, ok := p.find(chunk.ChunktRNS)
	if !ok {
		return nil, nil
	}
	hdr, err := p.Header()
	if err != nil {
		return nil, err
	}
	return chunk.DecodeTransparency(c, hdr)
}
