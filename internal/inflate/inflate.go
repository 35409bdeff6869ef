// Package inflate wraps the zlib codec used for IDAT, zTXt, iTXt and iCCP
// payloads.
package inflate

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
	"png.adpollak.net/internal/oops"
)

// Inflate decompresses a complete zlib stream. Corrupt or truncated input
// yields a DecompressError.
func Inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, oops.Decompress(err, "failed to open zlib stream")
	}
	defer zr.Close()

	var out bytes.Buffer
	if _, err := io.Copy(&out, zr); err != nil {
		return nil, oops.Decompress(err, "failed to inflate %d bytes", len(data))
	}
	return out.Bytes(), nil
}

// Deflate compresses data as a zlib stream.
func Deflate(data []byte) ([]byte, error) {
	var out bytes.Buffer
	zw := zlib.NewWriter(&out)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
