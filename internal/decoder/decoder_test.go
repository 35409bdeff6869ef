package decoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"png.adpollak.net/internal/chunk"
	"png.adpollak.net/internal/inflate"
	"png.adpollak.net/internal/oops"
)

func rawChunk(chunkType string, data []byte) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.BigEndian, uint32(len(data)))
	b.WriteString(chunkType)
	b.Write(data)
	binary.Write(&b, binary.BigEndian, crc32.ChecksumIEEE(append([]byte(chunkType), data...)))
	return b.Bytes()
}

func stream(chunks ...[]byte) []byte {
	out := []byte(chunk.Signature)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func ihdr(width, height uint32, depth uint8, ct chunk.ColorType, interlace uint8) []byte {
	b := make([]byte, 13)
	binary.BigEndian.PutUint32(b, width)
	binary.BigEndian.PutUint32(b[4:], height)
	b[8] = depth
	b[9] = uint8(ct)
	b[12] = interlace
	return b
}

func zlibBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	z, err := inflate.Deflate(data)
	require.Nil(t, err)
	return z
}

func encodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.Nil(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// reframe re-encodes a datastream's chunks, letting edit insert, drop or
// replace them.
func reframe(t *testing.T, data []byte, edit func(c chunk.Chunk) [][]byte) []byte {
	t.Helper()
	chunks, err := chunk.Frame(data, chunk.Options{})
	require.Nil(t, err)
	var parts [][]byte
	for _, c := range chunks {
		parts = append(parts, edit(c)...)
	}
	return stream(parts...)
}

// packRow packs one index per pixel into a row at the given depth.
func packRow(indices []uint8, depth int) []byte {
	row := make([]byte, (len(indices)*depth+7)/8)
	for x, v := range indices {
		bit := x * depth
		row[bit/8] |= v << (8 - depth - bit%8)
	}
	return row
}

func TestImageDataSingleSubRow(t *testing.T) {
	data := stream(
		rawChunk("IHDR", ihdr(2, 1, 8, chunk.Greyscale, 0)),
		rawChunk("IDAT", zlibBytes(t, []byte{1, 5, 10})),
		rawChunk("IEND", nil),
	)
	p, err := OpenBytes(data, chunk.Options{})
	require.Nil(t, err)

	pixels, err := p.ImageData()
	require.Nil(t, err)
	assert.Equal(t, []byte{5, 15}, pixels)
}

func TestImageDataMatchesStdlib(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	rect := image.Rect(0, 0, 23, 17)

	gray := image.NewGray(rect)
	rng.Read(gray.Pix)

	gray16 := image.NewGray16(rect)
	rng.Read(gray16.Pix)

	nrgba := image.NewNRGBA(rect)
	rng.Read(nrgba.Pix)

	opaque := image.NewNRGBA(rect)
	rng.Read(opaque.Pix)
	var rgb []byte
	for i := 0; i < len(opaque.Pix); i += 4 {
		opaque.Pix[i+3] = 0xFF
		rgb = append(rgb, opaque.Pix[i:i+3]...)
	}

	tests := []struct {
		name     string
		img      image.Image
		header   string
		expected []byte
	}{
		{"gray", gray, "23x17 8-bit Greyscale, interlace None", gray.Pix},
		{"gray16", gray16, "23x17 16-bit Greyscale, interlace None", gray16.Pix},
		{"nrgba", nrgba, "23x17 8-bit Truecolor with alpha, interlace None", nrgba.Pix},
		{"opaque nrgba", opaque, "23x17 8-bit Truecolor, interlace None", rgb},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := OpenBytes(encodePNG(t, tt.img), chunk.Options{})
			require.Nil(t, err)

			hdr, err := p.Header()
			require.Nil(t, err)
			assert.Equal(t, tt.header, hdr.String())

			pixels, err := p.ImageData()
			require.Nil(t, err)
			assert.Equal(t, tt.expected, pixels)
			assert.Len(t, pixels, int(hdr.Width)*int(hdr.Height)*hdr.ColorType.BytesPerPixel()*int(hdr.BitDepth)/8)
		})
	}
}

func TestImageDataPaletted(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for _, size := range []int{2, 4, 16, 256} {
		palette := make(color.Palette, size)
		for i := range palette {
			palette[i] = color.NRGBA{R: uint8(i), G: uint8(255 - i), B: uint8(i * 3), A: 0xFF}
		}
		// One translucent entry forces a tRNS chunk.
		palette[1] = color.NRGBA{R: 9, G: 8, B: 7, A: 0x80}

		img := image.NewPaletted(image.Rect(0, 0, 13, 6), palette)
		for i := range img.Pix {
			img.Pix[i] = uint8(rng.Intn(size))
		}

		depth := map[int]int{2: 1, 4: 2, 16: 4, 256: 8}[size]
		var expected []byte
		for y := 0; y < 6; y++ {
			expected = append(expected, packRow(img.Pix[y*img.Stride:y*img.Stride+13], depth)...)
		}

		t.Run(fmt.Sprintf("%d colors", size), func(t *testing.T) {
			p, err := OpenBytes(encodePNG(t, img), chunk.Options{})
			require.Nil(t, err)

			hdr, err := p.Header()
			require.Nil(t, err)
			assert.Equal(t, chunk.IndexedColor, hdr.ColorType)
			assert.Equal(t, uint8(depth), hdr.BitDepth)

			pixels, err := p.ImageData()
			require.Nil(t, err)
			assert.Equal(t, expected, pixels)

			plte, err := p.Palette()
			require.Nil(t, err)
			require.Len(t, plte, size)
			assert.Equal(t, chunk.PaletteEntry{R: 9, G: 8, B: 7}, plte[1])

			trns, err := p.Transparency()
			require.Nil(t, err)
			assert.Equal(t, chunk.TransparencyIndexed{Alpha: []uint8{0xFF, 0x80}}, trns)
		})
	}
}

// adam7Gray interlaces an 8-bit greyscale image with filter type None.
func adam7Gray(pix []byte, width, height int) []byte {
	passes := [7][4]int{{0, 0, 8, 8}, {4, 0, 8, 8}, {0, 4, 4, 8}, {2, 0, 4, 4}, {0, 2, 2, 4}, {1, 0, 2, 2}, {0, 1, 1, 2}}
	var out []byte
	for _, p := range passes {
		for y := p[1]; y < height; y += p[3] {
			var row []byte
			for x := p[0]; x < width; x += p[2] {
				row = append(row, pix[y*width+x])
			}
			if len(row) > 0 {
				out = append(out, 0)
				out = append(out, row...)
			}
		}
	}
	return out
}

func TestImageDataInterlaced(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	for _, size := range [][2]int{{1, 1}, {3, 3}, {9, 7}, {16, 16}} {
		w, h := size[0], size[1]
		pix := make([]byte, w*h)
		rng.Read(pix)

		data := stream(
			rawChunk("IHDR", ihdr(uint32(w), uint32(h), 8, chunk.Greyscale, 1)),
			rawChunk("IDAT", zlibBytes(t, adam7Gray(pix, w, h))),
			rawChunk("IEND", nil),
		)

		p, err := OpenBytes(data, chunk.Options{})
		require.Nil(t, err)
		pixels, err := p.ImageData()
		require.Nil(t, err)
		assert.Equal(t, pix, pixels)

		// The standard library agrees.
		img, err := png.Decode(bytes.NewReader(data))
		require.Nil(t, err)
		assert.Equal(t, pix, img.(*image.Gray).Pix)
	}
}

func TestImageDataSplitIDAT(t *testing.T) {
	pix := []byte{0, 1, 2, 3, 0, 4, 5, 6, 2, 1, 1, 1}
	z := zlibBytes(t, pix)
	require.Greater(t, len(z), 4)

	data := stream(
		rawChunk("IHDR", ihdr(3, 3, 8, chunk.Greyscale, 0)),
		rawChunk("IDAT", z[:1]),
		rawChunk("tEXt", []byte("Comment\x00between")),
		rawChunk("IDAT", z[1:4]),
		rawChunk("IDAT", nil),
		rawChunk("IDAT", z[4:]),
		rawChunk("IEND", nil),
	)
	p, err := OpenBytes(data, chunk.Options{})
	require.Nil(t, err)

	pixels, err := p.ImageData()
	require.Nil(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 5, 6, 7}, pixels)

	// No caching: a second call redoes the work with the same result.
	again, err := p.ImageData()
	require.Nil(t, err)
	assert.Equal(t, pixels, again)
}

func TestImageDataIgnoresAncillary(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 4, 4))
	rand.New(rand.NewSource(1)).Read(gray.Pix)
	data := encodePNG(t, gray)

	data = reframe(t, data, func(c chunk.Chunk) [][]byte {
		out := [][]byte{rawChunk(c.Type.String(), c.Data)}
		if c.Type == chunk.ChunkIHDR {
			out = append(out,
				rawChunk("prVt", []byte("private")),
				rawChunk("gAMA", []byte{1, 2, 3}),
				rawChunk("tIME", []byte{0, 0, 13, 1, 1, 0, 0}),
			)
		}
		return out
	})

	p, err := OpenBytes(data, chunk.Options{})
	require.Nil(t, err)
	assert.Equal(t, "prVt", p.Chunks[1].Type.String())
	assert.False(t, p.Chunks[1].Type.IsKnown())

	pixels, err := p.ImageData()
	require.Nil(t, err)
	assert.Equal(t, gray.Pix, pixels)

	hdr, err := p.Header()
	require.Nil(t, err)
	_, err = chunk.Decode(p.Chunks[2], hdr)
	assert.ErrorIs(t, err, oops.ErrFormat)
	_, err = chunk.Decode(p.Chunks[1], hdr)
	assert.ErrorIs(t, err, oops.ErrUnknownChunk)
}

func TestImageDataErrors(t *testing.T) {
	header := rawChunk("IHDR", ihdr(2, 2, 8, chunk.Greyscale, 0))
	tests := []struct {
		name   string
		data   []byte
		kind   error
		detail error
	}{
		{
			name:   "no chunks",
			data:   stream(),
			kind:   oops.ErrFormat,
			detail: oops.ErrMissingHeader,
		},
		{
			name:   "header not first",
			data:   stream(rawChunk("tEXt", []byte("a\x00b")), header, rawChunk("IDAT", zlibBytes(t, make([]byte, 6)))),
			kind:   oops.ErrFormat,
			detail: oops.ErrMissingHeader,
		},
		{
			name:   "no IDAT",
			data:   stream(header, rawChunk("IEND", nil)),
			kind:   oops.ErrFormat,
			detail: oops.ErrTruncated,
		},
		{
			name:   "too few scanlines",
			data:   stream(header, rawChunk("IDAT", zlibBytes(t, []byte{0, 1, 2}))),
			kind:   oops.ErrFormat,
			detail: oops.ErrTruncated,
		},
		{
			name:   "bad filter byte",
			data:   stream(header, rawChunk("IDAT", zlibBytes(t, []byte{0, 1, 2, 7, 1, 2}))),
			kind:   oops.ErrFormat,
			detail: oops.ErrUnknownCode,
		},
		{
			name: "corrupt zlib",
			data: stream(header, rawChunk("IDAT", []byte{0x78, 0x9C, 0xFF, 0xFF, 0xFF})),
			kind: oops.ErrDecompress,
		},
		{
			name: "truncated zlib",
			data: stream(header, rawChunk("IDAT", zlibBytes(t, make([]byte, 6))[:4])),
			kind: oops.ErrDecompress,
		},
		{
			name: "not zlib",
			data: stream(header, rawChunk("IDAT", []byte("hello"))),
			kind: oops.ErrDecompress,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := OpenBytes(tt.data, chunk.Options{})
			require.Nil(t, err)
			_, err = p.ImageData()
			assert.ErrorIs(t, err, tt.kind)
			if tt.detail != nil {
				assert.ErrorIs(t, err, tt.detail)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	gray := image.NewGray(image.Rect(0, 0, 5, 2))
	copy(gray.Pix, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	path := filepath.Join(dir, "gray.png")
	require.Nil(t, os.WriteFile(path, encodePNG(t, gray), 0o644))

	p, err := Open(path)
	require.Nil(t, err)
	assert.Equal(t, chunk.ChunkIHDR, p.Chunks[0].Type)
	assert.Equal(t, chunk.ChunkIEND, p.Chunks[len(p.Chunks)-1].Type)

	pixels, err := p.ImageData()
	require.Nil(t, err)
	assert.Equal(t, gray.Pix, pixels)

	t.Run("missing file", func(t *testing.T) {
		_, err := Open(filepath.Join(dir, "nope.png"))
		assert.ErrorIs(t, err, oops.ErrIO)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
	t.Run("not a png", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.png")
		require.Nil(t, os.WriteFile(bad, []byte("GIF89a....."), 0o644))
		_, err := Open(bad)
		assert.ErrorIs(t, err, oops.ErrFormat)
		assert.ErrorIs(t, err, oops.ErrSignature)
	})
}

func TestChecksums(t *testing.T) {
	data := stream(
		rawChunk("IHDR", ihdr(1, 1, 8, chunk.Greyscale, 0)),
		rawChunk("IDAT", zlibBytes(t, []byte{0, 77})),
		rawChunk("IEND", nil),
	)
	// Flip a CRC bit in the IDAT chunk.
	idatCRC := len(chunk.Signature) + 25 + 8 + len(zlibBytes(t, []byte{0, 77}))
	data[idatCRC] ^= 0x01

	_, err := OpenBytes(data, chunk.Options{})
	assert.ErrorIs(t, err, oops.ErrChecksum)

	p, err := OpenBytes(data, chunk.Options{IgnoreChecksums: true})
	require.Nil(t, err)
	pixels, err := p.ImageData()
	require.Nil(t, err)
	assert.Equal(t, []byte{77}, pixels)
}

func TestHandlesAreIndependent(t *testing.T) {
	data := stream(
		rawChunk("IHDR", ihdr(1, 1, 8, chunk.Greyscale, 0)),
		rawChunk("IDAT", zlibBytes(t, []byte{0, 1})),
		rawChunk("IEND", nil),
	)
	a, err := OpenBytes(data, chunk.Options{})
	require.Nil(t, err)
	b, err := OpenBytes(data, chunk.Options{})
	require.Nil(t, err)

	a.Chunks[1].Data[0] ^= 0xFF
	data[len(chunk.Signature)+8] = 'X'

	pixels, err := b.ImageData()
	require.Nil(t, err)
	assert.Equal(t, []byte{1}, pixels)
}

// benchmarkImage is a photo-sized NRGBA image: smooth gradients with noise,
// so the encoder picks a mix of filter types.
func benchmarkImage(b *testing.B) []byte {
	b.Helper()
	rng := rand.New(rand.NewSource(1))
	img := image.NewNRGBA(image.Rect(0, 0, 1024, 768))
	for y := 0; y < 768; y++ {
		for x := 0; x < 1024; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x/4) + uint8(rng.Intn(8)),
				G: uint8(y/3) + uint8(rng.Intn(8)),
				B: uint8((x+y)/7) + uint8(rng.Intn(8)),
				A: 255 - uint8(rng.Intn(16)),
			})
		}
	}
	return encodePNG(b, img)
}

func BenchmarkOpen(b *testing.B) {
	data := benchmarkImage(b)
	path := filepath.Join(b.TempDir(), "bench.png")
	require.Nil(b, os.WriteFile(path, data, 0o644))

	b.ReportAllocs()
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Open(path); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkImageData(b *testing.B) {
	data := benchmarkImage(b)
	p, err := OpenBytes(data, chunk.Options{})
	require.Nil(b, err)

	b.ReportAllocs()
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.ImageData(); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkDecode is Open plus ImageData, comparable with BenchmarkStdlibDecode.
func BenchmarkDecode(b *testing.B) {
	data := benchmarkImage(b)

	b.ReportAllocs()
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p, err := OpenBytes(data, chunk.Options{})
		if err != nil {
			b.Fatal(err)
		}
		if _, err := p.ImageData(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkStdlibDecode(b *testing.B) {
	data := benchmarkImage(b)

	b.ReportAllocs()
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := png.Decode(bytes.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}
