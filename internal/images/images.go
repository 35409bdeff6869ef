// Package images turns a reconstructed pixel buffer into an image.Image.
package images

import (
	"image"
	"image/color"

	"png.adpollak.net/internal/chunk"
	"png.adpollak.net/internal/logging"
	"png.adpollak.net/internal/oops"
)

// CreateImage takes in unfiltered pixel data and the IHDR to recreate a PNG
// image. palette is required for indexed color; trns may be nil.
//
// Greyscale below 8 bits is scaled to 8 bits. Images with an alpha channel,
// or with a tRNS color key, come back non-premultiplied.
func CreateImage(pixels []byte, hdr *chunk.Header, palette chunk.Palette, trns chunk.Transparency) (image.Image, error) {
	size, err := hdr.PixelBufferLength()
	if err != nil {
		return nil, err
	}
	if len(pixels) != size {
		return nil, oops.Format(oops.ErrTruncated, "pixel buffer is %d bytes, %s needs %d", len(pixels), hdr, size)
	}

	width, height := int(hdr.Width), int(hdr.Height)
	rowBytes := hdr.RowBytes(width)
	logging.Debug().Stringer("header", hdr).Msg("creating image")

	// Switch on the 5 color types as specified in the PNG specification.
	switch hdr.ColorType {
	case chunk.Greyscale:
		key, _ := trns.(chunk.TransparencyGrey)
		return handleGreyscale(pixels, hdr, rowBytes, key, trns != nil), nil
	case chunk.TrueColor:
		key, _ := trns.(chunk.TransparencyRGB)
		return handleTruecolor(pixels, hdr, rowBytes, key, trns != nil), nil
	case chunk.IndexedColor:
		return handleIndexed(pixels, hdr, rowBytes, palette, trns)
	case chunk.GreyscaleAlpha:
		return handleGreyscaleAlpha(pixels, width, height, hdr.BitDepth), nil
	case chunk.TrueColorAlpha:
		return handleTruecolorAlpha(pixels, width, height, hdr.BitDepth), nil
	}
	return nil, oops.Format(oops.ErrUnknownCode, "color type %d", uint8(hdr.ColorType))
}

// sample reads sample x of a row at a depth below 16 bits.
func sample(row []byte, x int, depth uint8) uint8 {
	if depth == 8 {
		return row[x]
	}
	bit := x * int(depth)
	mask := byte(1<<depth - 1)
	return (row[bit/8] >> (8 - int(depth) - bit%8)) & mask
}

func sample16(b []byte, i int) uint16 {
	return uint16(b[2*i])<<8 | uint16(b[2*i+1])
}

// scale widens a sub-byte sample to 8 bits: 1 -> 0xFF, 3 at depth 2 -> 0xFF.
func scale(v uint8, depth uint8) uint8 {
	return uint8(int(v) * 255 / (1<<depth - 1))
}

func handleGreyscale(pixels []byte, hdr *chunk.Header, rowBytes int, key chunk.TransparencyGrey, keyed bool) image.Image {
	width, height := int(hdr.Width), int(hdr.Height)
	rect := image.Rect(0, 0, width, height)

	if hdr.BitDepth == 16 {
		if keyed {
			img := image.NewNRGBA64(rect)
			for y := 0; y < height; y++ {
				row := pixels[y*rowBytes:]
				for x := 0; x < width; x++ {
					v := sample16(row, x)
					a := uint16(0xFFFF)
					if v == key.Value {
						a = 0
					}
					img.SetNRGBA64(x, y, color.NRGBA64{R: v, G: v, B: v, A: a})
				}
			}
			return img
		}
		img := image.NewGray16(rect)
		copy(img.Pix, pixels)
		return img
	}

	if keyed {
		img := image.NewNRGBA(rect)
		for y := 0; y < height; y++ {
			row := pixels[y*rowBytes:]
			for x := 0; x < width; x++ {
				raw := sample(row, x, hdr.BitDepth)
				v := scale(raw, hdr.BitDepth)
				a := uint8(0xFF)
				if uint16(raw) == key.Value {
					a = 0
				}
				img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: a})
			}
		}
		return img
	}

	img := image.NewGray(rect)
	for y := 0; y < height; y++ {
		row := pixels[y*rowBytes:]
		for x := 0; x < width; x++ {
			img.Pix[y*img.Stride+x] = scale(sample(row, x, hdr.BitDepth), hdr.BitDepth)
		}
	}
	return img
}

func handleTruecolor(pixels []byte, hdr *chunk.Header, rowBytes int, key chunk.TransparencyRGB, keyed bool) image.Image {
	width, height := int(hdr.Width), int(hdr.Height)
	rect := image.Rect(0, 0, width, height)

	if hdr.BitDepth == 16 {
		img := image.NewNRGBA64(rect)
		for y := 0; y < height; y++ {
			row := pixels[y*rowBytes:]
			for x := 0; x < width; x++ {
				r, g, b := sample16(row, 3*x), sample16(row, 3*x+1), sample16(row, 3*x+2)
				a := uint16(0xFFFF)
				if keyed && r == key.Red && g == key.Green && b == key.Blue {
					a = 0
				}
				img.SetNRGBA64(x, y, color.NRGBA64{R: r, G: g, B: b, A: a})
			}
		}
		return img
	}

	img := image.NewNRGBA(rect)
	for y := 0; y < height; y++ {
		row := pixels[y*rowBytes:]
		for x := 0; x < width; x++ {
			r, g, b := row[3*x], row[3*x+1], row[3*x+2]
			a := uint8(0xFF)
			if keyed && uint16(r) == key.Red && uint16(g) == key.Green && uint16(b) == key.Blue {
				a = 0
			}
			img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: a})
		}
	}
	return img
}

func handleIndexed(pixels []byte, hdr *chunk.Header, rowBytes int, palette chunk.Palette, trns chunk.Transparency) (image.Image, error) {
	if len(palette) == 0 {
		return nil, oops.Format(nil, "indexed-color image has no PLTE chunk")
	}
	var alpha []uint8
	if t, ok := trns.(chunk.TransparencyIndexed); ok {
		alpha = t.Alpha
	}

	colors := make(color.Palette, len(palette))
	for i, e := range palette {
		a := uint8(0xFF)
		if i < len(alpha) {
			a = alpha[i]
		}
		colors[i] = color.NRGBA{R: e.R, G: e.G, B: e.B, A: a}
	}

	width, height := int(hdr.Width), int(hdr.Height)
	img := image.NewPaletted(image.Rect(0, 0, width, height), colors)
	for y := 0; y < height; y++ {
		row := pixels[y*rowBytes:]
		for x := 0; x < width; x++ {
			idx := sample(row, x, hdr.BitDepth)
			if int(idx) >= len(colors) {
				return nil, oops.Format(nil, "palette index %d out of range at (%d, %d); palette has %d entries", idx, x, y, len(colors))
			}
			img.Pix[y*img.Stride+x] = idx
		}
	}
	return img, nil
}

func handleGreyscaleAlpha(pixels []byte, width, height int, depth uint8) image.Image {
	rect := image.Rect(0, 0, width, height)
	if depth == 16 {
		img := image.NewNRGBA64(rect)
		for i := 0; i < width*height; i++ {
			v, a := sample16(pixels, 2*i), sample16(pixels, 2*i+1)
			img.SetNRGBA64(i%width, i/width, color.NRGBA64{R: v, G: v, B: v, A: a})
		}
		return img
	}
	img := image.NewNRGBA(rect)
	for i := 0; i < width*height; i++ {
		v, a := pixels[2*i], pixels[2*i+1]
		copy(img.Pix[4*i:], []byte{v, v, v, a})
	}
	return img
}

func handleTruecolorAlpha(pixels []byte, width, height int, depth uint8) image.Image {
	rect := image.Rect(0, 0, width, height)
	if depth == 16 {
		img := image.NewNRGBA64(rect)
		copy(img.Pix, pixels)
		return img
	}
	img := image.NewNRGBA(rect)
	copy(img.Pix, pixels)
	return img
}
