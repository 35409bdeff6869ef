package filter

import (
	"golang.org/x/sync/errgroup"
	"png.adpollak.net/internal/chunk"
	"png.adpollak.net/internal/oops"
)

// Unfilter turns inflated IDAT data into the image's pixel bytes: rows of
// hdr.RowBytes(width) bytes, top to bottom, with filter bytes stripped.
// Interlaced data is reassembled to full resolution.
//
// Indexed images keep their palette indices; no palette lookup is done here.
func Unfilter(inflated []byte, hdr *chunk.Header) ([]byte, error) {
	if err := hdr.Validate(); err != nil {
		return nil, err
	}
	size, err := hdr.PixelBufferLength()
	if err != nil {
		return nil, err
	}

	switch hdr.InterlaceMethod {
	case chunk.InterlaceNone:
		return unfilterProgressive(inflated, hdr, size)
	case chunk.InterlaceAdam7:
		return unfilterAdam7(inflated, hdr, size)
	}
	return nil, oops.Format(oops.ErrUnknownCode, "interlace method %d", uint8(hdr.InterlaceMethod))
}

func unfilterProgressive(inflated []byte, hdr *chunk.Header, size int) ([]byte, error) {
	scanline := hdr.ScanlineLength()
	expected := uint64(scanline) * uint64(hdr.Height)
	if uint64(len(inflated)) != expected {
		return nil, oops.Format(oops.ErrTruncated,
			"pixel data is %d bytes, expected %d scanlines of %d (%d bytes)", len(inflated), hdr.Height, scanline, expected)
	}

	out := make([]byte, size)
	if err := Rows(out, inflated, scanline-1, hdr.FilterStride()); err != nil {
		return nil, err
	}
	return out, nil
}

// pass describes one Adam7 pass: the first pixel and the step between
// pixels in each direction.
type pass struct {
	x0, y0, dx, dy int
}

var adam7 = [7]pass{
	{0, 0, 8, 8},
	{4, 0, 8, 8},
	{0, 4, 4, 8},
	{2, 0, 4, 4},
	{0, 2, 2, 4},
	{1, 0, 2, 2},
	{0, 1, 1, 2},
}

// size is the pass's sub-image size; either may be zero for small images,
// in which case the pass has no data at all, not even filter bytes.
func (p pass) size(width, height int) (int, int) {
	w := (width - p.x0 + p.dx - 1) / p.dx
	h := (height - p.y0 + p.dy - 1) / p.dy
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return w, h
}

type passData struct {
	pass          pass
	width, height int
	rowBytes      int
	filtered      []byte
	pixels        []byte
}

func unfilterAdam7(inflated []byte, hdr *chunk.Header, size int) ([]byte, error) {
	width, height := int(hdr.Width), int(hdr.Height)

	// Split the stream into passes up front so the length check covers all
	// of them before any work is done.
	var passes []*passData
	offset := 0
	for _, p := range adam7 {
		w, h := p.size(width, height)
		if w == 0 || h == 0 {
			continue
		}
		rowBytes := hdr.RowBytes(w)
		n := (rowBytes + 1) * h
		if offset+n > len(inflated) {
			return nil, oops.Format(oops.ErrTruncated, "interlaced pixel data ends in pass %+v", p)
		}
		passes = append(passes, &passData{
			pass:     p,
			width:    w,
			height:   h,
			rowBytes: rowBytes,
			filtered: inflated[offset : offset+n],
			pixels:   make([]byte, rowBytes*h),
		})
		offset += n
	}
	if offset != len(inflated) {
		return nil, oops.Format(oops.ErrTruncated, "interlaced pixel data is %d bytes, expected %d", len(inflated), offset)
	}

	// Passes are independent sub-images.
	var g errgroup.Group
	stride := hdr.FilterStride()
	for _, pd := range passes {
		pd := pd
		g.Go(func() error {
			return Rows(pd.pixels, pd.filtered, pd.rowBytes, stride)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Scatter sequentially: with sub-byte depths, pixels from different
	// passes share output bytes.
	out := make([]byte, size)
	outRowBytes := hdr.RowBytes(width)
	bpp := hdr.BitsPerPixel()
	for _, pd := range passes {
		for py := 0; py < pd.height; py++ {
			src := pd.pixels[py*pd.rowBytes : (py+1)*pd.rowBytes]
			y := pd.pass.y0 + py*pd.pass.dy
			dst := out[y*outRowBytes : (y+1)*outRowBytes]
			for px := 0; px < pd.width; px++ {
				copyPixel(dst, pd.pass.x0+px*pd.pass.dx, src, px, bpp)
			}
		}
	}
	return out, nil
}

// copyPixel copies pixel srcX of src to pixel dstX of dst. Pixels narrower
// than a byte are packed most significant bits first.
func copyPixel(dst []byte, dstX int, src []byte, srcX int, bpp int) {
	if bpp >= 8 {
		n := bpp / 8
		copy(dst[dstX*n:dstX*n+n], src[srcX*n:srcX*n+n])
		return
	}
	mask := byte(1<<bpp - 1)
	srcBit := srcX * bpp
	v := (src[srcBit/8] >> (8 - bpp - srcBit%8)) & mask
	dstBit := dstX * bpp
	shift := 8 - bpp - dstBit%8
	dst[dstBit/8] = dst[dstBit/8]&^(mask<<shift) | v<<shift
}
