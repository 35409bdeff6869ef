// Package filter reverses PNG scanline filtering.
//
// Reconstruction is strictly ordered: each row needs the fully reconstructed
// row above it, and each byte needs the reconstructed byte one pixel to its
// left. Rows are therefore processed top to bottom and bytes left to right,
// in place.
package filter

import (
	"fmt"

	"png.adpollak.net/internal/oops"
)

type FilterType uint8

const (
	None    FilterType = 0
	Sub     FilterType = 1
	Up      FilterType = 2
	Average FilterType = 3
	Paeth   FilterType = 4
)

func FilterTypeFromRaw(b byte) (FilterType, error) {
	if b > uint8(Paeth) {
		return 0, oops.Format(oops.ErrUnknownCode, "filter type %d", b)
	}
	return FilterType(b), nil
}

func (f FilterType) String() string {
	switch f {
	case None:
		return "None"
	case Sub:
		return "Sub"
	case Up:
		return "Up"
	case Average:
		return "Average"
	case Paeth:
		return "Paeth"
	}
	return fmt.Sprintf("FilterType(%d)", uint8(f))
}

// Predictor is the Paeth predictor: whichever of left, up and upLeft is
// closest to left+up-upLeft, preferring left, then up, then upLeft on ties.
func Predictor(left, up, upLeft uint8) uint8 {
	p := int(left) + int(up) - int(upLeft)
	pa := abs(p - int(left))
	pb := abs(p - int(up))
	pc := abs(p - int(upLeft))
	if pa <= pb && pa <= pc {
		return left
	} else if pb <= pc {
		return up
	}
	return upLeft
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Rows unfilters a sequence of equally sized scanlines. scanlines holds
// len(dst)/rowBytes scanlines of 1+rowBytes bytes each; the reconstructed
// pixel bytes are written to dst with filter bytes dropped. stride is the
// byte distance to the "left" neighbour: one whole pixel, or one byte for
// pixels smaller than that.
func Rows(dst, scanlines []byte, rowBytes, stride int) error {
	if rowBytes == 0 {
		return nil
	}
	rows := len(dst) / rowBytes
	if len(dst)%rowBytes != 0 || len(scanlines) != rows*(rowBytes+1) {
		return oops.Format(oops.ErrTruncated, "have %d filtered bytes, expected %d rows of %d", len(scanlines), rows, rowBytes+1)
	}

	var prev []byte
	for y := 0; y < rows; y++ {
		line := scanlines[y*(rowBytes+1) : (y+1)*(rowBytes+1)]
		ft, err := FilterTypeFromRaw(line[0])
		if err != nil {
			return oops.Format(err, "scanline %d", y)
		}
		cur := dst[y*rowBytes : (y+1)*rowBytes]
		copy(cur, line[1:])
		unfilterRow(ft, cur, prev, stride)
		prev = cur
	}
	return nil
}

// unfilterRow reconstructs cur in place. prev is nil for the first row, in
// which case every "up" value is zero.
func unfilterRow(ft FilterType, cur, prev []byte, stride int) {
	switch ft {
	case None:
		// No-op.
	case Sub:
		for i := stride; i < len(cur); i++ {
			cur[i] += cur[i-stride]
		}
	case Up:
		if prev == nil {
			return
		}
		for i, u := range prev {
			cur[i] += u
		}
	case Average:
		if prev == nil {
			for i := stride; i < len(cur); i++ {
				cur[i] += cur[i-stride] / 2
			}
			return
		}
		// The first pixel has no left neighbour.
		for i := 0; i < stride && i < len(cur); i++ {
			cur[i] += prev[i] / 2
		}
		for i := stride; i < len(cur); i++ {
			cur[i] += uint8((int(cur[i-stride]) + int(prev[i])) / 2)
		}
	case Paeth:
		if prev == nil {
			// With up and upLeft both zero the predictor is always left.
			for i := stride; i < len(cur); i++ {
				cur[i] += cur[i-stride]
			}
			return
		}
		for i := 0; i < stride && i < len(cur); i++ {
			cur[i] += prev[i]
		}
		for i := stride; i < len(cur); i++ {
			cur[i] += Predictor(cur[i-stride], prev[i], prev[i-stride])
		}
	}
}
