package chunk

import (
	"fmt"
	"time"

	"png.adpollak.net/internal/binread"
	"png.adpollak.net/internal/oops"
)

type PaletteEntry struct {
	R, G, B uint8
}

type Palette []PaletteEntry

// DecodePalette splits PLTE data into 3-byte entries.
func DecodePalette(c Chunk) (Palette, error) {
	if len(c.Data) == 0 || len(c.Data)%3 != 0 {
		return nil, oops.Format(nil, "PLTE length %d is not a positive multiple of 3", len(c.Data))
	}
	if len(c.Data)/3 > 256 {
		return nil, oops.Format(nil, "PLTE has %d entries, max is 256", len(c.Data)/3)
	}
	palette := make(Palette, 0, len(c.Data)/3)
	for i := 0; i < len(c.Data); i += 3 {
		palette = append(palette, PaletteEntry{R: c.Data[i], G: c.Data[i+1], B: c.Data[i+2]})
	}
	return palette, nil
}

type Gamma struct {
	Raw   uint32  // Encoded as a four-byte unsigned integer, representing Gamma * 100000
	Value float64 // Raw / 100000
}

func DecodeGamma(c Chunk) (*Gamma, error) {
	if len(c.Data) != 4 {
		return nil, oops.Format(nil, "gAMA length must be 4 bytes; got: %d", len(c.Data))
	}
	raw, _ := binread.Uint32BE(c.Data)
	return &Gamma{Raw: raw, Value: float64(raw) / 100_000.0}, nil
}

// Chromaticities holds cHRM values, each scaled by 100000.
type Chromaticities struct {
	WhiteX, WhiteY uint32
	RedX, RedY     uint32
	GreenX, GreenY uint32
	BlueX, BlueY   uint32
}

func DecodeChromaticities(c Chunk) (*Chromaticities, error) {
	if len(c.Data) != 32 {
		return nil, oops.Format(nil, "cHRM length must be 32 bytes; got: %d", len(c.Data))
	}
	cur := binread.NewCursor(c.Data)
	var ch Chromaticities
	for _, field := range []*uint32{
		&ch.WhiteX, &ch.WhiteY, &ch.RedX, &ch.RedY,
		&ch.GreenX, &ch.GreenY, &ch.BlueX, &ch.BlueY,
	} {
		*field, _ = cur.Uint32()
	}
	return &ch, nil
}

// Float converts a scaled cHRM value to its real value.
func (ch *Chromaticities) Float(v uint32) float64 {
	return float64(v) / 100_000.0
}

type PixelUnit uint8

const (
	UnitUnknown PixelUnit = 0
	UnitMeter   PixelUnit = 1
)

func PixelUnitFromRaw(b byte) (PixelUnit, error) {
	switch u := PixelUnit(b); u {
	case UnitUnknown, UnitMeter:
		return u, nil
	}
	return 0, oops.Format(oops.ErrUnknownCode, "pixel unit %d", b)
}

func (u PixelUnit) String() string {
	switch u {
	case UnitUnknown:
		return "unknown"
	case UnitMeter:
		return "meter"
	}
	return fmt.Sprintf("PixelUnit(%d)", uint8(u))
}

type Physical struct {
	PixelsPerUnitX uint32
	PixelsPerUnitY uint32
	Unit           PixelUnit
}

func DecodePhysical(c Chunk) (*Physical, error) {
	if len(c.Data) != 9 {
		return nil, oops.Format(nil, "pHYs length must be 9 bytes; got: %d", len(c.Data))
	}
	cur := binread.NewCursor(c.Data)
	x, _ := cur.Uint32()
	y, _ := cur.Uint32()
	rawUnit, _ := cur.Uint8()
	unit, err := PixelUnitFromRaw(rawUnit)
	if err != nil {
		return nil, err
	}
	return &Physical{PixelsPerUnitX: x, PixelsPerUnitY: y, Unit: unit}, nil
}

type RenderingIntent uint8

const (
	Perceptual           RenderingIntent = 0
	RelativeColorimetric RenderingIntent = 1
	Saturation           RenderingIntent = 2
	AbsoluteColorimetric RenderingIntent = 3
)

func RenderingIntentFromRaw(b byte) (RenderingIntent, error) {
	if b > uint8(AbsoluteColorimetric) {
		return 0, oops.Format(oops.ErrUnknownCode, "rendering intent %d", b)
	}
	return RenderingIntent(b), nil
}

func (r RenderingIntent) String() string {
	switch r {
	case Perceptual:
		return "perceptual"
	case RelativeColorimetric:
		return "relative colorimetric"
	case Saturation:
		return "saturation"
	case AbsoluteColorimetric:
		return "absolute colorimetric"
	}
	return fmt.Sprintf("RenderingIntent(%d)", uint8(r))
}

type SRGB struct {
	Intent RenderingIntent
}

func DecodeSRGB(c Chunk) (*SRGB, error) {
	if len(c.Data) != 1 {
		return nil, oops.Format(nil, "sRGB length must be 1 byte; got: %d", len(c.Data))
	}
	intent, err := RenderingIntentFromRaw(c.Data[0])
	if err != nil {
		return nil, err
	}
	return &SRGB{Intent: intent}, nil
}

// LastModified is the tIME chunk, always in UTC.
type LastModified struct {
	Year   uint16
	Month  uint8
	Day    uint8
	Hour   uint8
	Minute uint8
	Second uint8
}

func DecodeTime(c Chunk) (*LastModified, error) {
	if len(c.Data) != 7 {
		return nil, oops.Format(nil, "tIME length must be 7 bytes; got: %d", len(c.Data))
	}
	year, _ := binread.Uint16BE(c.Data)
	t := &LastModified{
		Year:   year,
		Month:  c.Data[2],
		Day:    c.Data[3],
		Hour:   c.Data[4],
		Minute: c.Data[5],
		Second: c.Data[6],
	}
	switch {
	case t.Month < 1 || t.Month > 12:
		return nil, oops.Format(nil, "tIME month %d out of range", t.Month)
	case t.Day < 1 || t.Day > 31:
		return nil, oops.Format(nil, "tIME day %d out of range", t.Day)
	case t.Hour > 23:
		return nil, oops.Format(nil, "tIME hour %d out of range", t.Hour)
	case t.Minute > 59:
		return nil, oops.Format(nil, "tIME minute %d out of range", t.Minute)
	case t.Second > 60: // leap second
		return nil, oops.Format(nil, "tIME second %d out of range", t.Second)
	}
	return t, nil
}

func (t *LastModified) Time() time.Time {
	return time.Date(int(t.Year), time.Month(t.Month), int(t.Day), int(t.Hour), int(t.Minute), int(t.Second), 0, time.UTC)
}

// Histogram is the hIST chunk: one frequency per palette entry.
type Histogram []uint16

func DecodeHistogram(c Chunk) (Histogram, error) {
	if len(c.Data)%2 != 0 {
		return nil, oops.Format(nil, "hIST length %d is odd", len(c.Data))
	}
	cur := binread.NewCursor(c.Data)
	hist := make(Histogram, 0, len(c.Data)/2)
	for cur.Len() > 0 {
		v, _ := cur.Uint16()
		hist = append(hist, v)
	}
	return hist, nil
}

type SuggestedPaletteEntry struct {
	Red, Green, Blue, Alpha uint16
	Frequency               uint16
}

// SuggestedPalette is the sPLT chunk. Samples are widened to 16 bits
// regardless of SampleDepth.
type SuggestedPalette struct {
	Name        string
	SampleDepth uint8
	Entries     []SuggestedPaletteEntry
}

func DecodeSuggestedPalette(c Chunk) (*SuggestedPalette, error) {
	cur := binread.NewCursor(c.Data)
	name, err := readKeyword(cur, "sPLT")
	if err != nil {
		return nil, err
	}
	depth, err := cur.Uint8()
	if err != nil {
		return nil, oops.Format(oops.ErrTruncated, "sPLT sample depth")
	}

	var entrySize int
	switch depth {
	case 8:
		entrySize = 6
	case 16:
		entrySize = 10
	default:
		return nil, oops.Format(oops.ErrUnknownCode, "sPLT sample depth %d", depth)
	}
	if cur.Len()%entrySize != 0 {
		return nil, oops.Format(nil, "sPLT entries length %d is not a multiple of %d", cur.Len(), entrySize)
	}

	sp := &SuggestedPalette{Name: name, SampleDepth: depth}
	for cur.Len() > 0 {
		var e SuggestedPaletteEntry
		if depth == 8 {
			b, _ := cur.Bytes(4)
			e.Red, e.Green, e.Blue, e.Alpha = uint16(b[0]), uint16(b[1]), uint16(b[2]), uint16(b[3])
		} else {
			e.Red, _ = cur.Uint16()
			e.Green, _ = cur.Uint16()
			e.Blue, _ = cur.Uint16()
			e.Alpha, _ = cur.Uint16()
		}
		e.Frequency, _ = cur.Uint16()
		sp.Entries = append(sp.Entries, e)
	}
	return sp, nil
}
