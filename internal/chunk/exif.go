package chunk

import (
	"encoding/binary"

	"png.adpollak.net/internal/binread"
	"png.adpollak.net/internal/logging"
	"png.adpollak.net/internal/oops"
)

type ByteOrder uint8

const (
	Motorola ByteOrder = iota + 1 // "MM", big-endian
	Intel                         // "II", little-endian
)

func (b ByteOrder) String() string {
	switch b {
	case Motorola:
		return "MM"
	case Intel:
		return "II"
	}
	return "??"
}

func (b ByteOrder) binary() binary.ByteOrder {
	if b == Intel {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// IFDEntry is one 12-byte directory entry. Value holds either the value
// itself or an offset to it, depending on Type and Count.
type IFDEntry struct {
	Tag   uint16
	Type  uint16
	Count uint32
	Value [4]byte
}

type IFD struct {
	Offset  uint32
	Entries []IFDEntry
}

type Exif struct {
	ByteOrder ByteOrder
	IFDs      []IFD
}

const (
	exifMagic     = 42
	ifdEntrySize  = 12
	exifHeaderLen = 8
)

// DecodeExif walks the chain of image file directories in an eXIf chunk.
// Offsets are relative to the start of the chunk data. Every offset is
// bounds-checked and a directory may only be visited once.
func DecodeExif(c Chunk) (*Exif, error) {
	if len(c.Data) < exifHeaderLen {
		return nil, oops.Format(oops.ErrTruncated, "eXIf header is %d bytes", len(c.Data))
	}

	var order ByteOrder
	switch string(c.Data[:2]) {
	case "MM":
		order = Motorola
	case "II":
		order = Intel
	default:
		return nil, oops.Format(oops.ErrUnknownCode, "eXIf byte order %q", c.Data[:2])
	}

	cur := binread.NewCursor(c.Data)
	cur.Order = order.binary()
	_ = cur.Seek(2)
	magic, _ := cur.Uint16()
	if magic != exifMagic {
		logging.Debug().Uint16("magic", magic).Msg("eXIf header has a non-TIFF magic number")
	}
	offset, _ := cur.Uint32()

	exif := &Exif{ByteOrder: order}
	visited := make(map[uint32]bool)
	for offset != 0 {
		if visited[offset] {
			return nil, oops.Format(nil, "eXIf directory offset %d loops", offset)
		}
		visited[offset] = true

		ifd, next, err := readIFD(cur, offset)
		if err != nil {
			return nil, err
		}
		exif.IFDs = append(exif.IFDs, ifd)
		offset = next
	}
	return exif, nil
}

func readIFD(cur *binread.Cursor, offset uint32) (IFD, uint32, error) {
	if uint64(offset) > uint64(maxInt) || cur.Seek(int(offset)) != nil {
		return IFD{}, 0, oops.Format(oops.ErrTruncated, "eXIf directory offset %d out of range", offset)
	}
	count, err := cur.Uint16()
	if err != nil {
		return IFD{}, 0, oops.Format(oops.ErrTruncated, "eXIf directory at %d: entry count", offset)
	}
	if cur.Len() < int(count)*ifdEntrySize+4 {
		return IFD{}, 0, oops.Format(oops.ErrTruncated,
			"eXIf directory at %d: %d entries need %d bytes, %d remain", offset, count, int(count)*ifdEntrySize+4, cur.Len())
	}

	ifd := IFD{Offset: offset, Entries: make([]IFDEntry, 0, count)}
	for i := 0; i < int(count); i++ {
		var e IFDEntry
		e.Tag, _ = cur.Uint16()
		e.Type, _ = cur.Uint16()
		e.Count, _ = cur.Uint32()
		v, _ := cur.Bytes(4)
		copy(e.Value[:], v)
		ifd.Entries = append(ifd.Entries, e)
	}
	next, _ := cur.Uint32()
	return ifd, next, nil
}
