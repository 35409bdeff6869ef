// Package binread provides bounds-checked primitive reads over byte slices.
// Every read either returns the requested value or ErrShortBuffer; nothing
// slices past the end of the input.
package binread

import (
	"bytes"
	"encoding/binary"
	"errors"
)

var (
	ErrShortBuffer = errors.New("read past end of buffer")
	ErrNoNull      = errors.New("missing null terminator")
)

// Cursor consumes a byte slice front to back. Order defaults to big-endian,
// which is what every PNG field uses; EXIF data may switch it.
type Cursor struct {
	buf   []byte
	off   int
	Order binary.ByteOrder
}

func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf, Order: binary.BigEndian}
}

// Len is the number of unread bytes.
func (c *Cursor) Len() int {
	return len(c.buf) - c.off
}

func (c *Cursor) Offset() int {
	return c.off
}

// Seek moves to an absolute offset. Seeking to len(buf) is allowed and
// leaves nothing to read.
func (c *Cursor) Seek(off int) error {
	if off < 0 || off > len(c.buf) {
		return ErrShortBuffer
	}
	c.off = off
	return nil
}

func (c *Cursor) Bytes(n int) ([]byte, error) {
	if n < 0 || n > c.Len() {
		return nil, ErrShortBuffer
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b, nil
}

func (c *Cursor) Uint8() (uint8, error) {
	if c.Len() < 1 {
		return 0, ErrShortBuffer
	}
	v := c.buf[c.off]
	c.off++
	return v, nil
}

func (c *Cursor) Uint16() (uint16, error) {
	b, err := c.Bytes(2)
	if err != nil {
		return 0, err
	}
	return c.Order.Uint16(b), nil
}

func (c *Cursor) Uint32() (uint32, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return 0, err
	}
	return c.Order.Uint32(b), nil
}

// NullTerminated returns the bytes up to the next null and consumes the null
// as well. The returned slice does not include the terminator.
func (c *Cursor) NullTerminated() ([]byte, error) {
	rest := c.buf[c.off:]
	i := bytes.IndexByte(rest, 0)
	if i < 0 {
		return nil, ErrNoNull
	}
	c.off += i + 1
	return rest[:i], nil
}

// Rest consumes and returns everything left.
func (c *Cursor) Rest() []byte {
	b := c.buf[c.off:]
	c.off = len(c.buf)
	return b
}

func Uint32BE(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, ErrShortBuffer
	}
	return binary.BigEndian.Uint32(b), nil
}

func Uint16BE(b []byte) (uint16, error) {
	if len(b) < 2 {
		return 0, ErrShortBuffer
	}
	return binary.BigEndian.Uint16(b), nil
}
