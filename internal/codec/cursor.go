package codec

import "fmt"

// Cursor is a byte sequence that grows at the tail and is consumed from the
// head. Encoders push onto a zero Cursor; decoders pop from one created with
// NewCursor. Multi-byte integers are little-endian.
type Cursor struct {
	buf []byte
	off int
}

// NewCursor returns a cursor over a copy of data.
func NewCursor(data []byte) *Cursor {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Cursor{buf: buf}
}

// Len returns the number of unconsumed bytes.
func (c *Cursor) Len() int {
	return len(c.buf) - c.off
}

// Bytes returns the unconsumed bytes without consuming them.
func (c *Cursor) Bytes() []byte {
	return c.buf[c.off:]
}

// PushUint appends the low width bytes of v, least significant first.
func (c *Cursor) PushUint(v uint64, width int) {
	for i := 0; i < width; i++ {
		c.buf = append(c.buf, byte(v>>(8*i)))
	}
}

// PopUint consumes width bytes and returns them as a little-endian integer.
func (c *Cursor) PopUint(width int) (uint64, error) {
	if width < 1 || width > 8 {
		return 0, fmt.Errorf("invalid integer width %d", width)
	}
	if c.Len() < width {
		return 0, ErrTruncated
	}
	var v uint64
	for i := 0; i < width; i++ {
		v |= uint64(c.buf[c.off+i]) << (8 * i)
	}
	c.off += width
	return v, nil
}

// PushBytes appends b verbatim.
func (c *Cursor) PushBytes(b []byte) {
	c.buf = append(c.buf, b...)
}

// PopBytes consumes exactly n bytes. Zero bytes pop as nil.
func (c *Cursor) PopBytes(n int) ([]byte, error) {
	if n < 0 || c.Len() < n {
		return nil, ErrTruncated
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]byte, n)
	copy(out, c.buf[c.off:c.off+n])
	c.off += n
	return out, nil
}

// PopAll consumes and returns everything that is left, nil when nothing is.
func (c *Cursor) PopAll() []byte {
	out, _ := c.PopBytes(c.Len())
	return out
}
