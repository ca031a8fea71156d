package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_PushPopUint(t *testing.T) {
	c := &Cursor{}
	c.PushUint(0x12, 1)
	c.PushUint(0x3456, 2)
	c.PushUint(0x3a983d, 3)
	c.PushUint(0xdeadbeef, 4)
	assert.Equal(t, []byte{0x12, 0x56, 0x34, 0x3d, 0x98, 0x3a, 0xef, 0xbe, 0xad, 0xde}, c.Bytes())

	d := NewCursor(c.Bytes())
	for _, tc := range []struct {
		width int
		want  uint64
	}{{1, 0x12}, {2, 0x3456}, {3, 0x3a983d}, {4, 0xdeadbeef}} {
		v, err := d.PopUint(tc.width)
		require.NoError(t, err)
		assert.Equal(t, tc.want, v)
	}
	assert.Equal(t, 0, d.Len())
}

func TestCursor_PopUintTruncated(t *testing.T) {
	c := NewCursor([]byte{0x01})
	_, err := c.PopUint(2)
	assert.ErrorIs(t, err, ErrTruncated)
	assert.Equal(t, 1, c.Len(), "failed pop must not consume")
}

func TestCursor_PopBytes(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3, 4})
	b, err := c.PopBytes(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, b)

	_, err = c.PopBytes(2)
	assert.ErrorIs(t, err, ErrTruncated)
	assert.Equal(t, []byte{4}, c.PopAll())
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.PopAll())
}

func TestCursor_PopEmpty(t *testing.T) {
	for _, data := range [][]byte{nil, {}, {0x01}} {
		c := NewCursor(data)
		b, err := c.PopBytes(0)
		require.NoError(t, err)
		assert.Nil(t, b)
		c.PopBytes(c.Len())
		assert.Nil(t, c.PopAll())
	}
}

func TestNewCursor_Copies(t *testing.T) {
	data := []byte{1, 2}
	c := NewCursor(data)
	data[0] = 9
	v, err := c.PopUint(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)
}
