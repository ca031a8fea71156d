package rmcp

import (
	"testing"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePing(t *testing.T) {
	data, err := EncodePing(0x2a)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x06, 0x00, 0xff, 0x06, // RMCP
		0x00, 0x00, 0x11, 0xbe, 0x80, 0x2a, 0x00, 0x00, // ASF presence ping
	}, data)

	tag, err := DecodePing(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x2a), tag)
}

func TestPong_RoundTrip(t *testing.T) {
	data, err := EncodePong(7)
	require.NoError(t, err)
	require.Len(t, data, 4+8+16)
	assert.Equal(t, uint8(0x10), data[11], "ASF length covers the pong body")

	tag, pong, err := DecodePong(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(7), tag)
	assert.True(t, pong.IPMI)
	assert.Equal(t, asfEnterprise, pong.Enterprise)
}

func TestDecodePong_RejectsPing(t *testing.T) {
	data, err := EncodePing(1)
	require.NoError(t, err)
	_, _, err = DecodePong(data)
	assert.ErrorIs(t, err, ErrNotPresencePong)
}

func TestIPMI_RoundTrip(t *testing.T) {
	data, err := EncodeIPMI([]byte{0x00, 0x01})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x06, 0x00, 0xff, 0x07, 0x00, 0x01}, data)

	r, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, layers.RMCPClassIPMI, r.Class)

	payload, err := DecodeIPMI(data)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01}, payload)
}

func TestDecodeIPMI_WrongClass(t *testing.T) {
	data, err := EncodePing(1)
	require.NoError(t, err)
	_, err = DecodeIPMI(data)
	assert.ErrorIs(t, err, ErrUnexpectedClass)
}

func TestDecode_Truncated(t *testing.T) {
	_, err := Decode([]byte{0x06, 0x00})
	assert.Error(t, err)
}
