package rmcp

import (
	"encoding/binary"
	"fmt"

	"github.com/tjst-t/go-ipmi/internal/codec"
	"github.com/tjst-t/go-ipmi/internal/msg"
)

const authCodeSize = 16

// SessionHeader is the IPMI v1.5 session wrapper:
// [auth_type][sequence:4][session_id:4][auth_code:16 if auth_type != none][length]
type SessionHeader struct {
	AuthType  msg.AuthType
	Sequence  uint32
	SessionID uint32
	AuthCode  []byte
}

// EncodeSession prefixes payload with the session wrapper h.
func EncodeSession(h SessionHeader, payload []byte) ([]byte, error) {
	if len(payload) > 0xFF {
		return nil, &codec.EncodingError{Message: "session", Field: "length", Err: codec.ErrValueRange}
	}
	out := make([]byte, 9, 10+authCodeSize+len(payload))
	out[0] = uint8(h.AuthType)
	binary.LittleEndian.PutUint32(out[1:5], h.Sequence)
	binary.LittleEndian.PutUint32(out[5:9], h.SessionID)
	if h.AuthType != msg.AuthTypeNone {
		if len(h.AuthCode) != authCodeSize {
			return nil, &codec.EncodingError{Message: "session", Field: "auth_code", Err: codec.ErrLengthMismatch}
		}
		out = append(out, h.AuthCode...)
	}
	out = append(out, uint8(len(payload)))
	return append(out, payload...), nil
}

// DecodeSession splits a session wrapper from its payload.
func DecodeSession(data []byte) (SessionHeader, []byte, error) {
	fail := func(field string, err error) (SessionHeader, []byte, error) {
		return SessionHeader{}, nil, &codec.DecodingError{Message: "session", Field: field, Err: err}
	}
	if len(data) < 10 {
		return fail("header", codec.ErrTruncated)
	}
	h := SessionHeader{
		AuthType:  msg.AuthType(data[0]),
		Sequence:  binary.LittleEndian.Uint32(data[1:5]),
		SessionID: binary.LittleEndian.Uint32(data[5:9]),
	}
	if h.AuthType == msg.AuthTypeRMCPPlus {
		return fail("auth_type", fmt.Errorf("%w: %s", ErrUnsupportedAuthType, h.AuthType))
	}
	rest := data[9:]
	if h.AuthType != msg.AuthTypeNone {
		if len(rest) < authCodeSize+1 {
			return fail("auth_code", codec.ErrTruncated)
		}
		h.AuthCode = append([]byte(nil), rest[:authCodeSize]...)
		rest = rest[authCodeSize:]
	}
	n := int(rest[0])
	rest = rest[1:]
	switch {
	case len(rest) < n:
		return fail("payload", codec.ErrTruncated)
	case len(rest) > n:
		return fail("payload", codec.ErrTrailingBytes)
	}
	return h, append([]byte(nil), rest...), nil
}
