// Package ipmb implements IPMB message framing: the dual checksummed
// header, response matching and SendMessage bridging.
package ipmb

import (
	"errors"
	"fmt"

	"github.com/tjst-t/go-ipmi/internal/codec"
)

// Well-known IPMB addresses
const (
	BMCAddress            = 0x20
	RemoteConsoleAddress  = 0x81
	SystemSoftwareAddress = 0x41
)

// ErrUnexpectedResponse means a well-formed frame arrived that does not
// answer the outstanding request.
var ErrUnexpectedResponse = errors.New("response does not match request")

// minFrame is the header (6 bytes) plus the trailing checksum.
const minFrame = 7

// Checksum returns the two's complement checksum of data, so that data
// plus the checksum sums to zero modulo 256.
func Checksum(data ...uint8) uint8 {
	var sum uint8
	for _, b := range data {
		sum += b
	}
	return -sum
}

// RequestHeader is the IPMB request header:
// [rsSA][netFn<<2|rsLUN][chk1][rqSA][rqSeq<<2|rqLUN][cmd]
type RequestHeader struct {
	ResponderAddress uint8
	NetFn            uint8
	ResponderLUN     uint8
	RequesterAddress uint8
	Sequence         uint8
	RequesterLUN     uint8
	Command          uint8
}

// ResponseHeader is the IPMB response header:
// [rqSA][netFn<<2|rqLUN][chk1][rsSA][rqSeq<<2|rsLUN][cmd]
type ResponseHeader struct {
	RequesterAddress uint8
	NetFn            uint8
	RequesterLUN     uint8
	ResponderAddress uint8
	Sequence         uint8
	ResponderLUN     uint8
	Command          uint8
}

// Response returns the header a responder uses to answer h.
func (h RequestHeader) Response() ResponseHeader {
	return ResponseHeader{
		RequesterAddress: h.RequesterAddress,
		NetFn:            h.NetFn | 0x01,
		RequesterLUN:     h.RequesterLUN,
		ResponderAddress: h.ResponderAddress,
		Sequence:         h.Sequence,
		ResponderLUN:     h.ResponderLUN,
		Command:          h.Command,
	}
}

func frame(addr1, netFn, lun1, addr2, seq, lun2, cmd uint8, data []byte) []byte {
	out := make([]byte, 0, minFrame+len(data))
	out = append(out, addr1, netFn<<2|lun1&0x03)
	out = append(out, Checksum(out...))
	out = append(out, addr2, seq<<2|lun2&0x03, cmd)
	out = append(out, data...)
	return append(out, Checksum(out[3:]...))
}

// EncodeRequest frames data behind h.
func EncodeRequest(h RequestHeader, data []byte) []byte {
	return frame(h.ResponderAddress, h.NetFn, h.ResponderLUN, h.RequesterAddress, h.Sequence, h.RequesterLUN, h.Command, data)
}

// EncodeResponse frames data, which starts with the completion code, behind h.
func EncodeResponse(h ResponseHeader, data []byte) []byte {
	return frame(h.RequesterAddress, h.NetFn, h.RequesterLUN, h.ResponderAddress, h.Sequence, h.ResponderLUN, h.Command, data)
}

// Verify checks the length and both checksums of a frame.
func Verify(f []byte) error {
	if len(f) < minFrame {
		return &codec.DecodingError{Message: "ipmb", Err: fmt.Errorf("%w: frame of %d bytes", codec.ErrTruncated, len(f))}
	}
	if Checksum(f[:2]...) != f[2] {
		return &codec.DecodingError{Message: "ipmb", Field: "header_checksum", Err: codec.ErrChecksum}
	}
	if Checksum(f[3:len(f)-1]...) != f[len(f)-1] {
		return &codec.DecodingError{Message: "ipmb", Field: "data_checksum", Err: codec.ErrChecksum}
	}
	return nil
}

// DecodeRequest verifies f and splits it into header and request data.
func DecodeRequest(f []byte) (RequestHeader, []byte, error) {
	if err := Verify(f); err != nil {
		return RequestHeader{}, nil, err
	}
	h := RequestHeader{
		ResponderAddress: f[0],
		NetFn:            f[1] >> 2,
		ResponderLUN:     f[1] & 0x03,
		RequesterAddress: f[3],
		Sequence:         f[4] >> 2,
		RequesterLUN:     f[4] & 0x03,
		Command:          f[5],
	}
	return h, body(f), nil
}

// DecodeResponse verifies f and splits it into header and response data.
func DecodeResponse(f []byte) (ResponseHeader, []byte, error) {
	if err := Verify(f); err != nil {
		return ResponseHeader{}, nil, err
	}
	h := ResponseHeader{
		RequesterAddress: f[0],
		NetFn:            f[1] >> 2,
		RequesterLUN:     f[1] & 0x03,
		ResponderAddress: f[3],
		Sequence:         f[4] >> 2,
		ResponderLUN:     f[4] & 0x03,
		Command:          f[5],
	}
	return h, body(f), nil
}

func body(f []byte) []byte {
	out := make([]byte, len(f)-minFrame)
	copy(out, f[6:len(f)-1])
	return out
}

// Match checks that f answers the request sent with header req and returns
// the response data, completion code first. A checksum failure is a
// *codec.DecodingError; a valid frame for some other request is
// ErrUnexpectedResponse.
func Match(req RequestHeader, f []byte) ([]byte, error) {
	rsp, data, err := DecodeResponse(f)
	if err != nil {
		return nil, err
	}
	switch {
	case rsp.NetFn != req.NetFn|0x01:
		return nil, fmt.Errorf("%w: netfn 0x%02x, want 0x%02x", ErrUnexpectedResponse, rsp.NetFn, req.NetFn|0x01)
	case rsp.ResponderLUN != req.ResponderLUN:
		return nil, fmt.Errorf("%w: lun %d, want %d", ErrUnexpectedResponse, rsp.ResponderLUN, req.ResponderLUN)
	case rsp.Sequence != req.Sequence:
		return nil, fmt.Errorf("%w: sequence %d, want %d", ErrUnexpectedResponse, rsp.Sequence, req.Sequence)
	case rsp.Command != req.Command:
		return nil, fmt.Errorf("%w: command 0x%02x, want 0x%02x", ErrUnexpectedResponse, rsp.Command, req.Command)
	}
	if len(data) == 0 {
		return nil, &codec.DecodingError{Message: "ipmb", Field: "completion_code", Err: codec.ErrTruncated}
	}
	return data, nil
}
