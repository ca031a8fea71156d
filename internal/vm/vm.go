// Package vm implements the OpenIPMI VM serial protocol spoken between a
// virtual machine's system interface and an external BMC.
package vm

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/tjst-t/go-ipmi/internal/codec"
	"github.com/tjst-t/go-ipmi/internal/ipmb"
)

// Framing characters
const (
	MsgChar    = 0xA0
	CmdChar    = 0xA1
	EscapeChar = 0xAA
)

// Control commands
const (
	CmdNoAttn           = 0x00
	CmdAttn             = 0x01
	CmdAttnIRQ          = 0x02
	CmdPowerOff         = 0x03
	CmdReset            = 0x04
	CmdEnableIRQ        = 0x05
	CmdDisableIRQ       = 0x06
	CmdSendNMI          = 0x07
	CmdCapabilities     = 0x08
	CmdGracefulShutdown = 0x09
	CmdVersion          = 0xFF
)

// ProtocolVersion is the version announced by CmdVersion.
const ProtocolVersion = 0x01

// Capability flags
const (
	CapPower            = 0x01
	CapReset            = 0x02
	CapIRQ              = 0x04
	CapNMI              = 0x08
	CapAttn             = 0x10
	CapGracefulShutdown = 0x20
)

// ErrTrailingEscape is returned for data that ends in an escape byte.
var ErrTrailingEscape = errors.New("trailing escape byte")

// Escape replaces each framing character b with EscapeChar, b|0x10.
func Escape(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		if b == MsgChar || b == CmdChar || b == EscapeChar {
			out = append(out, EscapeChar, b|0x10)
		} else {
			out = append(out, b)
		}
	}
	return out
}

// Unescape reverses Escape.
func Unescape(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != EscapeChar {
			out = append(out, data[i])
			continue
		}
		i++
		if i >= len(data) {
			return nil, ErrTrailingEscape
		}
		out = append(out, data[i]&^0x10)
	}
	return out, nil
}

// Message is an IPMI message on the VM channel. Responses carry the
// completion code as the first data byte.
type Message struct {
	Seq   uint8
	NetFn uint8
	LUN   uint8
	Cmd   uint8
	Data  []byte
}

// IsResponse reports whether m carries an odd (response) netfn.
func (m Message) IsResponse() bool { return m.NetFn&0x01 != 0 }

// Response returns the response header for m with data appended.
func (m Message) Response(data []byte) Message {
	return Message{Seq: m.Seq, NetFn: m.NetFn | 0x01, LUN: m.LUN, Cmd: m.Cmd, Data: data}
}

// Frame returns m as [seq][netfn<<2|lun][cmd][data...][checksum], escaped
// and terminated with MsgChar.
func (m Message) Frame() []byte {
	raw := make([]byte, 0, 4+len(m.Data))
	raw = append(raw, m.Seq, m.NetFn<<2|m.LUN&0x03, m.Cmd)
	raw = append(raw, m.Data...)
	raw = append(raw, ipmb.Checksum(raw...))
	return append(Escape(raw), MsgChar)
}

// ParseMessage decodes an unescaped message frame.
func ParseMessage(data []byte) (Message, error) {
	if len(data) < 4 {
		return Message{}, &codec.DecodingError{Message: "vm", Err: fmt.Errorf("%w: %d bytes, minimum 4", codec.ErrTruncated, len(data))}
	}
	if ipmb.Checksum(data...) != 0 {
		return Message{}, &codec.DecodingError{Message: "vm", Field: "checksum", Err: codec.ErrChecksum}
	}
	m := Message{
		Seq:   data[0],
		NetFn: data[1] >> 2,
		LUN:   data[1] & 0x03,
		Cmd:   data[2],
	}
	if len(data) > 4 {
		m.Data = append([]byte(nil), data[3:len(data)-1]...)
	}
	return m, nil
}

// ControlFrame returns a control command with optional data, escaped and
// terminated with CmdChar.
func ControlFrame(cmd uint8, data ...byte) []byte {
	raw := append([]byte{cmd}, data...)
	return append(Escape(raw), CmdChar)
}

// ParseControl splits an unescaped control frame into command and data.
func ParseControl(data []byte) (uint8, []byte, error) {
	if len(data) == 0 {
		return 0, nil, &codec.DecodingError{Message: "vm control", Err: codec.ErrTruncated}
	}
	return data[0], data[1:], nil
}

// Reader reads frames from a VM protocol stream. Bytes of a frame cut
// short by a read error are kept and completed by the next call, so a read
// deadline can interrupt ReadFrame safely.
type Reader struct {
	r   *bufio.Reader
	buf []byte
}

// NewReader returns a Reader on r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadFrame returns the terminator of the next frame (MsgChar or CmdChar)
// and its unescaped contents.
func (r *Reader) ReadFrame() (byte, []byte, error) {
	for {
		b, err := r.r.ReadByte()
		if err != nil {
			return 0, nil, err
		}
		if b != MsgChar && b != CmdChar {
			r.buf = append(r.buf, b)
			continue
		}
		raw := r.buf
		r.buf = nil
		data, err := Unescape(raw)
		if err != nil {
			return 0, nil, fmt.Errorf("vm unescape: %w", err)
		}
		return b, data, nil
	}
}
