package codec

import (
	"fmt"
	"strings"
)

// GroupExtension identifies the defining body of a group extension message
// (NetFn 0x2C/0x2D). The identifier is the first byte of the request body
// and the byte after the completion code in the response.
type GroupExtension struct {
	ID    uint8
	Valid bool
}

// Group returns a valid group extension with the given identifier.
func Group(id uint8) GroupExtension {
	return GroupExtension{ID: id, Valid: true}
}

func (g GroupExtension) String() string {
	if !g.Valid {
		return "none"
	}
	return fmt.Sprintf("0x%02x", g.ID)
}

// Identity is the static description of a message type.
type Identity struct {
	Name    string
	NetFn   uint8
	Command uint8
	LUN     uint8
	Group   GroupExtension
}

// IsRequest reports whether the identity carries a request NetFn.
func (id Identity) IsRequest() bool { return id.NetFn&0x01 == 0 }

// Message is implemented by every request and response type.
type Message interface {
	Identity() Identity
	Fields() []Field
}

// Encode serializes m by running its fields in order. A response with a
// non-zero completion code encodes as the code alone.
func Encode(m Message) ([]byte, error) {
	c := &Cursor{}
	if _, err := encodeFields(c, m.Fields()); err != nil {
		field, cause := splitFieldError(err)
		return nil, &EncodingError{Message: m.Identity().Name, Field: field, Err: cause}
	}
	return c.Bytes(), nil
}

// Decode fills m from data. Decoding stops early, without error, when a
// completion code is non-zero or an optional tail is absent; any other
// leftover byte is ErrTrailingBytes.
func Decode(m Message, data []byte) error {
	name := m.Identity().Name
	c := NewCursor(data)
	stop, err := decodeFields(c, m.Fields())
	if err != nil {
		field, cause := splitFieldError(err)
		return &DecodingError{Message: name, Field: field, Err: cause}
	}
	if !stop && c.Len() > 0 {
		return &DecodingError{Message: name, Err: fmt.Errorf("%w: %d left", ErrTrailingBytes, c.Len())}
	}
	return nil
}

// Validate checks the static description of m: the Req/Rsp name suffix,
// the NetFn direction bit, the position of completion code and remaining
// bytes fields, and bitfield widths.
func Validate(m Message) error {
	id := m.Identity()
	fail := func(format string, args ...any) error {
		return &DescriptionError{Message: id.Name, Reason: fmt.Sprintf(format, args...)}
	}

	switch {
	case strings.HasSuffix(id.Name, "Req"):
		if !id.IsRequest() {
			return fail("request has response netfn 0x%02x", id.NetFn)
		}
	case strings.HasSuffix(id.Name, "Rsp"):
		if id.IsRequest() {
			return fail("response has request netfn 0x%02x", id.NetFn)
		}
	default:
		return fail("name must end in Req or Rsp")
	}
	if id.NetFn > 0x3F {
		return fail("netfn 0x%02x exceeds 6 bits", id.NetFn)
	}
	if id.LUN > 0x03 {
		return fail("lun %d exceeds 2 bits", id.LUN)
	}

	fields := m.Fields()
	if !id.IsRequest() {
		if len(fields) == 0 {
			return fail("response has no fields")
		}
		if _, ok := fields[0].(*completionField); !ok {
			return fail("response must start with a completion code")
		}
	}
	if err := checkFields(fields, true); err != nil {
		return fail("%v", err)
	}
	return nil
}
