package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated is returned when a field needs more bytes than remain.
	ErrTruncated = errors.New("truncated")
	// ErrTrailingBytes is returned when bytes remain after the last field
	// of a successful message has been decoded.
	ErrTrailingBytes = errors.New("trailing bytes")
	// ErrChecksum is returned by framing layers when a checksum does not verify.
	ErrChecksum = errors.New("checksum mismatch")
	// ErrFieldNotSet is returned when a required field has no value at encode time.
	ErrFieldNotSet = errors.New("field not set")
	// ErrLengthMismatch is returned when a byte array does not have its declared length.
	ErrLengthMismatch = errors.New("length mismatch")
	// ErrValueRange is returned when a value does not fit its bit width.
	ErrValueRange = errors.New("value out of range")
)

// EncodingError reports a failure to serialize a message.
type EncodingError struct {
	Message string
	Field   string
	Err     error
}

func (e *EncodingError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("encode %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("encode %s.%s: %v", e.Message, e.Field, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// DecodingError reports bytes that could not be turned into a message:
// truncation, trailing data, bad checksums or an unknown message.
type DecodingError struct {
	Message string
	Field   string
	Err     error
}

func (e *DecodingError) Error() string {
	switch {
	case e.Message == "":
		return fmt.Sprintf("decode: %v", e.Err)
	case e.Field == "":
		return fmt.Sprintf("decode %s: %v", e.Message, e.Err)
	default:
		return fmt.Sprintf("decode %s.%s: %v", e.Message, e.Field, e.Err)
	}
}

func (e *DecodingError) Unwrap() error { return e.Err }

// DescriptionError reports a malformed message description. It is only
// produced while building a registry.
type DescriptionError struct {
	Message string
	Reason  string
}

func (e *DescriptionError) Error() string {
	return fmt.Sprintf("invalid description of %s: %s", e.Message, e.Reason)
}

// fieldError ties a leaf failure to the field that produced it; the engine
// turns it into an EncodingError or a DecodingError.
type fieldError struct {
	field string
	err   error
}

func (e *fieldError) Error() string { return e.field + ": " + e.err.Error() }

func (e *fieldError) Unwrap() error { return e.err }

func failField(name string, err error) error {
	return &fieldError{field: name, err: err}
}

func splitFieldError(err error) (string, error) {
	var fe *fieldError
	if errors.As(err, &fe) {
		return fe.field, fe.err
	}
	return "", err
}
