package codec

import (
	"bytes"
	"fmt"
)

// Field is one entry of a message description. Fields are bound to the
// storage of a message instance, so a message builds its field list on each
// call to Fields.
//
// encode and decode report stop=true when the rest of the message must be
// skipped: a non-zero completion code, or an absent optional tail.
type Field interface {
	Name() string
	encode(c *Cursor) (stop bool, err error)
	decode(c *Cursor) (stop bool, err error)
	check(last bool) error
}

// Unsigned is the set of integer types a fixed-width field can bind to.
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

type uintField[T Unsigned] struct {
	name  string
	width int
	p     *T
}

// Uint binds a little-endian unsigned integer of width bytes.
func Uint[T Unsigned](name string, p *T, width int) Field {
	return &uintField[T]{name: name, width: width, p: p}
}

func U8(name string, p *uint8) Field   { return Uint(name, p, 1) }
func U16(name string, p *uint16) Field { return Uint(name, p, 2) }
func U24(name string, p *uint32) Field { return Uint(name, p, 3) }
func U32(name string, p *uint32) Field { return Uint(name, p, 4) }

func (f *uintField[T]) Name() string { return f.name }

func (f *uintField[T]) encode(c *Cursor) (bool, error) {
	v := uint64(*f.p)
	if f.width < 8 && v>>(8*f.width) != 0 {
		return false, failField(f.name, ErrValueRange)
	}
	c.PushUint(v, f.width)
	return false, nil
}

func (f *uintField[T]) decode(c *Cursor) (bool, error) {
	v, err := c.PopUint(f.width)
	if err != nil {
		return false, failField(f.name, err)
	}
	*f.p = T(v)
	return false, nil
}

func (f *uintField[T]) check(bool) error {
	if f.width < 1 || f.width > 8 {
		return fmt.Errorf("field %s: invalid width %d", f.name, f.width)
	}
	return nil
}

type bytesField struct {
	name string
	n    int
	p    *[]byte
}

// Bytes binds a byte array of exactly n bytes.
func Bytes(name string, p *[]byte, n int) Field {
	return &bytesField{name: name, n: n, p: p}
}

func (f *bytesField) Name() string { return f.name }

func (f *bytesField) encode(c *Cursor) (bool, error) {
	if *f.p == nil {
		return false, failField(f.name, ErrFieldNotSet)
	}
	if len(*f.p) != f.n {
		return false, failField(f.name, fmt.Errorf("%w: have %d bytes, want %d", ErrLengthMismatch, len(*f.p), f.n))
	}
	c.PushBytes(*f.p)
	return false, nil
}

func (f *bytesField) decode(c *Cursor) (bool, error) {
	b, err := c.PopBytes(f.n)
	if err != nil {
		return false, failField(f.name, err)
	}
	*f.p = b
	return false, nil
}

func (f *bytesField) check(bool) error {
	if f.n < 0 {
		return fmt.Errorf("field %s: negative length", f.name)
	}
	return nil
}

type varBytesField struct {
	name   string
	length func() int
	p      *[]byte
}

// VarBytes binds a byte array whose length is given by an earlier field.
// length is evaluated when the field is reached, so it sees siblings that
// have already been decoded.
func VarBytes(name string, p *[]byte, length func() int) Field {
	return &varBytesField{name: name, length: length, p: p}
}

func (f *varBytesField) Name() string { return f.name }

func (f *varBytesField) encode(c *Cursor) (bool, error) {
	n := f.length()
	if *f.p == nil && n > 0 {
		return false, failField(f.name, ErrFieldNotSet)
	}
	if len(*f.p) != n {
		return false, failField(f.name, fmt.Errorf("%w: have %d bytes, want %d", ErrLengthMismatch, len(*f.p), n))
	}
	c.PushBytes(*f.p)
	return false, nil
}

func (f *varBytesField) decode(c *Cursor) (bool, error) {
	b, err := c.PopBytes(f.length())
	if err != nil {
		return false, failField(f.name, err)
	}
	*f.p = b
	return false, nil
}

func (f *varBytesField) check(bool) error {
	if f.length == nil {
		return fmt.Errorf("field %s: missing length function", f.name)
	}
	return nil
}

type remainingField struct {
	name string
	p    *[]byte
}

// Remaining binds everything left in the message. It must be the last field.
func Remaining(name string, p *[]byte) Field {
	return &remainingField{name: name, p: p}
}

func (f *remainingField) Name() string { return f.name }

func (f *remainingField) encode(c *Cursor) (bool, error) {
	c.PushBytes(*f.p)
	return false, nil
}

func (f *remainingField) decode(c *Cursor) (bool, error) {
	*f.p = c.PopAll()
	return false, nil
}

func (f *remainingField) check(last bool) error {
	if !last {
		return fmt.Errorf("field %s: remaining bytes must be the last field", f.name)
	}
	return nil
}

type stringField struct {
	name string
	n    int
	p    *string
}

// String binds a fixed-size character field, NUL padded on the wire.
func String(name string, p *string, n int) Field {
	return &stringField{name: name, n: n, p: p}
}

func (f *stringField) Name() string { return f.name }

func (f *stringField) encode(c *Cursor) (bool, error) {
	if len(*f.p) > f.n {
		return false, failField(f.name, fmt.Errorf("%w: %d characters exceed %d", ErrLengthMismatch, len(*f.p), f.n))
	}
	b := make([]byte, f.n)
	copy(b, *f.p)
	c.PushBytes(b)
	return false, nil
}

func (f *stringField) decode(c *Cursor) (bool, error) {
	b, err := c.PopBytes(f.n)
	if err != nil {
		return false, failField(f.name, err)
	}
	*f.p = string(bytes.TrimRight(b, "\x00"))
	return false, nil
}

func (f *stringField) check(bool) error { return nil }

type completionField struct {
	p *CompletionCode
}

// Completion binds the completion code of a response. Decoding a non-zero
// code ends the message successfully; fields after it stay unset.
func Completion(p *CompletionCode) Field {
	return &completionField{p: p}
}

func (f *completionField) Name() string { return "completion_code" }

func (f *completionField) encode(c *Cursor) (bool, error) {
	c.PushUint(uint64(*f.p), 1)
	return *f.p != CompletionCodeOK, nil
}

func (f *completionField) decode(c *Cursor) (bool, error) {
	v, err := c.PopUint(1)
	if err != nil {
		return false, failField(f.Name(), err)
	}
	*f.p = CompletionCode(v)
	return *f.p != CompletionCodeOK, nil
}

func (f *completionField) check(bool) error { return nil }

type optionalField struct {
	present *bool
	inner   []Field
}

// Optional marks a trailing group of fields that may be absent. On decode,
// an exhausted cursor sets *present to false and ends the message; on
// encode, *present == false ends it.
func Optional(present *bool, inner ...Field) Field {
	return &optionalField{present: present, inner: inner}
}

func (f *optionalField) Name() string {
	if len(f.inner) == 0 {
		return "optional"
	}
	return f.inner[0].Name()
}

func (f *optionalField) encode(c *Cursor) (bool, error) {
	if !*f.present {
		return true, nil
	}
	return encodeFields(c, f.inner)
}

func (f *optionalField) decode(c *Cursor) (bool, error) {
	if c.Len() == 0 {
		*f.present = false
		return true, nil
	}
	*f.present = true
	return decodeFields(c, f.inner)
}

func (f *optionalField) check(last bool) error {
	return checkFields(f.inner, last)
}

type conditionalField struct {
	cond  func() bool
	inner []Field
}

// Conditional includes inner only when cond holds. cond may read fields
// declared before it, which are already decoded at that point.
func Conditional(cond func() bool, inner ...Field) Field {
	return &conditionalField{cond: cond, inner: inner}
}

func (f *conditionalField) Name() string {
	if len(f.inner) == 0 {
		return "conditional"
	}
	return f.inner[0].Name()
}

func (f *conditionalField) encode(c *Cursor) (bool, error) {
	if !f.cond() {
		return false, nil
	}
	return encodeFields(c, f.inner)
}

func (f *conditionalField) decode(c *Cursor) (bool, error) {
	if !f.cond() {
		return false, nil
	}
	return decodeFields(c, f.inner)
}

func (f *conditionalField) check(last bool) error {
	if f.cond == nil {
		return fmt.Errorf("conditional %s: missing condition", f.Name())
	}
	return checkFields(f.inner, last)
}

func encodeFields(c *Cursor, fields []Field) (bool, error) {
	for _, f := range fields {
		stop, err := f.encode(c)
		if err != nil || stop {
			return stop, err
		}
	}
	return false, nil
}

func decodeFields(c *Cursor, fields []Field) (bool, error) {
	for _, f := range fields {
		stop, err := f.decode(c)
		if err != nil || stop {
			return stop, err
		}
	}
	return false, nil
}

func checkFields(fields []Field, last bool) error {
	for i, f := range fields {
		if err := f.check(last && i == len(fields)-1); err != nil {
			return err
		}
	}
	return nil
}
