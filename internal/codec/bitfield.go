package codec

import "fmt"

// Subfield is one named run of bits inside a Bitfield.
type Subfield struct {
	name   string
	width  int
	offset int
	get    func() uint64
	set    func(uint64)
}

// Bits binds an integer subfield of width bits.
func Bits[T Unsigned](name string, p *T, width int) Subfield {
	return Subfield{
		name:  name,
		width: width,
		get:   func() uint64 { return uint64(*p) },
		set:   func(v uint64) { *p = T(v) },
	}
}

// Flag binds a single-bit subfield.
func Flag(name string, p *bool) Subfield {
	return Subfield{
		name:  name,
		width: 1,
		get: func() uint64 {
			if *p {
				return 1
			}
			return 0
		},
		set: func(v uint64) { *p = v != 0 },
	}
}

// Reserved occupies width bits that encode as zero and are ignored on decode.
func Reserved(width int) Subfield {
	return Subfield{name: "reserved", width: width}
}

type bitfieldField struct {
	name  string
	width int
	subs  []Subfield
}

// Bitfield binds width bytes split into subfields. Subfields are packed
// starting at the least significant bit in declaration order.
func Bitfield(name string, width int, subs ...Subfield) Field {
	offset := 0
	for i := range subs {
		subs[i].offset = offset
		offset += subs[i].width
	}
	return &bitfieldField{name: name, width: width, subs: subs}
}

func (f *bitfieldField) Name() string { return f.name }

func (f *bitfieldField) encode(c *Cursor) (bool, error) {
	var v uint64
	for _, s := range f.subs {
		if s.get == nil {
			continue
		}
		sv := s.get()
		if sv>>s.width != 0 {
			return false, failField(f.name+"."+s.name, ErrValueRange)
		}
		v |= sv << s.offset
	}
	c.PushUint(v, f.width)
	return false, nil
}

func (f *bitfieldField) decode(c *Cursor) (bool, error) {
	v, err := c.PopUint(f.width)
	if err != nil {
		return false, failField(f.name, err)
	}
	for _, s := range f.subs {
		if s.set == nil {
			continue
		}
		s.set((v >> s.offset) & (1<<s.width - 1))
	}
	return false, nil
}

func (f *bitfieldField) check(bool) error {
	if f.width < 1 || f.width > 8 {
		return fmt.Errorf("bitfield %s: invalid width %d", f.name, f.width)
	}
	total := 0
	for _, s := range f.subs {
		if s.width < 1 {
			return fmt.Errorf("bitfield %s: subfield %s has width %d", f.name, s.name, s.width)
		}
		total += s.width
	}
	if total != 8*f.width {
		return fmt.Errorf("bitfield %s: subfields cover %d bits, want %d", f.name, total, 8*f.width)
	}
	return nil
}
