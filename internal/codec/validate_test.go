package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type describedMsg struct {
	id     Identity
	fields func(*describedMsg) []Field
	A, B   uint8
	Rest   []byte
	Status
}

func (m *describedMsg) Identity() Identity { return m.id }
func (m *describedMsg) Fields() []Field    { return m.fields(m) }

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		id      Identity
		fields  func(*describedMsg) []Field
		wantErr string
	}{
		{
			name: "valid request",
			id:   Identity{Name: "GoodReq", NetFn: 0x06},
			fields: func(m *describedMsg) []Field {
				return []Field{Bitfield("b", 1, Bits("a", &m.A, 4), Reserved(4)), Remaining("rest", &m.Rest)}
			},
		},
		{
			name: "bitfield too narrow",
			id:   Identity{Name: "BadReq", NetFn: 0x06},
			fields: func(m *describedMsg) []Field {
				return []Field{Bitfield("b", 1, Bits("a", &m.A, 3), Reserved(4))}
			},
			wantErr: "cover 7 bits",
		},
		{
			name: "bitfield too wide",
			id:   Identity{Name: "BadReq", NetFn: 0x06},
			fields: func(m *describedMsg) []Field {
				return []Field{Bitfield("b", 1, Bits("a", &m.A, 5), Bits("b", &m.B, 4))}
			},
			wantErr: "cover 9 bits",
		},
		{
			name:    "missing suffix",
			id:      Identity{Name: "NoSuffix", NetFn: 0x06},
			fields:  func(m *describedMsg) []Field { return nil },
			wantErr: "Req or Rsp",
		},
		{
			name:    "request with odd netfn",
			id:      Identity{Name: "OddReq", NetFn: 0x07},
			fields:  func(m *describedMsg) []Field { return nil },
			wantErr: "response netfn",
		},
		{
			name:    "response with even netfn",
			id:      Identity{Name: "EvenRsp", NetFn: 0x06},
			fields:  func(m *describedMsg) []Field { return []Field{Completion(&m.CompletionCode)} },
			wantErr: "request netfn",
		},
		{
			name:    "response without completion code",
			id:      Identity{Name: "PlainRsp", NetFn: 0x07},
			fields:  func(m *describedMsg) []Field { return []Field{U8("a", &m.A)} },
			wantErr: "completion code",
		},
		{
			name: "remaining not last",
			id:   Identity{Name: "RestReq", NetFn: 0x06},
			fields: func(m *describedMsg) []Field {
				return []Field{Remaining("rest", &m.Rest), U8("a", &m.A)}
			},
			wantErr: "last field",
		},
		{
			name: "remaining last inside optional",
			id:   Identity{Name: "TailRsp", NetFn: 0x07},
			fields: func(m *describedMsg) []Field {
				var present bool
				return []Field{Completion(&m.CompletionCode), Optional(&present, U8("a", &m.A), Remaining("rest", &m.Rest))}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&describedMsg{id: tt.id, fields: tt.fields})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var de *DescriptionError
			require.ErrorAs(t, err, &de)
			assert.Contains(t, de.Error(), tt.wantErr)
		})
	}
}

func TestBitfield_PacksLowBitFirst(t *testing.T) {
	var a, b, c uint8 = 0x1, 0x2, 0x3
	f := Bitfield("x", 2, Bits("a", &a, 4), Bits("b", &b, 4), Bits("c", &c, 8))
	cur := &Cursor{}
	_, err := f.encode(cur)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x21, 0x03}, cur.Bytes())

	a, b, c = 0, 0, 0
	_, err = f.decode(NewCursor([]byte{0x9a, 0x7f}))
	require.NoError(t, err)
	assert.Equal(t, uint8(0xa), a)
	assert.Equal(t, uint8(0x9), b)
	assert.Equal(t, uint8(0x7f), c)
}
