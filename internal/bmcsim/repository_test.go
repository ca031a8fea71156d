package bmcsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjst-t/go-ipmi/internal/codec"
	"github.com/tjst-t/go-ipmi/internal/msg"
)

func testRepository() *Repository {
	r := NewRepository()
	r.Add(0x0010, []byte{0x10, 0x00, 0x51, 0x01, 0x03, 0xAA, 0xBB, 0xCC})
	r.Add(0x0002, []byte{0x02, 0x00, 0x51, 0x01, 0x00})
	return r
}

func TestRepository_ReadOrder(t *testing.T) {
	r := testRepository()
	assert.Equal(t, 2, r.Len())

	next, data, cc := r.Read(0, msg.RecordFirst, 0, 0xFF)
	require.Equal(t, codec.CompletionCodeOK, cc)
	assert.Equal(t, uint16(0x0010), next)
	assert.Equal(t, []byte{0x02, 0x00, 0x51, 0x01, 0x00}, data)

	next, data, cc = r.Read(0, next, 0, 5)
	require.Equal(t, codec.CompletionCodeOK, cc)
	assert.Equal(t, uint16(msg.RecordLast), next)
	assert.Len(t, data, 5)
}

func TestRepository_ReadCodes(t *testing.T) {
	r := testRepository()
	r.MaxRead = 4
	res := r.Reserve()

	tests := []struct {
		name        string
		reservation uint16
		id          uint16
		offset      uint8
		count       uint8
		want        codec.CompletionCode
	}{
		{"partial read", res, 0x0010, 5, 3, codec.CompletionCodeOK},
		{"stale reservation", res - 1, 0x0010, 5, 3, codec.CompletionCodeReservationCanceled},
		{"too many bytes", res, 0x0010, 0, 5, codec.CompletionCodeCannotReturnRequestedBytes},
		{"whole record", res, 0x0010, 0, 0xFF, codec.CompletionCodeOK},
		{"missing record", res, 0x0099, 0, 4, codec.CompletionCodeRequestedDataNotPresent},
		{"offset past end", res, 0x0002, 9, 1, codec.CompletionCodeParameterOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, cc := r.Read(tt.reservation, tt.id, tt.offset, tt.count)
			assert.Equal(t, tt.want, cc)
		})
	}
}

func TestRepository_CancelReads(t *testing.T) {
	r := testRepository()
	res := r.Reserve()
	r.CancelReads(1)

	_, _, cc := r.Read(res, 0x0010, 5, 3)
	assert.Equal(t, codec.CompletionCodeReservationCanceled, cc)

	// the injected cancel also invalidated res
	_, _, cc = r.Read(res, 0x0010, 5, 3)
	assert.Equal(t, codec.CompletionCodeReservationCanceled, cc)

	res = r.Reserve()
	_, data, cc := r.Read(res, 0x0010, 5, 3)
	require.Equal(t, codec.CompletionCodeOK, cc)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, data)
}

func TestRepository_Clear(t *testing.T) {
	r := testRepository()
	r.ErasePolls = 2
	res := r.Reserve()

	_, cc := r.Clear(res, []byte("CLX"), msg.ClearInitiate)
	assert.Equal(t, codec.CompletionCodeInvalidField, cc)

	progress, cc := r.Clear(res, msg.ClearKey(), msg.ClearInitiate)
	require.Equal(t, codec.CompletionCodeOK, cc)
	assert.Equal(t, uint8(msg.EraseInProgress), progress)
	assert.Equal(t, 0, r.Len())

	for i := 0; i < 2; i++ {
		progress, _ = r.Clear(res, msg.ClearKey(), msg.ClearGetStatus)
		assert.Equal(t, uint8(msg.EraseInProgress), progress)
	}
	progress, _ = r.Clear(res, msg.ClearKey(), msg.ClearGetStatus)
	assert.Equal(t, uint8(msg.EraseCompleted), progress)

	_, cc = r.Clear(r.Reserve()+1, msg.ClearKey(), msg.ClearGetStatus)
	assert.Equal(t, codec.CompletionCodeReservationCanceled, cc)
}

func TestRepository_Info(t *testing.T) {
	r := NewRepository()
	n, added, erased := r.info()
	assert.Equal(t, uint16(0), n)
	assert.Equal(t, uint32(0xFFFFFFFF), added)
	assert.Equal(t, uint32(0xFFFFFFFF), erased)

	r.Add(1, []byte{1})
	n, added, _ = r.info()
	assert.Equal(t, uint16(1), n)
	assert.NotEqual(t, uint32(0xFFFFFFFF), added)
}
