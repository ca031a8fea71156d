package ipmi

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/tjst-t/go-ipmi/internal/codec"
	"github.com/tjst-t/go-ipmi/internal/msg"
	"github.com/tjst-t/go-ipmi/internal/reservation"
)

// FRU reads one FRU inventory device.
type FRU struct {
	conn   *Conn
	id     uint8
	chunk  int
	shrink int
}

// FRU returns FRU device id on c's target.
func (c *Conn) FRU(id uint8) *FRU {
	f := &FRU{conn: c, id: id, chunk: c.tuning.ChunkSize, shrink: c.tuning.Shrink}
	if f.chunk == 0 {
		f.chunk = reservation.DefaultChunkSize
	}
	if f.shrink == 0 {
		f.shrink = reservation.DefaultShrink
	}
	return f
}

// Info returns the inventory area size and access mode.
func (f *FRU) Info(ctx context.Context) (*msg.GetFRUInventoryAreaInfoRsp, error) {
	rsp := &msg.GetFRUInventoryAreaInfoRsp{}
	if err := f.conn.Send(ctx, &msg.GetFRUInventoryAreaInfoReq{FRUID: f.id}, rsp); err != nil {
		return nil, err
	}
	return rsp, nil
}

// ReadAll reads the whole inventory area.
func (f *FRU) ReadAll(ctx context.Context) ([]byte, error) {
	info, err := f.Info(ctx)
	if err != nil {
		return nil, err
	}
	if info.AccessByWords {
		return nil, fmt.Errorf("fru %d: word access: %w", f.id, ErrNotSupported)
	}
	return f.Read(ctx, 0, int(info.AreaSize))
}

// Read reads length bytes starting at offset. When the device rejects a
// chunk as too large the chunk size shrinks and the read continues.
func (f *FRU) Read(ctx context.Context, offset, length int) ([]byte, error) {
	data := make([]byte, 0, length)
	chunk := f.chunk
	for len(data) < length {
		count := min(chunk, length-len(data))
		rsp := &msg.ReadFRUDataRsp{}
		req := &msg.ReadFRUDataReq{FRUID: f.id, Offset: uint16(offset + len(data)), Count: uint8(count)}
		err := f.conn.Send(ctx, req, rsp)
		if tooLarge(err) {
			chunk -= f.shrink
			f.conn.logger.WithFields(log.Fields{"fru": f.id, "chunk": chunk}).Debug("shrinking fru read size")
			if chunk <= 0 {
				return data, fmt.Errorf("fru %d offset %d: %w", f.id, offset+len(data), err)
			}
			continue
		}
		if err != nil {
			return data, err
		}
		if len(rsp.Data) == 0 {
			return data, fmt.Errorf("fru %d offset %d: %w", f.id, offset+len(data), reservation.ErrShortRead)
		}
		data = append(data, rsp.Data...)
	}
	return data[:length], nil
}

func tooLarge(err error) bool {
	return codec.IsCompletionCode(err, codec.CompletionCodeRequestDataLengthInvalid) ||
		codec.IsCompletionCode(err, codec.CompletionCodeRequestDataLengthExceeded) ||
		codec.IsCompletionCode(err, codec.CompletionCodeCannotReturnRequestedBytes)
}
