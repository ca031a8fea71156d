package ipmi

import (
	"context"
	"fmt"

	"github.com/tjst-t/go-ipmi/internal/msg"
	"github.com/tjst-t/go-ipmi/internal/reservation"
)

// RepositoryKind selects the record store behind a Repository.
type RepositoryKind int

const (
	SDRRepository RepositoryKind = iota
	SEL
	DeviceSDR
)

func (k RepositoryKind) String() string {
	switch k {
	case SDRRepository:
		return "SDR"
	case SEL:
		return "SEL"
	case DeviceSDR:
		return "device SDR"
	}
	return fmt.Sprintf("RepositoryKind(%d)", int(k))
}

// selEntrySize is the length of every SEL record.
const selEntrySize = 16

// Repository reads and clears one record store through reservations. The
// reservation is kept between calls; a Repository is not safe for
// concurrent use.
type Repository struct {
	conn   *Conn
	kind   RepositoryKind
	reader *reservation.Reader
}

// Repository returns the record store of kind on c's target.
func (c *Conn) Repository(kind RepositoryKind) *Repository {
	r := &Repository{conn: c, kind: kind}
	length := reservation.SDRLength
	if kind == SEL {
		length = reservation.FixedLength(selEntrySize)
	}
	r.reader = c.reader(r.reserve, r.read, length)
	return r
}

func (c *Conn) SDR() *Repository       { return c.Repository(SDRRepository) }
func (c *Conn) SEL() *Repository       { return c.Repository(SEL) }
func (c *Conn) DeviceSDR() *Repository { return c.Repository(DeviceSDR) }

// Kind returns the record store r reads.
func (r *Repository) Kind() RepositoryKind { return r.kind }

// Count returns the number of records the repository reports.
func (r *Repository) Count(ctx context.Context) (int, error) {
	switch r.kind {
	case SDRRepository:
		rsp := &msg.GetSDRRepositoryInfoRsp{}
		if err := r.conn.Send(ctx, &msg.GetSDRRepositoryInfoReq{}, rsp); err != nil {
			return 0, err
		}
		return int(rsp.RecordCount), nil
	case SEL:
		rsp := &msg.GetSELInfoRsp{}
		if err := r.conn.Send(ctx, &msg.GetSELInfoReq{}, rsp); err != nil {
			return 0, err
		}
		return int(rsp.Entries), nil
	default:
		rsp := &msg.GetDeviceSDRInfoRsp{}
		req := &msg.GetDeviceSDRInfoReq{HasOperation: true, Operation: msg.DeviceSDRCountRecords}
		if err := r.conn.Send(ctx, req, rsp); err != nil {
			return 0, err
		}
		return int(rsp.Number), nil
	}
}

// ReadRecord reads record id and returns it with the id of the next record.
func (r *Repository) ReadRecord(ctx context.Context, id uint16) (uint16, []byte, error) {
	return r.reader.ReadRecord(ctx, id)
}

// ReadAll reads every record from the first to the last.
func (r *Repository) ReadAll(ctx context.Context) ([][]byte, error) {
	records, err := r.reader.ReadAll(ctx, reservation.RecordFirst)
	if err != nil {
		return records, fmt.Errorf("%s: %w", r.kind, err)
	}
	return records, nil
}

// Clear erases the repository and waits until the erase completes. Device
// SDRs cannot be cleared.
func (r *Repository) Clear(ctx context.Context) error {
	if r.kind == DeviceSDR {
		return fmt.Errorf("clear %s: %w", r.kind, ErrNotSupported)
	}
	e := &reservation.Eraser{
		Reserve:    r.reserve,
		Clear:      r.clear,
		MaxRetries: r.conn.tuning.MaxRetries,
	}
	if err := e.Erase(ctx); err != nil {
		return fmt.Errorf("clear %s: %w", r.kind, err)
	}
	return nil
}

func (r *Repository) reserve(ctx context.Context) (uint16, error) {
	switch r.kind {
	case SDRRepository:
		rsp := &msg.ReserveSDRRepositoryRsp{}
		err := r.conn.Send(ctx, &msg.ReserveSDRRepositoryReq{}, rsp)
		return rsp.ReservationID, err
	case SEL:
		rsp := &msg.ReserveSELRsp{}
		err := r.conn.Send(ctx, &msg.ReserveSELReq{}, rsp)
		return rsp.ReservationID, err
	default:
		rsp := &msg.ReserveDeviceSDRRepositoryRsp{}
		err := r.conn.Send(ctx, &msg.ReserveDeviceSDRRepositoryReq{}, rsp)
		return rsp.ReservationID, err
	}
}

func (r *Repository) read(ctx context.Context, res, id uint16, offset, count uint8) (uint16, []byte, error) {
	switch r.kind {
	case SDRRepository:
		rsp := &msg.GetSDRRsp{}
		req := &msg.GetSDRReq{ReservationID: res, RecordID: id, Offset: offset, Count: count}
		err := r.conn.Send(ctx, req, rsp)
		return rsp.NextRecordID, rsp.Data, err
	case SEL:
		rsp := &msg.GetSELEntryRsp{}
		req := &msg.GetSELEntryReq{ReservationID: res, RecordID: id, Offset: offset, Count: count}
		err := r.conn.Send(ctx, req, rsp)
		return rsp.NextRecordID, rsp.Data, err
	default:
		rsp := &msg.GetDeviceSDRRsp{}
		req := &msg.GetDeviceSDRReq{ReservationID: res, RecordID: id, Offset: offset, Count: count}
		err := r.conn.Send(ctx, req, rsp)
		return rsp.NextRecordID, rsp.Data, err
	}
}

func (r *Repository) clear(ctx context.Context, res uint16, initiate bool) (bool, error) {
	command := uint8(msg.ClearGetStatus)
	if initiate {
		command = msg.ClearInitiate
	}
	var progress uint8
	switch r.kind {
	case SDRRepository:
		rsp := &msg.ClearSDRRepositoryRsp{}
		req := &msg.ClearSDRRepositoryReq{ReservationID: res, Key: msg.ClearKey(), Command: command}
		if err := r.conn.Send(ctx, req, rsp); err != nil {
			return false, err
		}
		progress = rsp.Progress
	default:
		rsp := &msg.ClearSELRsp{}
		req := &msg.ClearSELReq{ReservationID: res, Key: msg.ClearKey(), Command: command}
		if err := r.conn.Send(ctx, req, rsp); err != nil {
			return false, err
		}
		progress = rsp.Progress
	}
	return progress&0x0F == msg.EraseCompleted, nil
}
