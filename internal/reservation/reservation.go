// Package reservation implements the reserve, chunked read and re-reserve
// protocol used to pull repository records (SDR, SEL, device SDR) through
// request primitives that carry only a few bytes at a time.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tjst-t/go-ipmi/internal/codec"
)

// Defaults for Reader and Eraser.
const (
	DefaultHeaderSize = 5
	DefaultChunkSize  = 20
	DefaultShrink     = 4
	DefaultMaxRetries = 20
	DefaultBackoff    = 10 * time.Millisecond
)

// ErrShortRead is returned when a device answers a chunk request with no
// data.
var ErrShortRead = errors.New("device returned no record data")

// ErrOffsetRange is returned when a record extends past the last offset a
// single byte read request can address.
var ErrOffsetRange = errors.New("record offset exceeds 255")

// RetryError is returned when a bounded retry loop gives up.
type RetryError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// ReserveFunc obtains a new reservation id.
type ReserveFunc func(ctx context.Context) (uint16, error)

// ReadFunc reads count bytes of record starting at offset under
// reservation. It returns the id of the following record.
type ReadFunc func(ctx context.Context, reservation, record uint16, offset, count uint8) (next uint16, data []byte, err error)

// SDRLength computes the total length of an SDR from its 5 byte header.
func SDRLength(header []byte) int {
	return DefaultHeaderSize + int(header[4])
}

// FixedLength returns a length function for records of a fixed size, such
// as 16 byte SEL entries.
func FixedLength(n int) func([]byte) int {
	return func([]byte) int { return n }
}

// Reader reads whole records. Zero fields take the package defaults.
type Reader struct {
	Reserve ReserveFunc
	Read    ReadFunc
	// Length returns the total record length given its header. Nil means
	// SDRLength.
	Length func(header []byte) int

	HeaderSize int
	ChunkSize  int
	Shrink     int
	MaxRetries int
	Backoff    time.Duration

	// Reservation is the id in use. A zero value makes the first read
	// reserve.
	Reservation uint16
}

func (r *Reader) defaults() {
	if r.Length == nil {
		r.Length = SDRLength
	}
	if r.HeaderSize == 0 {
		r.HeaderSize = DefaultHeaderSize
	}
	if r.ChunkSize == 0 {
		r.ChunkSize = DefaultChunkSize
	}
	if r.Shrink == 0 {
		r.Shrink = DefaultShrink
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = DefaultMaxRetries
	}
	if r.Backoff == 0 {
		r.Backoff = DefaultBackoff
	}
}

func (r *Reader) reserve(ctx context.Context) error {
	id, err := r.Reserve(ctx)
	if err != nil {
		return fmt.Errorf("reserve: %w", err)
	}
	r.Reservation = id
	return nil
}

// ReadRecord reads record id in full. A cancelled reservation is renewed
// and the record is read again from its first byte.
func (r *Reader) ReadRecord(ctx context.Context, id uint16) (uint16, []byte, error) {
	r.defaults()
	if r.Reservation == 0 && r.Reserve != nil {
		if err := r.reserve(ctx); err != nil {
			return 0, nil, err
		}
	}

	logger := log.WithFields(log.Fields{"component": "reservation", "record": id})
	var (
		data    []byte
		total   = -1
		chunk   = r.ChunkSize
		retries = 0
	)
	for {
		want := r.HeaderSize - len(data)
		if total >= 0 {
			want = total - len(data)
		}
		count := min(want, chunk, math.MaxUint8)
		if len(data) > math.MaxUint8 {
			return 0, nil, fmt.Errorf("record 0x%04x offset %d: %w", id, len(data), ErrOffsetRange)
		}

		next, b, err := r.Read(ctx, r.Reservation, id, uint8(len(data)), uint8(count))
		switch {
		case codec.IsCompletionCode(err, codec.CompletionCodeCannotReturnRequestedBytes):
			chunk -= r.Shrink
			logger.WithField("chunk", chunk).Debug("shrinking read size")
			if chunk <= 0 {
				return 0, nil, &RetryError{Op: "read record", Attempts: retries + 1, Err: err}
			}
			continue
		case codec.IsCompletionCode(err, codec.CompletionCodeReservationCanceled):
			retries++
			if retries > r.MaxRetries {
				return 0, nil, &RetryError{Op: "read record", Attempts: retries, Err: err}
			}
			logger.WithField("attempt", retries).Debug("reservation cancelled, restarting record")
			if err := sleep(ctx, r.Backoff); err != nil {
				return 0, nil, err
			}
			if r.Reserve != nil {
				if err := r.reserve(ctx); err != nil {
					return 0, nil, err
				}
			}
			data, total = nil, -1
			continue
		case err != nil:
			return 0, nil, err
		}
		if len(b) == 0 {
			return 0, nil, fmt.Errorf("record 0x%04x offset %d: %w", id, len(data), ErrShortRead)
		}

		data = append(data, b...)
		if total < 0 && len(data) >= r.HeaderSize {
			total = r.Length(data[:r.HeaderSize])
			if total < r.HeaderSize {
				return 0, nil, &codec.DecodingError{Message: "record header", Field: "length", Err: codec.ErrValueRange}
			}
		}
		if total >= 0 && len(data) >= total {
			return next, data[:total], nil
		}
	}
}

// ReadAll reads the records chained from first until the last-record
// marker.
func (r *Reader) ReadAll(ctx context.Context, first uint16) ([][]byte, error) {
	var records [][]byte
	for id := first; id != RecordLast; {
		next, rec, err := r.ReadRecord(ctx, id)
		if err != nil {
			return records, fmt.Errorf("record 0x%04x: %w", id, err)
		}
		records = append(records, rec)
		if next == id {
			break
		}
		id = next
	}
	return records, nil
}

// RecordFirst and RecordLast are the special record ids of repository reads.
const (
	RecordFirst uint16 = 0x0000
	RecordLast  uint16 = 0xFFFF
)

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
