package bmcsim

import (
	"sort"
	"sync"
	"time"

	"github.com/tjst-t/go-ipmi/internal/codec"
	"github.com/tjst-t/go-ipmi/internal/msg"
)

// Repository is a record store read through reservations, used for the
// SDR repository, the SEL and device SDRs.
type Repository struct {
	mu          sync.Mutex
	ids         []uint16
	records     map[uint16][]byte
	reservation uint16
	lastAdd     time.Time
	lastErase   time.Time

	// MaxRead is the largest count a single read returns; larger requests
	// fail with "cannot return requested number of bytes". Zero means 255.
	MaxRead int
	// ErasePolls is the number of status polls that report an erase as
	// still in progress.
	ErasePolls int

	cancelReads int
	erasing     int
}

// NewRepository returns an empty repository.
func NewRepository() *Repository {
	return &Repository{records: make(map[uint16][]byte)}
}

// Add stores a record under id, replacing any record with the same id.
func (r *Repository) Add(id uint16, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		r.ids = append(r.ids, id)
		sort.Slice(r.ids, func(i, j int) bool { return r.ids[i] < r.ids[j] })
	}
	r.records[id] = append([]byte(nil), data...)
	r.lastAdd = time.Now()
}

// Len returns the number of records.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

// CancelReads makes the next n reads fail as if another client had
// reserved the repository.
func (r *Repository) CancelReads(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelReads = n
}

// Reserve issues a new reservation id, cancelling the previous one.
func (r *Repository) Reserve() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reservation++
	if r.reservation == 0 {
		r.reservation = 1
	}
	return r.reservation
}

// Read returns count bytes of record id starting at offset, and the id of
// the next record.
func (r *Repository) Read(reservation, id uint16, offset, count uint8) (uint16, []byte, codec.CompletionCode) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// offset 0 reads are allowed without a reservation
	if offset != 0 || reservation != 0 {
		if r.cancelReads > 0 {
			r.cancelReads--
			r.reservation++
			return 0, nil, codec.CompletionCodeReservationCanceled
		}
		if reservation != r.reservation {
			return 0, nil, codec.CompletionCodeReservationCanceled
		}
	}

	limit := r.MaxRead
	if limit == 0 {
		limit = 0xFF
	}
	if int(count) > limit && count != 0xFF {
		return 0, nil, codec.CompletionCodeCannotReturnRequestedBytes
	}

	i := r.index(id)
	if i < 0 {
		return 0, nil, codec.CompletionCodeRequestedDataNotPresent
	}
	rec := r.records[r.ids[i]]
	if int(offset) > len(rec) {
		return 0, nil, codec.CompletionCodeParameterOutOfRange
	}
	end := len(rec)
	if count != 0xFF && int(offset)+int(count) < end {
		end = int(offset) + int(count)
	}

	next := uint16(msg.RecordLast)
	if i+1 < len(r.ids) {
		next = r.ids[i+1]
	}
	return next, append([]byte(nil), rec[offset:end]...), codec.CompletionCodeOK
}

// index resolves the record ids 0x0000 (first) and 0xFFFF (last).
func (r *Repository) index(id uint16) int {
	if len(r.ids) == 0 {
		return -1
	}
	switch id {
	case msg.RecordFirst:
		return 0
	case msg.RecordLast:
		return len(r.ids) - 1
	}
	for i, v := range r.ids {
		if v == id {
			return i
		}
	}
	return -1
}

// Clear handles a clear request. Initiating wipes the records; the erase
// then reports in progress for ErasePolls status polls.
func (r *Repository) Clear(reservation uint16, key []byte, command uint8) (uint8, codec.CompletionCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reservation != r.reservation {
		return 0, codec.CompletionCodeReservationCanceled
	}
	if string(key) != string(msg.ClearKey()) {
		return 0, codec.CompletionCodeInvalidField
	}
	switch command {
	case msg.ClearInitiate:
		r.ids = nil
		r.records = make(map[uint16][]byte)
		r.erasing = r.ErasePolls
		r.lastErase = time.Now()
		if r.erasing > 0 {
			return msg.EraseInProgress, codec.CompletionCodeOK
		}
		return msg.EraseCompleted, codec.CompletionCodeOK
	case msg.ClearGetStatus:
		if r.erasing > 0 {
			r.erasing--
			return msg.EraseInProgress, codec.CompletionCodeOK
		}
		return msg.EraseCompleted, codec.CompletionCodeOK
	}
	return 0, codec.CompletionCodeInvalidField
}

// info returns the record count and timestamps for the info commands.
func (r *Repository) info() (uint16, uint32, uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint16(len(r.ids)), timestamp(r.lastAdd), timestamp(r.lastErase)
}

func timestamp(t time.Time) uint32 {
	if t.IsZero() {
		return 0xFFFFFFFF
	}
	return uint32(t.Unix())
}
