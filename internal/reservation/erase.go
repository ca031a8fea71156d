package reservation

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tjst-t/go-ipmi/internal/codec"
)

// ErrEraseInProgress is the last error of an erase that never completed.
var ErrEraseInProgress = errors.New("erase still in progress")

// ClearFunc issues a repository clear under reservation. initiate starts
// the erase; otherwise the call only asks for status. It reports whether
// the erase has completed.
type ClearFunc func(ctx context.Context, reservation uint16, initiate bool) (done bool, err error)

// Eraser clears a repository and waits for the erase to finish.
type Eraser struct {
	Reserve    ReserveFunc
	Clear      ClearFunc
	MaxRetries int
	Poll       time.Duration
}

// Erase initiates the erase and polls until it completes. Cancelled
// reservations are renewed and the erase is initiated again. Each clear
// request counts against MaxRetries.
func (e *Eraser) Erase(ctx context.Context) error {
	limit := e.MaxRetries
	if limit == 0 {
		limit = DefaultMaxRetries
	}
	poll := e.Poll
	if poll == 0 {
		poll = DefaultBackoff
	}
	logger := log.WithField("component", "reservation")

	id, err := e.Reserve(ctx)
	if err != nil {
		return err
	}
	initiate := true
	var last error
	for attempt := 1; attempt <= limit; attempt++ {
		done, err := e.Clear(ctx, id, initiate)
		switch {
		case codec.IsCompletionCode(err, codec.CompletionCodeReservationCanceled):
			logger.WithField("attempt", attempt).Debug("reservation cancelled during erase")
			last = err
			if id, err = e.Reserve(ctx); err != nil {
				return err
			}
			initiate = true
		case err != nil:
			return err
		case done:
			return nil
		default:
			initiate = false
			last = nil
		}
		if err := sleep(ctx, poll); err != nil {
			return err
		}
	}
	if last == nil {
		last = ErrEraseInProgress
	}
	return &RetryError{Op: "erase", Attempts: limit, Err: last}
}
