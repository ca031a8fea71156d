// Package transport carries IPMI requests to a BMC and returns the raw
// responses: over RMCP/UDP (LAN) or the OpenIPMI VM serial protocol.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tjst-t/go-ipmi/internal/ipmb"
)

// Defaults for Options.
const (
	DefaultTimeout = 250 * time.Millisecond
	DefaultRetries = 3
	DefaultBackoff = 50 * time.Millisecond
)

var (
	// ErrClosed is returned by a transport after Close.
	ErrClosed = errors.New("transport closed")
	// ErrBridgingUnsupported is returned when a transport cannot reach a
	// bridged target.
	ErrBridgingUnsupported = errors.New("bridged targets not supported by this transport")
)

// Transport sends one request and waits for its response. The response
// data starts with the completion code. Implementations allow a single
// request in flight and serialize concurrent callers.
type Transport interface {
	SendAndReceive(ctx context.Context, target ipmb.Target, lun, netFn, cmd uint8, payload []byte) ([]byte, error)
	// SendAndReceiveRaw sends raw, which is the command byte followed by
	// the request data.
	SendAndReceiveRaw(ctx context.Context, target ipmb.Target, lun, netFn uint8, raw []byte) ([]byte, error)
	Close() error
}

// Options tunes a transport. Zero values take the package defaults.
type Options struct {
	// Timeout bounds each attempt.
	Timeout time.Duration
	// Retries is the number of attempts made after the first one times out.
	Retries int
	// Backoff is multiplied by the attempt number between attempts.
	Backoff          time.Duration
	RequesterAddress uint8
	Metrics          *Metrics
}

func (o Options) withDefaults() Options {
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Retries == 0 {
		o.Retries = DefaultRetries
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.Backoff == 0 {
		o.Backoff = DefaultBackoff
	}
	if o.RequesterAddress == 0 {
		o.RequesterAddress = ipmb.RemoteConsoleAddress
	}
	return o
}

// TimeoutError is returned when no matching response arrived in any of the
// attempts.
type TimeoutError struct {
	Op       string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no response after %d attempts", e.Op, e.Attempts)
}

// Timeout reports true so TimeoutError satisfies net.Error style checks.
func (e *TimeoutError) Timeout() bool { return true }

// errAttemptTimeout marks a single attempt that ran out of time.
var errAttemptTimeout = errors.New("attempt timed out")

func isTimeout(err error) bool {
	var ne net.Error
	return errors.Is(err, errAttemptTimeout) || (errors.As(err, &ne) && ne.Timeout())
}

// retry runs attempt until it succeeds, fails with something other than a
// timeout, or the attempts run out. Backoff grows linearly.
func retry(ctx context.Context, op string, o Options, m *Metrics, logger *log.Entry, attempt func(ctx context.Context) error) error {
	attempts := o.Retries + 1
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		actx, cancel := context.WithTimeout(ctx, o.Timeout)
		err := attempt(actx)
		cancel()
		if err == nil {
			return nil
		}
		if !isTimeout(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.timeout()
		if i == attempts {
			break
		}
		m.retry()
		logger.WithFields(log.Fields{"op": op, "attempt": i}).Debug("timed out, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.Backoff * time.Duration(i)):
		}
	}
	return &TimeoutError{Op: op, Attempts: attempts}
}

// deadline returns the read deadline for an attempt context.
func deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Time{}
}

func splitRaw(raw []byte) (uint8, []byte, error) {
	if len(raw) == 0 {
		return 0, nil, errors.New("raw request needs at least a command byte")
	}
	return raw[0], raw[1:], nil
}
