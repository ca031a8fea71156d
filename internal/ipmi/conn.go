// Package ipmi is the client side of the message layer: it encodes typed
// requests, hands them to a transport and decodes the typed responses.
// Capability groups (device, chassis, repositories, FRU, PICMG) are thin
// wrappers sharing one Conn.
package ipmi

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/tjst-t/go-ipmi/internal/codec"
	"github.com/tjst-t/go-ipmi/internal/ipmb"
	"github.com/tjst-t/go-ipmi/internal/msg"
	"github.com/tjst-t/go-ipmi/internal/reservation"
	"github.com/tjst-t/go-ipmi/internal/transport"
)

// ErrNotSupported is returned for operations a repository kind lacks.
var ErrNotSupported = errors.New("operation not supported")

// ReadTuning controls chunked record and FRU reads. Zero fields take the
// reservation package defaults.
type ReadTuning struct {
	ChunkSize  int
	Shrink     int
	MaxRetries int
}

// Conn sends typed messages to one target controller. It is as safe for
// concurrent use as its transport.
type Conn struct {
	tr       transport.Transport
	target   ipmb.Target
	registry *msg.Registry
	tuning   ReadTuning
	logger   *log.Entry
}

// Option configures a Conn.
type Option func(*Conn)

// WithTarget addresses requests to t instead of the BMC.
func WithTarget(t ipmb.Target) Option {
	return func(c *Conn) { c.target = t }
}

// WithRegistry replaces the builtin message registry used by SendByName.
func WithRegistry(r *msg.Registry) Option {
	return func(c *Conn) { c.registry = r }
}

// WithReadTuning sets the chunking of repository and FRU reads.
func WithReadTuning(t ReadTuning) Option {
	return func(c *Conn) { c.tuning = t }
}

// New wraps tr. Without WithTarget requests go to the BMC at 0x20.
func New(tr transport.Transport, opts ...Option) *Conn {
	c := &Conn{
		tr:       tr,
		target:   ipmb.NewTarget(ipmb.BMCAddress),
		registry: msg.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = log.WithFields(log.Fields{"component": "ipmi", "target": c.target.String()})
	return c
}

// Target returns the controller requests are sent to.
func (c *Conn) Target() ipmb.Target { return c.target }

// At returns a Conn for another target that shares the transport.
func (c *Conn) At(t ipmb.Target) *Conn {
	n := *c
	n.target = t
	n.logger = log.WithFields(log.Fields{"component": "ipmi", "target": t.String()})
	return &n
}

// Send encodes req, waits for the answer and decodes it into rsp. A
// non-zero completion code is returned as *codec.CompletionCodeError, with
// rsp holding the code.
func (c *Conn) Send(ctx context.Context, req codec.Message, rsp codec.Response) error {
	id := req.Identity()
	payload, err := codec.Encode(req)
	if err != nil {
		return err
	}
	c.logger.WithField("message", id.Name).Debug("sending request")
	data, err := c.tr.SendAndReceive(ctx, c.target, id.LUN, id.NetFn, id.Command, payload)
	if err != nil {
		return fmt.Errorf("%s: %w", id.Name, err)
	}
	if err := codec.Decode(rsp, data); err != nil {
		return err
	}
	return codec.CheckCompletion(rsp)
}

// SendByName sends the request registered as name+"Req". set, if not nil,
// fills in the request fields before encoding.
func (c *Conn) SendByName(ctx context.Context, name string, set func(req codec.Message) error) (codec.Response, error) {
	req, err := c.registry.CreateByName(name + "Req")
	if err != nil {
		return nil, err
	}
	if set != nil {
		if err := set(req); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	rsp, err := c.registry.CreateResponse(req)
	if err != nil {
		return nil, err
	}
	if err := c.Send(ctx, req, rsp); err != nil {
		return rsp, err
	}
	return rsp, nil
}

// Raw sends the command byte and data in raw under netFn and returns the
// response bytes, completion code first.
func (c *Conn) Raw(ctx context.Context, lun, netFn uint8, raw []byte) ([]byte, error) {
	return c.tr.SendAndReceiveRaw(ctx, c.target, lun, netFn, raw)
}

// Close closes the transport.
func (c *Conn) Close() error {
	return c.tr.Close()
}

func (c *Conn) reader(reserve reservation.ReserveFunc, read reservation.ReadFunc, length func([]byte) int) *reservation.Reader {
	return &reservation.Reader{
		Reserve:    reserve,
		Read:       read,
		Length:     length,
		ChunkSize:  c.tuning.ChunkSize,
		Shrink:     c.tuning.Shrink,
		MaxRetries: c.tuning.MaxRetries,
	}
}
