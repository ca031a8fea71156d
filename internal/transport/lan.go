package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tjst-t/go-ipmi/internal/codec"
	"github.com/tjst-t/go-ipmi/internal/ipmb"
	"github.com/tjst-t/go-ipmi/internal/msg"
	"github.com/tjst-t/go-ipmi/internal/rmcp"
	"github.com/tjst-t/go-ipmi/internal/session"
)

// ErrIPMIUnsupported is returned when a presence pong does not announce
// IPMI support.
var ErrIPMIUnsupported = errors.New("peer does not support IPMI")

// errStray marks a received datagram that does not answer the
// outstanding request.
var errStray = errors.New("stray datagram")

const maxDatagram = 1024

// LAN is an IPMI v1.5 LAN transport over UDP.
type LAN struct {
	conn    net.Conn
	opts    Options
	session *session.Session
	logger  *log.Entry

	mu     sync.Mutex
	seq    uint8
	tag    uint8
	closed bool
}

// DialLAN opens a UDP socket to addr. No session is established until
// Open is called.
func DialLAN(ctx context.Context, addr string, opts Options) (*LAN, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewLAN(conn, opts), nil
}

// NewLAN wraps an existing datagram connection.
func NewLAN(conn net.Conn, opts Options) *LAN {
	return &LAN{
		conn: conn,
		opts: opts.withDefaults(),
		logger: log.WithFields(log.Fields{
			"component": "transport",
			"interface": "lan",
			"remote":    conn.RemoteAddr().String(),
		}),
	}
}

// Open establishes an authenticated session. Requests sent before Open go
// out session-less.
func (l *LAN) Open(ctx context.Context, cfg session.Config) error {
	s, err := session.New(cfg)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.session = s
	l.mu.Unlock()
	if err := s.Establish(ctx, l, l); err != nil {
		return fmt.Errorf("establish session: %w", err)
	}
	return nil
}

// Session returns the session opened by Open, or nil.
func (l *LAN) Session() *session.Session { return l.session }

// Ping sends an ASF presence ping and waits for the matching pong.
func (l *LAN) Ping(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	return retry(ctx, "presence ping", l.opts, l.opts.Metrics, l.logger, func(ctx context.Context) error {
		l.tag++
		if l.tag == rmcp.SequenceNoAck {
			l.tag = 0
		}
		pkt, err := rmcp.EncodePing(l.tag)
		if err != nil {
			return err
		}
		if err := l.write(ctx, pkt); err != nil {
			return err
		}
		for {
			data, err := l.read(ctx)
			if err != nil {
				return err
			}
			tag, pong, err := rmcp.DecodePong(data)
			if err != nil || tag != l.tag {
				l.opts.Metrics.stray()
				continue
			}
			if !pong.IPMI {
				return ErrIPMIUnsupported
			}
			return nil
		}
	})
}

// Exchange sends req to the BMC and decodes the reply into rsp. It is used
// for session management and implements session.Exchanger.
func (l *LAN) Exchange(ctx context.Context, req codec.Message, rsp codec.Response) error {
	payload, err := codec.Encode(req)
	if err != nil {
		return err
	}
	id := req.Identity()
	data, err := l.SendAndReceive(ctx, ipmb.NewTarget(ipmb.BMCAddress), id.LUN, id.NetFn, id.Command, payload)
	if err != nil {
		return err
	}
	if err := codec.Decode(rsp, data); err != nil {
		return err
	}
	return codec.CheckCompletion(rsp)
}

func (l *LAN) SendAndReceive(ctx context.Context, target ipmb.Target, lun, netFn, cmd uint8, payload []byte) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}

	start := time.Now()
	var rsp []byte
	op := fmt.Sprintf("netfn 0x%02x cmd 0x%02x to %s", netFn, cmd, target)
	err := retry(ctx, op, l.opts, l.opts.Metrics, l.logger, func(ctx context.Context) error {
		var err error
		rsp, err = l.roundTrip(ctx, target, lun, netFn, cmd, payload)
		return err
	})
	l.opts.Metrics.observe("lan", start, err)
	return rsp, err
}

func (l *LAN) SendAndReceiveRaw(ctx context.Context, target ipmb.Target, lun, netFn uint8, raw []byte) ([]byte, error) {
	cmd, data, err := splitRaw(raw)
	if err != nil {
		return nil, err
	}
	return l.SendAndReceive(ctx, target, lun, netFn, cmd, data)
}

// Close closes an active session, then the socket.
func (l *LAN) Close() error {
	if s := l.session; s != nil && s.State() == session.Active {
		ctx, cancel := context.WithTimeout(context.Background(), l.opts.Timeout*time.Duration(l.opts.Retries+1))
		if err := s.Close(ctx, l); err != nil {
			l.logger.WithError(err).Warn("closing session")
		}
		cancel()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.conn.Close()
}

func (l *LAN) nextSeq() uint8 {
	l.seq = (l.seq + 1) & 0x3F
	return l.seq
}

func (l *LAN) header(frame []byte) (rmcp.SessionHeader, error) {
	if l.session == nil {
		return rmcp.SessionHeader{AuthType: msg.AuthTypeNone}, nil
	}
	return l.session.Header(frame)
}

func (l *LAN) roundTrip(ctx context.Context, target ipmb.Target, lun, netFn, cmd uint8, payload []byte) ([]byte, error) {
	h := ipmb.RequestHeader{
		NetFn:            netFn,
		ResponderLUN:     lun,
		RequesterAddress: l.opts.RequesterAddress,
		Sequence:         l.nextSeq(),
		Command:          cmd,
	}
	frame, inner, err := ipmb.Encode(target, h, payload)
	if err != nil {
		return nil, err
	}
	sh, err := l.header(frame)
	if err != nil {
		return nil, err
	}
	wrapped, err := rmcp.EncodeSession(sh, frame)
	if err != nil {
		return nil, err
	}
	pkt, err := rmcp.EncodeIPMI(wrapped)
	if err != nil {
		return nil, err
	}
	if err := l.write(ctx, pkt); err != nil {
		return nil, err
	}

	for {
		data, err := l.read(ctx)
		if err != nil {
			return nil, err
		}
		rsp, err := l.accept(data, target, inner)
		switch {
		case errors.Is(err, errStray):
			l.opts.Metrics.stray()
			l.logger.WithError(err).Debug("ignoring datagram")
			continue
		case err != nil:
			return nil, err
		case rsp == nil:
			l.logger.WithField("target", target.String()).Debug("bridge acknowledged request")
			continue
		}
		return rsp, nil
	}
}

// accept unwraps a received datagram and matches it against the request
// sent with header inner. A nil response with a nil error is a bridge
// acknowledgement. Datagrams that are not RMCP IPMI messages, belong to
// another session or answer a different request are stray; a corrupt
// response to this request is returned as an error.
func (l *LAN) accept(data []byte, target ipmb.Target, inner ipmb.RequestHeader) ([]byte, error) {
	body, err := rmcp.DecodeIPMI(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errStray, err)
	}
	sh, frame, err := rmcp.DecodeSession(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errStray, err)
	}
	if s := l.session; s != nil {
		if s.State() == session.Active && sh.SessionID != s.ID() {
			return nil, fmt.Errorf("%w: session 0x%08x", errStray, sh.SessionID)
		}
		if sh.AuthType != msg.AuthTypeNone {
			if err := rmcp.VerifyAuthCode(sh, s.Password(), frame); err != nil {
				return nil, fmt.Errorf("%w: %v", errStray, err)
			}
		}
	}

	if target.Bridged() {
		frame, err = ipmb.Unwrap(frame)
		switch {
		case err != nil:
			return nil, err
		case frame == nil:
			return nil, nil
		}
	}

	rsp, err := ipmb.Match(inner, frame)
	switch {
	case errors.Is(err, ipmb.ErrUnexpectedResponse):
		return nil, fmt.Errorf("%w: %v", errStray, err)
	case err != nil:
		return nil, err
	}
	return rsp, nil
}

func (l *LAN) write(ctx context.Context, pkt []byte) error {
	if err := l.conn.SetWriteDeadline(deadline(ctx)); err != nil {
		return err
	}
	_, err := l.conn.Write(pkt)
	return err
}

func (l *LAN) read(ctx context.Context) ([]byte, error) {
	if err := l.conn.SetReadDeadline(deadline(ctx)); err != nil {
		return nil, err
	}
	buf := make([]byte, maxDatagram)
	n, err := l.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}
