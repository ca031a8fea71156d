package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tjst-t/go-ipmi/internal/codec"
	"github.com/tjst-t/go-ipmi/internal/ipmb"
	"github.com/tjst-t/go-ipmi/internal/vm"
)

// VMCapabilities are the capabilities announced during the handshake.
const VMCapabilities = vm.CapAttn

// VM speaks the OpenIPMI VM protocol to an external BMC over a stream
// connection, taking the role of the virtual machine's system interface.
// Only the BMC itself can be addressed.
type VM struct {
	conn   net.Conn
	r      *vm.Reader
	opts   Options
	logger *log.Entry

	mu     sync.Mutex
	seq    uint8
	closed bool
}

// DialVM connects to the BMC at addr and performs the handshake.
func DialVM(ctx context.Context, addr string, opts Options) (*VM, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	v := NewVM(conn, opts)
	if err := v.Handshake(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return v, nil
}

// NewVM wraps an existing stream connection. Handshake must be called
// before the first request.
func NewVM(conn net.Conn, opts Options) *VM {
	return &VM{
		conn: conn,
		r:    vm.NewReader(conn),
		opts: opts.withDefaults(),
		logger: log.WithFields(log.Fields{
			"component": "transport",
			"interface": "vm",
			"remote":    conn.RemoteAddr().String(),
		}),
	}
}

// Handshake announces the protocol version and capabilities and waits for
// the BMC's NOATTN reply.
func (v *VM) Handshake(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, v.opts.Timeout*time.Duration(v.opts.Retries+1))
	defer cancel()
	if err := v.write(ctx, vm.ControlFrame(vm.CmdVersion, vm.ProtocolVersion)); err != nil {
		return fmt.Errorf("vm handshake: %w", err)
	}
	if err := v.write(ctx, vm.ControlFrame(vm.CmdCapabilities, VMCapabilities)); err != nil {
		return fmt.Errorf("vm handshake: %w", err)
	}
	if err := v.conn.SetReadDeadline(deadline(ctx)); err != nil {
		return err
	}
	for {
		term, data, err := v.r.ReadFrame()
		if err != nil {
			return fmt.Errorf("vm handshake: %w", err)
		}
		if term != vm.CmdChar {
			continue
		}
		if cmd, _, err := vm.ParseControl(data); err == nil && cmd == vm.CmdNoAttn {
			v.logger.Debug("vm handshake complete")
			return nil
		}
	}
}

func (v *VM) SendAndReceive(ctx context.Context, target ipmb.Target, lun, netFn, cmd uint8, payload []byte) ([]byte, error) {
	if target.Bridged() || (target.Address != 0 && target.Address != ipmb.BMCAddress) {
		return nil, fmt.Errorf("%w: %s", ErrBridgingUnsupported, target)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, ErrClosed
	}

	start := time.Now()
	var rsp []byte
	op := fmt.Sprintf("netfn 0x%02x cmd 0x%02x", netFn, cmd)
	err := retry(ctx, op, v.opts, v.opts.Metrics, v.logger, func(ctx context.Context) error {
		v.seq++
		req := vm.Message{Seq: v.seq, NetFn: netFn, LUN: lun, Cmd: cmd, Data: payload}
		if err := v.write(ctx, req.Frame()); err != nil {
			return err
		}
		if err := v.conn.SetReadDeadline(deadline(ctx)); err != nil {
			return err
		}
		for {
			term, data, err := v.r.ReadFrame()
			if err != nil {
				return err
			}
			if term == vm.CmdChar {
				v.control(data)
				continue
			}
			m, err := vm.ParseMessage(data)
			if err != nil || !m.IsResponse() || m.Seq != req.Seq || m.NetFn != netFn|0x01 || m.Cmd != cmd || m.LUN != lun {
				v.opts.Metrics.stray()
				v.logger.WithField("err", err).Debug("ignoring frame")
				continue
			}
			if len(m.Data) == 0 {
				return &codec.DecodingError{Message: "vm", Field: "completion_code", Err: codec.ErrTruncated}
			}
			rsp = m.Data
			return nil
		}
	})
	v.opts.Metrics.observe("vm", start, err)
	return rsp, err
}

func (v *VM) SendAndReceiveRaw(ctx context.Context, target ipmb.Target, lun, netFn uint8, raw []byte) ([]byte, error) {
	cmd, data, err := splitRaw(raw)
	if err != nil {
		return nil, err
	}
	return v.SendAndReceive(ctx, target, lun, netFn, cmd, data)
}

// control handles a control command from the BMC. None of them need a
// reply from our side.
func (v *VM) control(data []byte) {
	cmd, rest, err := vm.ParseControl(data)
	if err != nil {
		v.logger.WithError(err).Debug("invalid control command")
		return
	}
	v.logger.WithFields(log.Fields{"command": fmt.Sprintf("0x%02x", cmd), "data": rest}).Info("vm control command")
}

func (v *VM) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	return v.conn.Close()
}

func (v *VM) write(ctx context.Context, b []byte) error {
	if err := v.conn.SetWriteDeadline(deadline(ctx)); err != nil {
		return err
	}
	_, err := v.conn.Write(b)
	return err
}
