package bmcsim

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/tjst-t/go-ipmi/internal/ipmb"
	"github.com/tjst-t/go-ipmi/internal/vm"
)

// VMServer speaks the OpenIPMI VM wire protocol from the BMC side, the way
// an external BMC serves QEMU's ipmi-bmc-extern device.
type VMServer struct {
	bmc    *Controller
	logger *log.Entry

	mu       sync.Mutex
	listener net.Listener
	caps     uint8
}

// NewVMServer returns a VM protocol server for bmc.
func NewVMServer(bmc *Controller) *VMServer {
	return &VMServer{
		bmc:    bmc,
		logger: log.WithFields(log.Fields{"component": "bmcsim", "interface": "vm"}),
	}
}

// ListenAndServe accepts TCP connections on addr, one goroutine each.
func (vs *VMServer) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("VM server listen on %s: %w", addr, err)
	}
	return vs.Serve(ln)
}

// Serve accepts connections on ln until Close is called.
func (vs *VMServer) Serve(ln net.Listener) error {
	vs.mu.Lock()
	vs.listener = ln
	vs.mu.Unlock()
	vs.logger.WithField("addr", ln.Addr().String()).Info("VM server listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			vs.mu.Lock()
			closed := vs.listener == nil
			vs.mu.Unlock()
			if closed {
				return nil
			}
			return fmt.Errorf("VM server accept: %w", err)
		}
		go func() {
			if err := vs.HandleConnection(conn); err != nil {
				vs.logger.WithError(err).Warn("connection error")
			}
		}()
	}
}

// Capabilities returns the capabilities the last peer announced.
func (vs *VMServer) Capabilities() uint8 {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.caps
}

// HandleConnection serves one connection and returns nil on EOF.
func (vs *VMServer) HandleConnection(conn net.Conn) error {
	defer conn.Close()
	logger := vs.logger.WithField("remote", conn.RemoteAddr().String())

	r := vm.NewReader(conn)
	for {
		term, data, err := r.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Debug("connection closed")
				return nil
			}
			return fmt.Errorf("VM server read: %w", err)
		}

		switch term {
		case vm.CmdChar:
			vs.control(conn, logger, data)
		case vm.MsgChar:
			vs.message(conn, logger, data)
		}
	}
}

func (vs *VMServer) control(conn net.Conn, logger *log.Entry, data []byte) {
	cmd, rest, err := vm.ParseControl(data)
	if err != nil {
		logger.WithError(err).Debug("invalid control command")
		return
	}
	arg := uint8(0)
	if len(rest) > 0 {
		arg = rest[0]
	}
	switch cmd {
	case vm.CmdVersion:
		logger.WithField("version", arg).Debug("peer version")
	case vm.CmdCapabilities:
		vs.mu.Lock()
		vs.caps = arg
		vs.mu.Unlock()
		logger.WithField("capabilities", fmt.Sprintf("0x%02x", arg)).Debug("peer capabilities")
		vs.write(conn, logger, vm.ControlFrame(vm.CmdNoAttn))
	default:
		logger.WithField("command", fmt.Sprintf("0x%02x", cmd)).Debug("unknown control command")
	}
}

func (vs *VMServer) message(conn net.Conn, logger *log.Entry, data []byte) {
	m, err := vm.ParseMessage(data)
	if err != nil {
		logger.WithError(err).Debug("invalid IPMI request")
		return
	}
	h := ipmb.RequestHeader{
		ResponderAddress: vs.bmc.Address,
		NetFn:            m.NetFn,
		ResponderLUN:     m.LUN,
		RequesterAddress: ipmb.SystemSoftwareAddress,
		Sequence:         m.Seq,
		Command:          m.Cmd,
	}
	// the system interface has no bridge acknowledgement; only the final
	// response of a SendMessage is returned
	bodies := vs.bmc.Handle(h, m.Data)
	if len(bodies) == 0 {
		return
	}
	vs.write(conn, logger, m.Response(bodies[len(bodies)-1]).Frame())
}

func (vs *VMServer) write(conn net.Conn, logger *log.Entry, frame []byte) {
	if _, err := conn.Write(frame); err != nil {
		logger.WithError(err).Warn("write failed")
	}
}

// Close stops accepting connections.
func (vs *VMServer) Close() error {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if vs.listener != nil {
		err := vs.listener.Close()
		vs.listener = nil
		return err
	}
	return nil
}
