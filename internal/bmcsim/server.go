package bmcsim

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/gopacket/layers"
	log "github.com/sirupsen/logrus"

	"github.com/tjst-t/go-ipmi/internal/codec"
	"github.com/tjst-t/go-ipmi/internal/ipmb"
	"github.com/tjst-t/go-ipmi/internal/msg"
	"github.com/tjst-t/go-ipmi/internal/rmcp"
)

// Session command completion codes
const (
	ccInvalidUserName       codec.CompletionCode = 0x81
	ccNullUserDisabled      codec.CompletionCode = 0x82
	ccNoSessionSlot         codec.CompletionCode = 0x83
	ccPrivilegeExceedsLimit codec.CompletionCode = 0x86
	ccInvalidSessionID      codec.CompletionCode = 0x87
)

const maxDatagram = 1024

// errDrop marks requests a BMC silently ignores.
var errDrop = errors.New("request dropped")

// Server answers RMCP/IPMI v1.5 datagrams on behalf of a Controller.
type Server struct {
	bmc      *Controller
	state    *State
	sessions *SessionManager
	registry *msg.Registry
	logger   *log.Entry

	// Sessionless lets requests outside a session reach the controller.
	// Only the pre-session commands are answered otherwise.
	Sessionless bool

	mu   sync.Mutex
	conn net.PacketConn
	drop int
}

// NewServer returns a server for bmc with users and channel settings from
// state.
func NewServer(bmc *Controller, state *State) *Server {
	return &Server{
		bmc:      bmc,
		state:    state,
		sessions: NewSessionManager(),
		registry: msg.Default(),
		logger:   log.WithField("component", "bmcsim"),
	}
}

// Sessions returns the server's session table.
func (s *Server) Sessions() *SessionManager { return s.sessions }

// DropRequests makes the server ignore the next n IPMI requests.
func (s *Server) DropRequests(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drop = n
}

// ListenAndServe listens on the UDP address addr and serves requests.
func (s *Server) ListenAndServe(addr string) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.logger.WithField("addr", conn.LocalAddr().String()).Info("IPMI simulator listening")
	return s.Serve(conn)
}

// Serve serves requests on an existing connection until it is closed.
func (s *Server) Serve(conn net.PacketConn) error {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	buf := make([]byte, maxDatagram)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			return err
		}
		data := make([]byte, n)
		copy(data, buf[:n])

		out, err := s.HandleMessage(data)
		if err != nil {
			s.logger.WithError(err).WithField("remote", addr.String()).Debug("ignoring datagram")
			continue
		}
		for _, pkt := range out {
			if _, err := conn.WriteTo(pkt, addr); err != nil {
				s.logger.WithError(err).Warn("write failed")
			}
		}
	}
}

// Close stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// HandleMessage processes one datagram and returns the datagrams to send
// back. Bridged requests may produce more than one.
func (s *Server) HandleMessage(data []byte) ([][]byte, error) {
	r, err := rmcp.Decode(data)
	if err != nil {
		return nil, err
	}
	switch r.Class {
	case layers.RMCPClassASF:
		tag, err := rmcp.DecodePing(data)
		if err != nil {
			return nil, err
		}
		pong, err := rmcp.EncodePong(tag)
		if err != nil {
			return nil, err
		}
		return [][]byte{pong}, nil
	case layers.RMCPClassIPMI:
	default:
		return nil, fmt.Errorf("%w: 0x%02x", rmcp.ErrUnexpectedClass, uint8(r.Class))
	}

	if s.dropped() {
		return nil, errDrop
	}
	sh, frame, err := rmcp.DecodeSession(r.Payload())
	if err != nil {
		return nil, err
	}
	ih, body, err := ipmb.DecodeRequest(frame)
	if err != nil {
		return nil, err
	}
	sess, err := s.authenticate(sh, frame, ih)
	if err != nil {
		return nil, err
	}

	var out [][]byte
	for _, b := range s.handle(sess, ih, body) {
		rf := ipmb.EncodeResponse(ih.Response(), b)
		rh, err := s.responseHeader(sess, sh, rf)
		if err != nil {
			return nil, err
		}
		wrapped, err := rmcp.EncodeSession(rh, rf)
		if err != nil {
			return nil, err
		}
		pkt, err := rmcp.EncodeIPMI(wrapped)
		if err != nil {
			return nil, err
		}
		out = append(out, pkt)
	}
	return out, nil
}

func (s *Server) dropped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drop > 0 {
		s.drop--
		return true
	}
	return false
}

// isPreSession reports whether cmd may be sent outside a session.
func isPreSession(netFn, cmd uint8) bool {
	return netFn == msg.NetFnApp && (cmd == msg.CmdGetChannelAuthCapabilities || cmd == msg.CmdGetSessionChallenge)
}

// authenticate resolves the session of a request and checks its auth code
// and sequence number. A nil session means the request is outside any.
func (s *Server) authenticate(sh rmcp.SessionHeader, frame []byte, ih ipmb.RequestHeader) (*Session, error) {
	if sh.SessionID == 0 {
		if sh.AuthType != msg.AuthTypeNone {
			return nil, fmt.Errorf("%w: authenticated request without session", errDrop)
		}
		if !s.Sessionless && !isPreSession(ih.NetFn, ih.Command) {
			return nil, fmt.Errorf("%w: command 0x%02x outside session", errDrop, ih.Command)
		}
		return nil, nil
	}

	sess, ok := s.sessions.Get(sh.SessionID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown session 0x%08x", errDrop, sh.SessionID)
	}
	if !sess.Active && (ih.NetFn != msg.NetFnApp || ih.Command != msg.CmdActivateSession) {
		return nil, fmt.Errorf("%w: session 0x%08x not active", errDrop, sh.SessionID)
	}
	if sh.AuthType == msg.AuthTypeNone {
		if sess.AuthType != msg.AuthTypeNone && (!sess.Active || s.state.Channel().PerMessageAuth) {
			return nil, fmt.Errorf("%w: missing auth code", errDrop)
		}
	} else {
		if sh.AuthType != sess.AuthType {
			return nil, fmt.Errorf("%w: auth type %s, session uses %s", errDrop, sh.AuthType, sess.AuthType)
		}
		if err := rmcp.VerifyAuthCode(sh, s.password(sess.UserID), frame); err != nil {
			return nil, fmt.Errorf("%w: %v", errDrop, err)
		}
	}
	if sess.Active && !sess.acceptSequence(sh.Sequence) {
		return nil, fmt.Errorf("%w: sequence 0x%08x outside window", errDrop, sh.Sequence)
	}
	return sess, nil
}

func (s *Server) password(userID uint8) []byte {
	u, err := s.state.User(userID)
	if err != nil {
		return nil
	}
	pw, err := rmcp.PadPassword(u.Password)
	if err != nil {
		return nil
	}
	return pw
}

func (s *Server) responseHeader(sess *Session, req rmcp.SessionHeader, frame []byte) (rmcp.SessionHeader, error) {
	if sess == nil {
		return rmcp.SessionHeader{AuthType: msg.AuthTypeNone}, nil
	}
	h := rmcp.SessionHeader{AuthType: req.AuthType, SessionID: sess.ID}
	if sess.Active {
		h.Sequence = sess.nextOutbound()
	}
	code, err := rmcp.AuthCode(h.AuthType, s.password(sess.UserID), h.SessionID, h.Sequence, frame)
	if err != nil {
		return rmcp.SessionHeader{}, err
	}
	h.AuthCode = code
	return h, nil
}

// handle answers session management commands itself and passes the rest
// to the controller, or through it to a bridged controller.
func (s *Server) handle(sess *Session, ih ipmb.RequestHeader, body []byte) [][]byte {
	if ih.ResponderAddress != s.bmc.Address {
		return reply(codec.CompletionCodeDestinationUnavailable)
	}
	req, err := s.registry.Create(ih.NetFn, ih.Command, msg.RequestGroup(ih.NetFn, body))
	if err != nil {
		return s.bmc.Handle(ih, body)
	}
	if sess != nil && sess.Privilege < requiredPrivilege(req) {
		return reply(codec.CompletionCodeInsufficientPrivilege)
	}

	var rsp codec.Response
	cc := codec.CompletionCodeOK
	switch req.(type) {
	case *msg.GetChannelAuthenticationCapabilitiesReq, *msg.GetSessionChallengeReq, *msg.ActivateSessionReq,
		*msg.SetSessionPrivilegeLevelReq, *msg.CloseSessionReq, *msg.GetSessionInfoReq:
		if err := codec.Decode(req, body); err != nil {
			return reply(codec.CompletionCodeRequestDataLengthInvalid)
		}
		rsp, cc = s.session(sess, req)
	default:
		return s.bmc.Handle(ih, body)
	}
	if cc != codec.CompletionCodeOK {
		return reply(cc)
	}
	b, err := codec.Encode(rsp)
	if err != nil {
		s.logger.WithError(err).Warn("encoding response")
		return reply(codec.CompletionCodeUnspecified)
	}
	return [][]byte{b}
}

// requiredPrivilege is the session privilege a command needs.
func requiredPrivilege(req codec.Message) msg.Privilege {
	switch req.(type) {
	case *msg.GetChannelAuthenticationCapabilitiesReq, *msg.GetSessionChallengeReq, *msg.ActivateSessionReq,
		*msg.SetSessionPrivilegeLevelReq, *msg.CloseSessionReq:
		return 0
	case *msg.ChassisControlReq, *msg.ColdResetReq, *msg.WarmResetReq, *msg.SetFRUActivationPolicyReq,
		*msg.ClearSDRRepositoryReq, *msg.ClearSELReq, *msg.SendMessageReq:
		return msg.PrivilegeOperator
	}
	return msg.PrivilegeUser
}
