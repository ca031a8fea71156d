// Package session implements the IPMI v1.5 session establishment state
// machine and the per-message session wrapper state.
package session

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/tjst-t/go-ipmi/internal/codec"
	"github.com/tjst-t/go-ipmi/internal/msg"
	"github.com/tjst-t/go-ipmi/internal/rmcp"
)

// State is a step of session establishment.
type State int

const (
	Idle State = iota
	Pinged
	CapabilitiesKnown
	ChallengeIssued
	Active
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pinged:
		return "pinged"
	case CapabilitiesKnown:
		return "capabilities-known"
	case ChallengeIssued:
		return "challenge-issued"
	case Active:
		return "active"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// DefaultInitialOutboundSequence seeds the sequence numbers the BMC uses
// towards us.
const DefaultInitialOutboundSequence = 5

// DefaultAuthPreference is the order used to pick an authentication type
// from those a channel offers.
var DefaultAuthPreference = []msg.AuthType{
	msg.AuthTypeMD5,
	msg.AuthTypeMD2,
	msg.AuthTypeStraight,
	msg.AuthTypeOEM,
	msg.AuthTypeNone,
}

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// current state.
	ErrInvalidState = errors.New("invalid session state")
	// ErrNoAuthType is returned when the channel offers none of the
	// acceptable authentication types.
	ErrNoAuthType = errors.New("no acceptable authentication type")
)

// Exchanger sends one request to the BMC and decodes its response.
// Implementations wrap each request with the Header of the session.
type Exchanger interface {
	Exchange(ctx context.Context, req codec.Message, rsp codec.Response) error
}

// Pinger probes for an RMCP capable peer.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config describes the session to establish.
type Config struct {
	Username  string
	Password  string
	Privilege msg.Privilege
	// AuthTypes lists acceptable auth types, strongest first. Nil means
	// DefaultAuthPreference.
	AuthTypes []msg.AuthType
	// InitialOutboundSequence zero means DefaultInitialOutboundSequence.
	InitialOutboundSequence uint32
	Channel                 uint8
}

// Session is an IPMI v1.5 session. It is owned by one connection and is
// not safe for concurrent use.
type Session struct {
	cfg      Config
	password []byte
	state    State

	authType       msg.AuthType
	perMessageAuth bool
	id             uint32
	sequence       uint32
	challenge      []byte
	privilege      msg.Privilege
	maxPrivilege   msg.Privilege

	logger *log.Entry
}

// New validates cfg and returns an idle session.
func New(cfg Config) (*Session, error) {
	if len(cfg.Username) > 16 {
		return nil, fmt.Errorf("username longer than 16 bytes")
	}
	pw, err := rmcp.PadPassword(cfg.Password)
	if err != nil {
		return nil, err
	}
	if cfg.Privilege == 0 {
		cfg.Privilege = msg.PrivilegeAdministrator
	}
	if cfg.AuthTypes == nil {
		cfg.AuthTypes = DefaultAuthPreference
	}
	if cfg.InitialOutboundSequence == 0 {
		cfg.InitialOutboundSequence = DefaultInitialOutboundSequence
	}
	if cfg.Channel == 0 {
		cfg.Channel = msg.ChannelCurrent
	}
	return &Session{
		cfg:      cfg,
		password: pw,
		logger:   log.WithFields(log.Fields{"component": "session", "user": cfg.Username}),
	}, nil
}

func (s *Session) State() State             { return s.state }
func (s *Session) ID() uint32               { return s.id }
func (s *Session) Sequence() uint32         { return s.sequence }
func (s *Session) AuthType() msg.AuthType   { return s.authType }
func (s *Session) Privilege() msg.Privilege { return s.privilege }

// MaxPrivilege is the highest privilege the BMC allowed at activation.
func (s *Session) MaxPrivilege() msg.Privilege { return s.maxPrivilege }

func (s *Session) transition(to State) {
	s.logger.WithFields(log.Fields{"from": s.state, "to": to}).Debug("session state change")
	s.state = to
}

func (s *Session) expect(op string, states ...State) error {
	for _, st := range states {
		if s.state == st {
			return nil
		}
	}
	return fmt.Errorf("%w: %s in state %s", ErrInvalidState, op, s.state)
}

// NextSequence advances the session sequence number, skipping zero on wrap.
func (s *Session) NextSequence() uint32 {
	s.sequence++
	if s.sequence == 0 {
		s.sequence = 1
	}
	return s.sequence
}

// Header returns the session wrapper for the next outgoing payload. Active
// sessions consume a sequence number.
func (s *Session) Header(payload []byte) (rmcp.SessionHeader, error) {
	h := rmcp.SessionHeader{AuthType: msg.AuthTypeNone}
	switch s.state {
	case ChallengeIssued:
		h.AuthType = s.authType
		h.SessionID = s.id
	case Active:
		h.SessionID = s.id
		h.Sequence = s.NextSequence()
		if s.perMessageAuth {
			h.AuthType = s.authType
		}
	case Closed:
		return h, fmt.Errorf("%w: session is closed", ErrInvalidState)
	}
	code, err := rmcp.AuthCode(h.AuthType, s.password, h.SessionID, h.Sequence, payload)
	if err != nil {
		return rmcp.SessionHeader{}, err
	}
	h.AuthCode = code
	return h, nil
}

// Password returns the padded session password.
func (s *Session) Password() []byte { return s.password }

// Ping probes the BMC with an ASF presence ping.
func (s *Session) Ping(ctx context.Context, p Pinger) error {
	if err := s.expect("ping", Idle); err != nil {
		return err
	}
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("presence ping: %w", err)
	}
	s.transition(Pinged)
	return nil
}

// GetCapabilities queries the channel and selects an auth type.
func (s *Session) GetCapabilities(ctx context.Context, ex Exchanger) error {
	if err := s.expect("get capabilities", Idle, Pinged); err != nil {
		return err
	}
	var rsp msg.GetChannelAuthenticationCapabilitiesRsp
	req := &msg.GetChannelAuthenticationCapabilitiesReq{Channel: s.cfg.Channel, Privilege: s.cfg.Privilege}
	if err := ex.Exchange(ctx, req, &rsp); err != nil {
		return fmt.Errorf("get channel authentication capabilities: %w", err)
	}

	t, ok := selectAuthType(rsp.Support, s.cfg.AuthTypes)
	if !ok {
		return fmt.Errorf("%w: channel offers %+v", ErrNoAuthType, rsp.Support)
	}
	s.authType = t
	s.perMessageAuth = !rsp.Login.PerMessageAuthDisabled
	s.logger.WithField("auth_type", t).Debug("selected authentication type")
	s.transition(CapabilitiesKnown)
	return nil
}

func selectAuthType(support msg.AuthTypeSupport, preference []msg.AuthType) (msg.AuthType, bool) {
	for _, t := range preference {
		if support.Supports(t) {
			return t, true
		}
	}
	return 0, false
}

// GetChallenge requests a temporary session id and challenge.
func (s *Session) GetChallenge(ctx context.Context, ex Exchanger) error {
	if err := s.expect("get challenge", CapabilitiesKnown); err != nil {
		return err
	}
	var rsp msg.GetSessionChallengeRsp
	req := &msg.GetSessionChallengeReq{AuthType: s.authType, Username: s.cfg.Username}
	if err := ex.Exchange(ctx, req, &rsp); err != nil {
		return fmt.Errorf("get session challenge: %w", err)
	}
	s.id = rsp.TemporarySessionID
	s.challenge = rsp.Challenge
	s.transition(ChallengeIssued)
	return nil
}

// Activate activates the challenged session. The inbound sequence number
// returned by the BMC seeds our sequence counter and the session runs at
// the maximum privilege the BMC reports.
func (s *Session) Activate(ctx context.Context, ex Exchanger) error {
	if err := s.expect("activate", ChallengeIssued); err != nil {
		return err
	}
	var rsp msg.ActivateSessionRsp
	req := &msg.ActivateSessionReq{
		AuthType:                s.authType,
		Privilege:               s.cfg.Privilege,
		Challenge:               s.challenge,
		InitialOutboundSequence: s.cfg.InitialOutboundSequence,
	}
	if err := ex.Exchange(ctx, req, &rsp); err != nil {
		return fmt.Errorf("activate session: %w", err)
	}
	s.authType = rsp.AuthType
	s.id = rsp.SessionID
	s.sequence = rsp.InitialInboundSequence
	s.challenge = nil
	s.maxPrivilege = rsp.MaximumPrivilege
	s.privilege = rsp.MaximumPrivilege
	s.transition(Active)
	return nil
}

// SetPrivilege raises the privilege level of an active session.
func (s *Session) SetPrivilege(ctx context.Context, ex Exchanger, p msg.Privilege) error {
	if err := s.expect("set privilege", Active); err != nil {
		return err
	}
	var rsp msg.SetSessionPrivilegeLevelRsp
	if err := ex.Exchange(ctx, &msg.SetSessionPrivilegeLevelReq{Privilege: p}, &rsp); err != nil {
		return fmt.Errorf("set session privilege level: %w", err)
	}
	s.privilege = rsp.Privilege
	return nil
}

// Establish runs the whole handshake. A nil Pinger skips the presence ping.
func (s *Session) Establish(ctx context.Context, ex Exchanger, p Pinger) error {
	if p != nil {
		if err := s.Ping(ctx, p); err != nil {
			return err
		}
	}
	if err := s.GetCapabilities(ctx, ex); err != nil {
		return err
	}
	if err := s.GetChallenge(ctx, ex); err != nil {
		return err
	}
	if err := s.Activate(ctx, ex); err != nil {
		return err
	}
	if err := s.SetPrivilege(ctx, ex, s.cfg.Privilege); err != nil {
		return err
	}
	s.logger.WithFields(log.Fields{
		"session_id": fmt.Sprintf("0x%08x", s.id),
		"auth_type":  s.authType,
		"privilege":  s.privilege,
	}).Info("session established")
	return nil
}

// Close closes an active session. The session is reset even if the BMC
// rejects the request; closing twice is an error and sends nothing.
func (s *Session) Close(ctx context.Context, ex Exchanger) error {
	if err := s.expect("close", Active); err != nil {
		return err
	}
	var rsp msg.CloseSessionRsp
	err := ex.Exchange(ctx, &msg.CloseSessionReq{SessionID: s.id}, &rsp)
	s.reset()
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

func (s *Session) reset() {
	s.id = 0
	s.sequence = 0
	s.challenge = nil
	s.privilege = 0
	s.maxPrivilege = 0
	s.transition(Closed)
}
