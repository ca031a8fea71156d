package bmcsim

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/tjst-t/go-ipmi/internal/msg"
)

const (
	maxSessions   = 4
	challengeSize = 16
	// sequenceWindow is how far ahead of the last accepted inbound
	// sequence number a request may be.
	sequenceWindow = 8
)

var errSessionLimit = errors.New("no free session slots")

// Session is an IPMI v1.5 session on the simulated BMC. A session is
// temporary between Get Session Challenge and Activate Session.
type Session struct {
	ID        uint32
	Handle    uint8
	UserID    uint8
	AuthType  msg.AuthType
	Challenge []byte
	Active    bool
	// MaxPrivilege is the privilege requested at activation; the session
	// privilege can be raised up to it.
	MaxPrivilege msg.Privilege
	Privilege    msg.Privilege

	// inbound is the last sequence number accepted from the console,
	// outbound the last one the BMC used.
	inbound  uint32
	outbound uint32
}

// acceptSequence checks seq against the inbound window and records it.
func (s *Session) acceptSequence(seq uint32) bool {
	d := seq - s.inbound
	if seq == 0 || d == 0 || d > sequenceWindow {
		return false
	}
	s.inbound = seq
	return true
}

func (s *Session) nextOutbound() uint32 {
	s.outbound++
	if s.outbound == 0 {
		s.outbound = 1
	}
	return s.outbound
}

// SessionManager tracks temporary and active sessions.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[uint32]*Session
	handle   uint8
}

// NewSessionManager returns an empty SessionManager.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[uint32]*Session)}
}

// Challenge creates a temporary session for user with a random id and
// challenge string.
func (sm *SessionManager) Challenge(userID uint8, t msg.AuthType) (*Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if len(sm.sessions) >= maxSessions {
		return nil, errSessionLimit
	}
	id, err := sm.newID()
	if err != nil {
		return nil, err
	}
	challenge := make([]byte, challengeSize)
	if _, err := rand.Read(challenge); err != nil {
		return nil, err
	}
	s := &Session{ID: id, UserID: userID, AuthType: t, Challenge: challenge}
	sm.sessions[id] = s
	return s, nil
}

// newID returns an unused non-zero session id. Callers hold sm.mu.
func (sm *SessionManager) newID() (uint32, error) {
	for {
		id, err := randomUint32()
		if err != nil {
			return 0, err
		}
		if _, ok := sm.sessions[id]; id != 0 && !ok {
			return id, nil
		}
	}
}

// Activate turns temporary session tmp into an active session with a new
// id. outbound seeds the BMC's sequence numbers.
func (sm *SessionManager) Activate(tmp *Session, privilege msg.Privilege, outbound uint32) (*Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	id, err := sm.newID()
	if err != nil {
		return nil, err
	}
	inbound, err := randomUint32()
	if err != nil {
		return nil, err
	}
	if inbound == 0 {
		inbound = 1
	}
	delete(sm.sessions, tmp.ID)
	sm.handle++
	if sm.handle == 0 {
		sm.handle = 1
	}
	s := &Session{
		ID:           id,
		Handle:       sm.handle,
		UserID:       tmp.UserID,
		AuthType:     tmp.AuthType,
		Active:       true,
		MaxPrivilege: privilege,
		Privilege:    msg.PrivilegeUser,
		inbound:      inbound,
		outbound:     outbound - 1,
	}
	sm.sessions[id] = s
	return s, nil
}

// Get returns the session with id.
func (sm *SessionManager) Get(id uint32) (*Session, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	s, ok := sm.sessions[id]
	return s, ok
}

// ByHandle returns the active session with handle h.
func (sm *SessionManager) ByHandle(h uint8) (*Session, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for _, s := range sm.sessions {
		if s.Active && s.Handle == h {
			return s, true
		}
	}
	return nil, false
}

// Remove deletes the session with id.
func (sm *SessionManager) Remove(id uint32) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, id)
}

// Active returns the number of active sessions.
func (sm *SessionManager) Active() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	n := 0
	for _, s := range sm.sessions {
		if s.Active {
			n++
		}
	}
	return n
}

func randomUint32() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}
