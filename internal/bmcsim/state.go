package bmcsim

import (
	"crypto/subtle"
	"fmt"
	"sync"

	"github.com/tjst-t/go-ipmi/internal/msg"
)

const maxUsers = 15

// User is one user slot of the simulated BMC.
type User struct {
	Name           string
	Password       string
	PrivilegeLimit msg.Privilege
	Enabled        bool
}

// ChannelAccess holds the LAN channel authentication settings.
type ChannelAccess struct {
	Number         uint8
	AuthTypes      msg.AuthTypeSupport
	PerMessageAuth bool
	PrivilegeLimit msg.Privilege
}

// State holds users and channel settings. All methods are safe for
// concurrent use.
type State struct {
	mu      sync.RWMutex
	users   [maxUsers + 1]User // index 0 unused, 1-15 valid
	channel ChannelAccess
}

// NewState creates a State with an administrator in slot 2. Slot 1 is the
// null user and stays empty.
func NewState(defaultUser, defaultPass string) *State {
	s := &State{}
	s.users[2] = User{
		Name:           defaultUser,
		Password:       defaultPass,
		PrivilegeLimit: msg.PrivilegeAdministrator,
		Enabled:        true,
	}
	s.channel = ChannelAccess{
		Number:         1,
		AuthTypes:      msg.AuthTypeSupport{None: true, MD5: true, Straight: true},
		PerMessageAuth: true,
		PrivilegeLimit: msg.PrivilegeAdministrator,
	}
	return s
}

func validateUserID(id uint8) error {
	if id < 1 || id > maxUsers {
		return fmt.Errorf("user ID %d out of range (1-%d)", id, maxUsers)
	}
	return nil
}

// SetUser replaces the user in slot id.
func (s *State) SetUser(id uint8, u User) error {
	if err := validateUserID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = u
	return nil
}

// User returns the user in slot id.
func (s *State) User(id uint8) (User, error) {
	if err := validateUserID(id); err != nil {
		return User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[id], nil
}

// LookupUser finds an enabled user by name. The empty name matches the
// null user in slot 1 if it is enabled.
func (s *State) LookupUser(name string) (uint8, User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := 1; i <= maxUsers; i++ {
		u := s.users[i]
		if u.Enabled && u.Name == name {
			return uint8(i), u, true
		}
	}
	return 0, User{}, false
}

// CheckPassword verifies the password of slot id. Disabled users never
// match.
func (s *State) CheckPassword(id uint8, password string) bool {
	if validateUserID(id) != nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u := s.users[id]
	return u.Enabled && subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) == 1
}

// EnabledUsers returns the number of enabled user slots.
func (s *State) EnabledUsers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for i := 1; i <= maxUsers; i++ {
		if s.users[i].Enabled {
			n++
		}
	}
	return n
}

// Channel returns the LAN channel settings.
func (s *State) Channel() ChannelAccess {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channel
}

// SetChannel replaces the LAN channel settings.
func (s *State) SetChannel(c ChannelAccess) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channel = c
}
