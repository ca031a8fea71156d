package bmcsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjst-t/go-ipmi/internal/msg"
)

func TestNewState_InitializesDefaultUser(t *testing.T) {
	s := NewState("admin", "password")

	// slot 1 is the null user and starts disabled
	u1, err := s.User(1)
	require.NoError(t, err)
	assert.False(t, u1.Enabled)
	assert.False(t, s.CheckPassword(1, ""))

	u2, err := s.User(2)
	require.NoError(t, err)
	assert.Equal(t, "admin", u2.Name)
	assert.True(t, u2.Enabled)
	assert.Equal(t, msg.PrivilegeAdministrator, u2.PrivilegeLimit)
	assert.True(t, s.CheckPassword(2, "password"))
	assert.False(t, s.CheckPassword(2, "wrong"))

	assert.Equal(t, 1, s.EnabledUsers())
}

func TestState_InvalidSlot(t *testing.T) {
	s := NewState("admin", "password")

	for _, id := range []uint8{0, 16} {
		assert.Error(t, s.SetUser(id, User{Name: "x"}))
		_, err := s.User(id)
		assert.Error(t, err)
		assert.False(t, s.CheckPassword(id, ""))
	}
}

func TestState_LookupUser(t *testing.T) {
	s := NewState("admin", "password")
	require.NoError(t, s.SetUser(3, User{Name: "operator", Password: "op", PrivilegeLimit: msg.PrivilegeOperator, Enabled: true}))
	require.NoError(t, s.SetUser(4, User{Name: "ghost", Enabled: false}))

	id, u, ok := s.LookupUser("operator")
	require.True(t, ok)
	assert.Equal(t, uint8(3), id)
	assert.Equal(t, msg.PrivilegeOperator, u.PrivilegeLimit)

	_, _, ok = s.LookupUser("ghost")
	assert.False(t, ok, "disabled users are not found")

	_, _, ok = s.LookupUser("")
	assert.False(t, ok)

	require.NoError(t, s.SetUser(1, User{Enabled: true, PrivilegeLimit: msg.PrivilegeUser}))
	id, _, ok = s.LookupUser("")
	assert.True(t, ok)
	assert.Equal(t, uint8(1), id)
}

func TestState_Channel(t *testing.T) {
	s := NewState("admin", "password")
	ch := s.Channel()
	assert.Equal(t, uint8(1), ch.Number)
	assert.True(t, ch.AuthTypes.MD5)
	assert.True(t, ch.PerMessageAuth)

	ch.PerMessageAuth = false
	s.SetChannel(ch)
	assert.False(t, s.Channel().PerMessageAuth)
}
