package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjst-t/go-ipmi/internal/codec"
	"github.com/tjst-t/go-ipmi/internal/msg"
	"github.com/tjst-t/go-ipmi/internal/rmcp"
)

// fakeBMC answers the session commands from canned response bytes and
// records the session header that wrapped each request.
type fakeBMC struct {
	s         *Session
	responses map[string][]byte
	sent      []string
	headers   []rmcp.SessionHeader
}

func (f *fakeBMC) Exchange(_ context.Context, req codec.Message, rsp codec.Response) error {
	payload, err := codec.Encode(req)
	if err != nil {
		return err
	}
	h, err := f.s.Header(payload)
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(req.Identity().Name, "Req")
	f.sent = append(f.sent, name)
	f.headers = append(f.headers, h)
	data, ok := f.responses[name]
	if !ok {
		return errors.New("no canned response for " + name)
	}
	if err := codec.Decode(rsp, data); err != nil {
		return err
	}
	return codec.CheckCompletion(rsp)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newFake(t *testing.T, cfg Config) (*Session, *fakeBMC) {
	t.Helper()
	s, err := New(cfg)
	require.NoError(t, err)
	return s, &fakeBMC{
		s: s,
		responses: map[string][]byte{
			// MD5 and straight offered, per-message auth enabled
			"GetChannelAuthenticationCapabilities": {0x00, 0x01, 0x14, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00},
			"GetSessionChallenge":                  append([]byte{0x00, 0x78, 0x56, 0x34, 0x12},
				[]byte("0123456789abcdef")...),
			"ActivateSession":          {0x00, 0x02, 0x04, 0x03, 0x02, 0x01, 0x10, 0x00, 0x00, 0x00, 0x04},
			"SetSessionPrivilegeLevel": {0x00, 0x04},
			"CloseSession":             {0x00},
		},
	}
}

func TestEstablish(t *testing.T) {
	s, bmc := newFake(t, Config{Username: "admin", Password: "password"})

	require.NoError(t, s.Establish(context.Background(), bmc, fakePinger{}))

	assert.Equal(t, Active, s.State())
	assert.Equal(t, msg.AuthTypeMD5, s.AuthType())
	assert.Equal(t, uint32(0x01020304), s.ID())
	assert.Equal(t, msg.PrivilegeAdministrator, s.Privilege())
	assert.Equal(t, []string{
		"GetChannelAuthenticationCapabilities",
		"GetSessionChallenge",
		"ActivateSession",
		"SetSessionPrivilegeLevel",
	}, bmc.sent)

	// capabilities and challenge go out without a session
	for _, h := range bmc.headers[:2] {
		assert.Equal(t, msg.AuthTypeNone, h.AuthType)
		assert.Zero(t, h.SessionID)
		assert.Zero(t, h.Sequence)
	}
	// activation carries the temporary id and the chosen auth type
	assert.Equal(t, msg.AuthTypeMD5, bmc.headers[2].AuthType)
	assert.Equal(t, uint32(0x12345678), bmc.headers[2].SessionID)
	assert.Zero(t, bmc.headers[2].Sequence)
	assert.Len(t, bmc.headers[2].AuthCode, 16)
	// the first active message uses the inbound seed plus one
	assert.Equal(t, uint32(0x01020304), bmc.headers[3].SessionID)
	assert.Equal(t, uint32(0x11), bmc.headers[3].Sequence)
}

func TestEstablish_WithoutPing(t *testing.T) {
	s, bmc := newFake(t, Config{Username: "admin", Password: "password"})
	require.NoError(t, s.Establish(context.Background(), bmc, nil))
	assert.Equal(t, Active, s.State())
}

func TestActivate_PrivilegeFromResponse(t *testing.T) {
	s, bmc := newFake(t, Config{Username: "operator", Password: "password"})
	// maximum privilege operator
	bmc.responses["ActivateSession"] = []byte{0x00, 0x02, 0x04, 0x03, 0x02, 0x01, 0x10, 0x00, 0x00, 0x00, 0x03}
	ctx := context.Background()

	require.NoError(t, s.GetCapabilities(ctx, bmc))
	require.NoError(t, s.GetChallenge(ctx, bmc))
	require.NoError(t, s.Activate(ctx, bmc))
	assert.Equal(t, msg.PrivilegeOperator, s.Privilege())
	assert.Equal(t, msg.PrivilegeOperator, s.MaxPrivilege())

	require.NoError(t, s.Close(ctx, bmc))
	assert.Zero(t, s.MaxPrivilege())
}

func TestEstablish_PingFails(t *testing.T) {
	s, bmc := newFake(t, Config{})
	err := s.Establish(context.Background(), bmc, fakePinger{err: errors.New("timeout")})
	require.Error(t, err)
	assert.Equal(t, Idle, s.State())
	assert.Empty(t, bmc.sent)
}

func TestGetCapabilities_NoAcceptableAuthType(t *testing.T) {
	s, bmc := newFake(t, Config{AuthTypes: []msg.AuthType{msg.AuthTypeNone}})
	err := s.GetCapabilities(context.Background(), bmc)
	assert.ErrorIs(t, err, ErrNoAuthType)
	assert.Equal(t, Idle, s.State())
}

func TestGetCapabilities_PreferenceOrder(t *testing.T) {
	s, bmc := newFake(t, Config{AuthTypes: []msg.AuthType{msg.AuthTypeStraight, msg.AuthTypeMD5}})
	require.NoError(t, s.GetCapabilities(context.Background(), bmc))
	assert.Equal(t, msg.AuthTypeStraight, s.AuthType())
	assert.Equal(t, CapabilitiesKnown, s.State())
}

func TestPerMessageAuthDisabled(t *testing.T) {
	s, bmc := newFake(t, Config{Password: "password"})
	bmc.responses["GetChannelAuthenticationCapabilities"] = []byte{0x00, 0x01, 0x14, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00}
	require.NoError(t, s.Establish(context.Background(), bmc, nil))

	h, err := s.Header([]byte{0x20, 0x18})
	require.NoError(t, err)
	assert.Equal(t, msg.AuthTypeNone, h.AuthType)
	assert.Nil(t, h.AuthCode)
	assert.Equal(t, uint32(0x01020304), h.SessionID)
	assert.NotZero(t, h.Sequence)
}

func TestOutOfOrder(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		run  func(*Session, *fakeBMC) error
	}{
		{"challenge before capabilities", func(s *Session, b *fakeBMC) error { return s.GetChallenge(ctx, b) }},
		{"activate before challenge", func(s *Session, b *fakeBMC) error { return s.Activate(ctx, b) }},
		{"privilege before activate", func(s *Session, b *fakeBMC) error {
			return s.SetPrivilege(ctx, b, msg.PrivilegeOperator)
		}},
		{"close while idle", func(s *Session, b *fakeBMC) error { return s.Close(ctx, b) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, bmc := newFake(t, Config{})
			assert.ErrorIs(t, tt.run(s, bmc), ErrInvalidState)
			assert.Empty(t, bmc.sent)
		})
	}
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	s, bmc := newFake(t, Config{Password: "password"})
	require.NoError(t, s.Establish(ctx, bmc, nil))

	require.NoError(t, s.Close(ctx, bmc))
	assert.Equal(t, Closed, s.State())
	assert.Zero(t, s.ID())
	assert.Equal(t, "CloseSession", bmc.sent[len(bmc.sent)-1])

	n := len(bmc.sent)
	assert.ErrorIs(t, s.Close(ctx, bmc), ErrInvalidState)
	assert.Len(t, bmc.sent, n)

	_, err := s.Header(nil)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestClose_Rejected(t *testing.T) {
	ctx := context.Background()
	s, bmc := newFake(t, Config{Password: "password"})
	require.NoError(t, s.Establish(ctx, bmc, nil))
	bmc.responses["CloseSession"] = []byte{0x87}

	err := s.Close(ctx, bmc)
	assert.True(t, codec.IsCompletionCode(err, 0x87))
	assert.Equal(t, Closed, s.State())
}

func TestCompletionCodeSurfaces(t *testing.T) {
	s, bmc := newFake(t, Config{})
	bmc.responses["GetChannelAuthenticationCapabilities"] = []byte{0xCC}
	err := s.GetCapabilities(context.Background(), bmc)
	assert.True(t, codec.IsCompletionCode(err, codec.CompletionCodeInvalidField))
}

func TestNextSequence_Wraps(t *testing.T) {
	s, err := New(Config{})
	require.NoError(t, err)
	s.sequence = 0xFFFFFFFF
	assert.Equal(t, uint32(1), s.NextSequence())
	assert.Equal(t, uint32(2), s.NextSequence())
}

func TestHeader_SequenceAdvancesOnlyWhenActive(t *testing.T) {
	s, err := New(Config{})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		h, err := s.Header(nil)
		require.NoError(t, err)
		assert.Zero(t, h.Sequence)
	}
	assert.Zero(t, s.Sequence())
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Username: "a-user-name-longer-than-16"})
	assert.Error(t, err)
	_, err = New(Config{Password: "a-password-longer-than-16"})
	assert.Error(t, err)

	s, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, uint32(DefaultInitialOutboundSequence), s.cfg.InitialOutboundSequence)
	assert.Equal(t, uint8(msg.ChannelCurrent), s.cfg.Channel)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "challenge-issued", ChallengeIssued.String())
	assert.Equal(t, "state(42)", State(42).String())
}
