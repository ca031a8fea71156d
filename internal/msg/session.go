package msg

import "github.com/tjst-t/go-ipmi/internal/codec"

// ChannelCurrent addresses the channel the request arrives on.
const ChannelCurrent = 0x0E

// GetChannelAuthenticationCapabilitiesReq asks which authentication types a
// channel accepts for the requested privilege level.
type GetChannelAuthenticationCapabilitiesReq struct {
	Channel   uint8
	IPMIv2    bool
	Privilege Privilege
}

func (*GetChannelAuthenticationCapabilitiesReq) Identity() codec.Identity {
	return request("GetChannelAuthenticationCapabilities", NetFnApp, CmdGetChannelAuthCapabilities)
}

func (m *GetChannelAuthenticationCapabilitiesReq) Fields() []codec.Field {
	return []codec.Field{
		codec.Bitfield("channel", 1,
			codec.Bits("number", &m.Channel, 4),
			codec.Reserved(3),
			codec.Flag("ipmi_v2", &m.IPMIv2),
		),
		codec.Bitfield("privilege", 1,
			codec.Bits("level", &m.Privilege, 4),
			codec.Reserved(4),
		),
	}
}

// AuthTypeSupport is the authentication type bitmask of a channel.
type AuthTypeSupport struct {
	None     bool
	MD2      bool
	MD5      bool
	Straight bool
	OEM      bool
}

// Supports reports whether t is enabled in the mask.
func (s AuthTypeSupport) Supports(t AuthType) bool {
	switch t {
	case AuthTypeNone:
		return s.None
	case AuthTypeMD2:
		return s.MD2
	case AuthTypeMD5:
		return s.MD5
	case AuthTypeStraight:
		return s.Straight
	case AuthTypeOEM:
		return s.OEM
	}
	return false
}

// LoginStatus describes which kinds of login a channel permits.
type LoginStatus struct {
	Anonymous              bool
	NullUsernames          bool
	NonNullUsernames       bool
	UserLevelAuthDisabled  bool
	PerMessageAuthDisabled bool
	KGRequired             bool
}

type GetChannelAuthenticationCapabilitiesRsp struct {
	codec.Status
	ChannelNumber        uint8
	Support              AuthTypeSupport
	ExtendedCapabilities bool
	Login                LoginStatus
	SupportsIPMIv15      bool
	SupportsIPMIv20      bool
	OEMID                uint32
	OEMAuxiliary         uint8
}

func (*GetChannelAuthenticationCapabilitiesRsp) Identity() codec.Identity {
	return response("GetChannelAuthenticationCapabilities", NetFnApp, CmdGetChannelAuthCapabilities)
}

func (m *GetChannelAuthenticationCapabilitiesRsp) Fields() []codec.Field {
	return []codec.Field{
		codec.Completion(&m.CompletionCode),
		codec.U8("channel_number", &m.ChannelNumber),
		codec.Bitfield("support", 1,
			codec.Flag("none", &m.Support.None),
			codec.Flag("md2", &m.Support.MD2),
			codec.Flag("md5", &m.Support.MD5),
			codec.Reserved(1),
			codec.Flag("straight", &m.Support.Straight),
			codec.Flag("oem", &m.Support.OEM),
			codec.Reserved(1),
			codec.Flag("ipmi_v2_extended", &m.ExtendedCapabilities),
		),
		codec.Bitfield("login", 1,
			codec.Flag("anonymous", &m.Login.Anonymous),
			codec.Flag("null_usernames", &m.Login.NullUsernames),
			codec.Flag("non_null_usernames", &m.Login.NonNullUsernames),
			codec.Flag("user_level_auth_disabled", &m.Login.UserLevelAuthDisabled),
			codec.Flag("per_message_auth_disabled", &m.Login.PerMessageAuthDisabled),
			codec.Flag("kg_required", &m.Login.KGRequired),
			codec.Reserved(2),
		),
		codec.Bitfield("extended", 1,
			codec.Flag("ipmi_v1_5", &m.SupportsIPMIv15),
			codec.Flag("ipmi_v2_0", &m.SupportsIPMIv20),
			codec.Reserved(6),
		),
		codec.U24("oem_id", &m.OEMID),
		codec.U8("oem_auxiliary", &m.OEMAuxiliary),
	}
}

type GetSessionChallengeReq struct {
	AuthType AuthType
	Username string
}

func (*GetSessionChallengeReq) Identity() codec.Identity {
	return request("GetSessionChallenge", NetFnApp, CmdGetSessionChallenge)
}

func (m *GetSessionChallengeReq) Fields() []codec.Field {
	return []codec.Field{
		codec.Bitfield("authentication", 1,
			codec.Bits("type", &m.AuthType, 4),
			codec.Reserved(4),
		),
		codec.String("user_name", &m.Username, 16),
	}
}

type GetSessionChallengeRsp struct {
	codec.Status
	TemporarySessionID uint32
	Challenge          []byte
}

func (*GetSessionChallengeRsp) Identity() codec.Identity {
	return response("GetSessionChallenge", NetFnApp, CmdGetSessionChallenge)
}

func (m *GetSessionChallengeRsp) Fields() []codec.Field {
	return []codec.Field{
		codec.Completion(&m.CompletionCode),
		codec.U32("temporary_session_id", &m.TemporarySessionID),
		codec.Bytes("challenge_string", &m.Challenge, 16),
	}
}

type ActivateSessionReq struct {
	AuthType                AuthType
	Privilege               Privilege
	Challenge               []byte
	InitialOutboundSequence uint32
}

func (*ActivateSessionReq) Identity() codec.Identity {
	return request("ActivateSession", NetFnApp, CmdActivateSession)
}

func (m *ActivateSessionReq) Fields() []codec.Field {
	return []codec.Field{
		codec.Bitfield("authentication", 1,
			codec.Bits("type", &m.AuthType, 4),
			codec.Reserved(4),
		),
		codec.Bitfield("privilege", 1,
			codec.Bits("level", &m.Privilege, 4),
			codec.Reserved(4),
		),
		codec.Bytes("challenge_string", &m.Challenge, 16),
		codec.U32("initial_outbound_sequence_number", &m.InitialOutboundSequence),
	}
}

type ActivateSessionRsp struct {
	codec.Status
	AuthType               AuthType
	SessionID              uint32
	InitialInboundSequence uint32
	MaximumPrivilege       Privilege
}

func (*ActivateSessionRsp) Identity() codec.Identity {
	return response("ActivateSession", NetFnApp, CmdActivateSession)
}

func (m *ActivateSessionRsp) Fields() []codec.Field {
	return []codec.Field{
		codec.Completion(&m.CompletionCode),
		codec.Bitfield("authentication", 1,
			codec.Bits("type", &m.AuthType, 4),
			codec.Reserved(4),
		),
		codec.U32("session_id", &m.SessionID),
		codec.U32("initial_inbound_sequence_number", &m.InitialInboundSequence),
		codec.Bitfield("privilege", 1,
			codec.Bits("maximum_allowed", &m.MaximumPrivilege, 4),
			codec.Reserved(4),
		),
	}
}

type SetSessionPrivilegeLevelReq struct {
	Privilege Privilege
}

func (*SetSessionPrivilegeLevelReq) Identity() codec.Identity {
	return request("SetSessionPrivilegeLevel", NetFnApp, CmdSetSessionPrivilege)
}

func (m *SetSessionPrivilegeLevelReq) Fields() []codec.Field {
	return []codec.Field{
		codec.Bitfield("privilege", 1,
			codec.Bits("requested", &m.Privilege, 4),
			codec.Reserved(4),
		),
	}
}

type SetSessionPrivilegeLevelRsp struct {
	codec.Status
	Privilege Privilege
}

func (*SetSessionPrivilegeLevelRsp) Identity() codec.Identity {
	return response("SetSessionPrivilegeLevel", NetFnApp, CmdSetSessionPrivilege)
}

func (m *SetSessionPrivilegeLevelRsp) Fields() []codec.Field {
	return []codec.Field{
		codec.Completion(&m.CompletionCode),
		codec.Bitfield("privilege", 1,
			codec.Bits("new", &m.Privilege, 4),
			codec.Reserved(4),
		),
	}
}

// CloseSessionReq closes SessionID, or the session named by SessionHandle
// when SessionID is zero.
type CloseSessionReq struct {
	SessionID     uint32
	SessionHandle uint8
}

func (*CloseSessionReq) Identity() codec.Identity {
	return request("CloseSession", NetFnApp, CmdCloseSession)
}

func (m *CloseSessionReq) Fields() []codec.Field {
	return []codec.Field{
		codec.U32("session_id", &m.SessionID),
		codec.Conditional(func() bool { return m.SessionID == 0 },
			codec.U8("session_handle", &m.SessionHandle),
		),
	}
}

type CloseSessionRsp struct {
	codec.Status
}

func (*CloseSessionRsp) Identity() codec.Identity {
	return response("CloseSession", NetFnApp, CmdCloseSession)
}

func (m *CloseSessionRsp) Fields() []codec.Field {
	return []codec.Field{codec.Completion(&m.CompletionCode)}
}

// Session index selectors for Get Session Info
const (
	SessionIndexCurrent  = 0x00
	SessionIndexByHandle = 0xFE
	SessionIndexByID     = 0xFF
)

type GetSessionInfoReq struct {
	Index         uint8
	SessionHandle uint8
	SessionID     uint32
}

func (*GetSessionInfoReq) Identity() codec.Identity {
	return request("GetSessionInfo", NetFnApp, CmdGetSessionInfo)
}

func (m *GetSessionInfoReq) Fields() []codec.Field {
	return []codec.Field{
		codec.U8("session_index", &m.Index),
		codec.Conditional(func() bool { return m.Index == SessionIndexByHandle },
			codec.U8("session_handle", &m.SessionHandle),
		),
		codec.Conditional(func() bool { return m.Index == SessionIndexByID },
			codec.U32("session_id", &m.SessionID),
		),
	}
}

// GetSessionInfoRsp only carries the per-session tail when SessionHandle
// names an active session.
type GetSessionInfoRsp struct {
	codec.Status
	SessionHandle    uint8
	PossibleSessions uint8
	ActiveSessions   uint8
	UserID           uint8
	Privilege        Privilege
	ChannelNumber    uint8
	ProtocolAux      uint8
}

func (*GetSessionInfoRsp) Identity() codec.Identity {
	return response("GetSessionInfo", NetFnApp, CmdGetSessionInfo)
}

func (m *GetSessionInfoRsp) Fields() []codec.Field {
	return []codec.Field{
		codec.Completion(&m.CompletionCode),
		codec.U8("session_handle", &m.SessionHandle),
		codec.Bitfield("possible", 1,
			codec.Bits("count", &m.PossibleSessions, 6),
			codec.Reserved(2),
		),
		codec.Bitfield("active", 1,
			codec.Bits("count", &m.ActiveSessions, 6),
			codec.Reserved(2),
		),
		codec.Conditional(func() bool { return m.SessionHandle != 0 },
			codec.Bitfield("user", 1,
				codec.Bits("id", &m.UserID, 6),
				codec.Reserved(2),
			),
			codec.Bitfield("privilege", 1,
				codec.Bits("level", &m.Privilege, 4),
				codec.Reserved(4),
			),
			codec.Bitfield("channel", 1,
				codec.Bits("number", &m.ChannelNumber, 4),
				codec.Bits("protocol_aux", &m.ProtocolAux, 4),
			),
		),
	}
}
