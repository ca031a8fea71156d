package msg

import "github.com/tjst-t/go-ipmi/internal/codec"

// Network function codes (request side; responses are NetFn|1)
const (
	NetFnChassis        = 0x00
	NetFnBridge         = 0x02
	NetFnSensorEvent    = 0x04
	NetFnApp            = 0x06
	NetFnFirmware       = 0x08
	NetFnStorage        = 0x0A
	NetFnTransport      = 0x0C
	NetFnGroupExtension = 0x2C
	NetFnOEM            = 0x2E
)

// App commands
const (
	CmdGetDeviceID                = 0x01
	CmdColdReset                  = 0x02
	CmdWarmReset                  = 0x03
	CmdGetSelfTestResults         = 0x04
	CmdGetDeviceGUID              = 0x08
	CmdSendMessage                = 0x34
	CmdGetSystemGUID              = 0x37
	CmdGetChannelAuthCapabilities = 0x38
	CmdGetSessionChallenge        = 0x39
	CmdActivateSession            = 0x3A
	CmdSetSessionPrivilege        = 0x3B
	CmdCloseSession               = 0x3C
	CmdGetSessionInfo             = 0x3D
)

// Chassis commands
const (
	CmdGetChassisStatus = 0x01
	CmdChassisControl   = 0x02
)

// Storage commands
const (
	CmdGetFRUInventoryAreaInfo = 0x10
	CmdReadFRUData             = 0x11
	CmdGetSDRRepositoryInfo    = 0x20
	CmdReserveSDRRepository    = 0x22
	CmdGetSDR                  = 0x23
	CmdClearSDRRepository      = 0x27
	CmdGetSELInfo              = 0x40
	CmdReserveSEL              = 0x42
	CmdGetSELEntry             = 0x43
	CmdClearSEL                = 0x47
)

// Sensor/Event commands
const (
	CmdGetDeviceSDRInfo           = 0x20
	CmdGetDeviceSDR               = 0x21
	CmdReserveDeviceSDRRepository = 0x22
)

// PICMG commands
const (
	CmdGetPICMGProperties     = 0x00
	CmdSetFRUActivationPolicy = 0x0A
	CmdGetFRUActivationPolicy = 0x0B
)

// PICMGIdentifier is the group extension code of PICMG defined messages.
const PICMGIdentifier = 0x00

// AuthType is an IPMI 1.5 session authentication type.
type AuthType uint8

const (
	AuthTypeNone     AuthType = 0x00
	AuthTypeMD2      AuthType = 0x01
	AuthTypeMD5      AuthType = 0x02
	AuthTypeStraight AuthType = 0x04
	AuthTypeOEM      AuthType = 0x05
	AuthTypeRMCPPlus AuthType = 0x06
)

func (t AuthType) String() string {
	switch t {
	case AuthTypeNone:
		return "none"
	case AuthTypeMD2:
		return "md2"
	case AuthTypeMD5:
		return "md5"
	case AuthTypeStraight:
		return "password"
	case AuthTypeOEM:
		return "oem"
	case AuthTypeRMCPPlus:
		return "rmcp+"
	}
	return "unknown"
}

// Privilege is a session privilege level.
type Privilege uint8

const (
	PrivilegeCallback      Privilege = 0x01
	PrivilegeUser          Privilege = 0x02
	PrivilegeOperator      Privilege = 0x03
	PrivilegeAdministrator Privilege = 0x04
	PrivilegeOEM           Privilege = 0x05
)

func (p Privilege) String() string {
	switch p {
	case PrivilegeCallback:
		return "callback"
	case PrivilegeUser:
		return "user"
	case PrivilegeOperator:
		return "operator"
	case PrivilegeAdministrator:
		return "administrator"
	case PrivilegeOEM:
		return "oem"
	}
	return "unknown"
}

// ParsePrivilege maps a privilege name to its level.
func ParsePrivilege(name string) (Privilege, bool) {
	for p := PrivilegeCallback; p <= PrivilegeOEM; p++ {
		if p.String() == name {
			return p, true
		}
	}
	return 0, false
}

func request(name string, netFn, cmd uint8) codec.Identity {
	return codec.Identity{Name: name + "Req", NetFn: netFn, Command: cmd}
}

func response(name string, netFn, cmd uint8) codec.Identity {
	return codec.Identity{Name: name + "Rsp", NetFn: netFn | 0x01, Command: cmd}
}

func picmgRequest(name string, cmd uint8) codec.Identity {
	id := request(name, NetFnGroupExtension, cmd)
	id.Group = codec.Group(PICMGIdentifier)
	return id
}

func picmgResponse(name string, cmd uint8) codec.Identity {
	id := response(name, NetFnGroupExtension, cmd)
	id.Group = codec.Group(PICMGIdentifier)
	return id
}

// RequestGroup returns the group extension carried by a request body.
func RequestGroup(netFn uint8, body []byte) codec.GroupExtension {
	if netFn&^0x01 != NetFnGroupExtension || len(body) == 0 {
		return codec.GroupExtension{}
	}
	return codec.Group(body[0])
}

// ResponseGroup returns the group extension carried by a response body,
// which follows the completion code.
func ResponseGroup(netFn uint8, body []byte) codec.GroupExtension {
	if netFn&^0x01 != NetFnGroupExtension || len(body) < 2 {
		return codec.GroupExtension{}
	}
	return codec.Group(body[1])
}
