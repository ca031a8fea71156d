package msg

import "github.com/tjst-t/go-ipmi/internal/codec"

// Chassis control operations
const (
	ChassisPowerDown           = 0x00
	ChassisPowerUp             = 0x01
	ChassisPowerCycle          = 0x02
	ChassisHardReset           = 0x03
	ChassisDiagnosticInterrupt = 0x04
	ChassisSoftShutdown        = 0x05
)

// Power restore policies
const (
	PowerRestoreAlwaysOff = 0x00
	PowerRestorePrevious  = 0x01
	PowerRestoreAlwaysOn  = 0x02
	PowerRestoreUnknown   = 0x03
)

type GetChassisStatusReq struct{}

func (*GetChassisStatusReq) Identity() codec.Identity {
	return request("GetChassisStatus", NetFnChassis, CmdGetChassisStatus)
}

func (*GetChassisStatusReq) Fields() []codec.Field { return nil }

// PowerState is the current power state byte of Get Chassis Status.
type PowerState struct {
	PowerOn            bool
	PowerOverload      bool
	Interlock          bool
	PowerFault         bool
	PowerControlFault  bool
	PowerRestorePolicy uint8
}

// LastPowerEvent records what caused the last power transition.
type LastPowerEvent struct {
	ACFailed       bool
	PowerOverload  bool
	PowerInterlock bool
	PowerFault     bool
	PowerOnByIPMI  bool
}

// MiscChassisState is the third status byte of Get Chassis Status.
type MiscChassisState struct {
	Intrusion         bool
	FrontPanelLockout bool
	DriveFault        bool
	CoolingFault      bool
	IdentifyState     uint8
	IdentifySupported bool
}

type GetChassisStatusRsp struct {
	codec.Status
	Power                   PowerState
	LastEvent               LastPowerEvent
	Misc                    MiscChassisState
	HasFrontPanelButtons    bool
	FrontPanelButtonControl uint8
}

func (*GetChassisStatusRsp) Identity() codec.Identity {
	return response("GetChassisStatus", NetFnChassis, CmdGetChassisStatus)
}

func (m *GetChassisStatusRsp) Fields() []codec.Field {
	return []codec.Field{
		codec.Completion(&m.CompletionCode),
		codec.Bitfield("current_power_state", 1,
			codec.Flag("power_on", &m.Power.PowerOn),
			codec.Flag("power_overload", &m.Power.PowerOverload),
			codec.Flag("interlock", &m.Power.Interlock),
			codec.Flag("power_fault", &m.Power.PowerFault),
			codec.Flag("power_control_fault", &m.Power.PowerControlFault),
			codec.Bits("power_restore_policy", &m.Power.PowerRestorePolicy, 2),
			codec.Reserved(1),
		),
		codec.Bitfield("last_power_event", 1,
			codec.Flag("ac_failed", &m.LastEvent.ACFailed),
			codec.Flag("power_overload", &m.LastEvent.PowerOverload),
			codec.Flag("power_interlock", &m.LastEvent.PowerInterlock),
			codec.Flag("power_fault", &m.LastEvent.PowerFault),
			codec.Flag("power_on_via_ipmi", &m.LastEvent.PowerOnByIPMI),
			codec.Reserved(3),
		),
		codec.Bitfield("misc_chassis_state", 1,
			codec.Flag("chassis_intrusion", &m.Misc.Intrusion),
			codec.Flag("front_panel_lockout", &m.Misc.FrontPanelLockout),
			codec.Flag("drive_fault", &m.Misc.DriveFault),
			codec.Flag("cooling_fault", &m.Misc.CoolingFault),
			codec.Bits("identify_state", &m.Misc.IdentifyState, 2),
			codec.Flag("identify_supported", &m.Misc.IdentifySupported),
			codec.Reserved(1),
		),
		codec.Optional(&m.HasFrontPanelButtons,
			codec.U8("front_panel_button_capabilities", &m.FrontPanelButtonControl),
		),
	}
}

type ChassisControlReq struct {
	Control uint8
}

func (*ChassisControlReq) Identity() codec.Identity {
	return request("ChassisControl", NetFnChassis, CmdChassisControl)
}

func (m *ChassisControlReq) Fields() []codec.Field {
	return []codec.Field{
		codec.Bitfield("control", 1,
			codec.Bits("option", &m.Control, 4),
			codec.Reserved(4),
		),
	}
}

type ChassisControlRsp struct {
	codec.Status
}

func (*ChassisControlRsp) Identity() codec.Identity {
	return response("ChassisControl", NetFnChassis, CmdChassisControl)
}

func (m *ChassisControlRsp) Fields() []codec.Field {
	return []codec.Field{codec.Completion(&m.CompletionCode)}
}
