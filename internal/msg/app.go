package msg

import "github.com/tjst-t/go-ipmi/internal/codec"

// GetDeviceIDReq requests the device identity of a controller.
type GetDeviceIDReq struct{}

func (*GetDeviceIDReq) Identity() codec.Identity {
	return request("GetDeviceID", NetFnApp, CmdGetDeviceID)
}

func (*GetDeviceIDReq) Fields() []codec.Field { return nil }

// DeviceSupport lists the optional device functions a controller implements.
type DeviceSupport struct {
	Sensor             bool
	SDRRepository      bool
	SEL                bool
	FRUInventory       bool
	IPMBEventReceiver  bool
	IPMBEventGenerator bool
	Bridge             bool
	Chassis            bool
}

// GetDeviceIDRsp layout:
// [cc][device_id][sdr:1|rsvd:3|revision:4][avail:1|fw_major:7][fw_minor]
// [ipmi_version][support][manufacturer:3][product:2][aux:4 optional]
type GetDeviceIDRsp struct {
	codec.Status
	DeviceID                  uint8
	DeviceRevision            uint8
	ProvidesDeviceSDRs        bool
	FirmwareMajor             uint8
	UpdateInProgress          bool
	FirmwareMinor             uint8
	IPMIVersion               uint8
	Support                   DeviceSupport
	ManufacturerID            uint32
	ProductID                 uint16
	HasAuxiliary              bool
	AuxiliaryFirmwareRevision []byte
}

func (*GetDeviceIDRsp) Identity() codec.Identity {
	return response("GetDeviceID", NetFnApp, CmdGetDeviceID)
}

func (m *GetDeviceIDRsp) Fields() []codec.Field {
	return []codec.Field{
		codec.Completion(&m.CompletionCode),
		codec.U8("device_id", &m.DeviceID),
		codec.Bitfield("device_revision", 1,
			codec.Bits("device_revision", &m.DeviceRevision, 4),
			codec.Reserved(3),
			codec.Flag("provides_device_sdrs", &m.ProvidesDeviceSDRs),
		),
		codec.Bitfield("firmware_revision", 1,
			codec.Bits("major", &m.FirmwareMajor, 7),
			codec.Flag("update_in_progress", &m.UpdateInProgress),
		),
		codec.U8("firmware_minor", &m.FirmwareMinor),
		codec.U8("ipmi_version", &m.IPMIVersion),
		codec.Bitfield("additional_support", 1,
			codec.Flag("sensor", &m.Support.Sensor),
			codec.Flag("sdr_repository", &m.Support.SDRRepository),
			codec.Flag("sel", &m.Support.SEL),
			codec.Flag("fru_inventory", &m.Support.FRUInventory),
			codec.Flag("ipmb_event_receiver", &m.Support.IPMBEventReceiver),
			codec.Flag("ipmb_event_generator", &m.Support.IPMBEventGenerator),
			codec.Flag("bridge", &m.Support.Bridge),
			codec.Flag("chassis", &m.Support.Chassis),
		),
		codec.U24("manufacturer_id", &m.ManufacturerID),
		codec.U16("product_id", &m.ProductID),
		codec.Optional(&m.HasAuxiliary,
			codec.Bytes("auxiliary", &m.AuxiliaryFirmwareRevision, 4),
		),
	}
}

type ColdResetReq struct{}

func (*ColdResetReq) Identity() codec.Identity {
	return request("ColdReset", NetFnApp, CmdColdReset)
}

func (*ColdResetReq) Fields() []codec.Field { return nil }

type ColdResetRsp struct {
	codec.Status
}

func (*ColdResetRsp) Identity() codec.Identity {
	return response("ColdReset", NetFnApp, CmdColdReset)
}

func (m *ColdResetRsp) Fields() []codec.Field {
	return []codec.Field{codec.Completion(&m.CompletionCode)}
}

type WarmResetReq struct{}

func (*WarmResetReq) Identity() codec.Identity {
	return request("WarmReset", NetFnApp, CmdWarmReset)
}

func (*WarmResetReq) Fields() []codec.Field { return nil }

type WarmResetRsp struct {
	codec.Status
}

func (*WarmResetRsp) Identity() codec.Identity {
	return response("WarmReset", NetFnApp, CmdWarmReset)
}

func (m *WarmResetRsp) Fields() []codec.Field {
	return []codec.Field{codec.Completion(&m.CompletionCode)}
}

// Self test results
const (
	SelfTestPassed         = 0x55
	SelfTestNotImplemented = 0x56
	SelfTestCorrupted      = 0x57
	SelfTestFatal          = 0x58
)

type GetSelfTestResultsReq struct{}

func (*GetSelfTestResultsReq) Identity() codec.Identity {
	return request("GetSelfTestResults", NetFnApp, CmdGetSelfTestResults)
}

func (*GetSelfTestResultsReq) Fields() []codec.Field { return nil }

type GetSelfTestResultsRsp struct {
	codec.Status
	Result uint8
	Detail uint8
}

func (*GetSelfTestResultsRsp) Identity() codec.Identity {
	return response("GetSelfTestResults", NetFnApp, CmdGetSelfTestResults)
}

func (m *GetSelfTestResultsRsp) Fields() []codec.Field {
	return []codec.Field{
		codec.Completion(&m.CompletionCode),
		codec.U8("result", &m.Result),
		codec.U8("detail", &m.Detail),
	}
}

type GetDeviceGUIDReq struct{}

func (*GetDeviceGUIDReq) Identity() codec.Identity {
	return request("GetDeviceGUID", NetFnApp, CmdGetDeviceGUID)
}

func (*GetDeviceGUIDReq) Fields() []codec.Field { return nil }

// GetDeviceGUIDRsp carries the GUID least significant byte first.
type GetDeviceGUIDRsp struct {
	codec.Status
	GUID []byte
}

func (*GetDeviceGUIDRsp) Identity() codec.Identity {
	return response("GetDeviceGUID", NetFnApp, CmdGetDeviceGUID)
}

func (m *GetDeviceGUIDRsp) Fields() []codec.Field {
	return []codec.Field{
		codec.Completion(&m.CompletionCode),
		codec.Bytes("device_guid", &m.GUID, 16),
	}
}

type GetSystemGUIDReq struct{}

func (*GetSystemGUIDReq) Identity() codec.Identity {
	return request("GetSystemGUID", NetFnApp, CmdGetSystemGUID)
}

func (*GetSystemGUIDReq) Fields() []codec.Field { return nil }

type GetSystemGUIDRsp struct {
	codec.Status
	GUID []byte
}

func (*GetSystemGUIDRsp) Identity() codec.Identity {
	return response("GetSystemGUID", NetFnApp, CmdGetSystemGUID)
}

func (m *GetSystemGUIDRsp) Fields() []codec.Field {
	return []codec.Field{
		codec.Completion(&m.CompletionCode),
		codec.Bytes("system_guid", &m.GUID, 16),
	}
}

// Send Message tracking operations
const (
	TrackingNone     = 0
	TrackingRequest  = 1
	TrackingRequired = 2
)

// SendMessageReq forwards an encapsulated request onto another channel.
type SendMessageReq struct {
	Channel        uint8
	Authentication bool
	Encryption     bool
	Tracking       uint8
	Data           []byte
}

func (*SendMessageReq) Identity() codec.Identity {
	return request("SendMessage", NetFnApp, CmdSendMessage)
}

func (m *SendMessageReq) Fields() []codec.Field {
	return []codec.Field{
		codec.Bitfield("channel", 1,
			codec.Bits("number", &m.Channel, 4),
			codec.Flag("authentication", &m.Authentication),
			codec.Flag("encryption", &m.Encryption),
			codec.Bits("tracking", &m.Tracking, 2),
		),
		codec.Remaining("data", &m.Data),
	}
}

type SendMessageRsp struct {
	codec.Status
	Data []byte
}

func (*SendMessageRsp) Identity() codec.Identity {
	return response("SendMessage", NetFnApp, CmdSendMessage)
}

func (m *SendMessageRsp) Fields() []codec.Field {
	return []codec.Field{
		codec.Completion(&m.CompletionCode),
		codec.Remaining("data", &m.Data),
	}
}
