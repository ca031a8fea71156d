package msg

import "github.com/tjst-t/go-ipmi/internal/codec"

type GetPICMGPropertiesReq struct {
	PICMGIdentifier uint8
}

func (*GetPICMGPropertiesReq) Identity() codec.Identity {
	return picmgRequest("GetPICMGProperties", CmdGetPICMGProperties)
}

func (m *GetPICMGPropertiesReq) Fields() []codec.Field {
	return []codec.Field{
		codec.U8("picmg_identifier", &m.PICMGIdentifier),
	}
}

type GetPICMGPropertiesRsp struct {
	codec.Status
	PICMGIdentifier  uint8
	ExtensionMajor   uint8
	ExtensionMinor   uint8
	MaxFRUDeviceID   uint8
	FRUDeviceIDOfIPM uint8
}

func (*GetPICMGPropertiesRsp) Identity() codec.Identity {
	return picmgResponse("GetPICMGProperties", CmdGetPICMGProperties)
}

func (m *GetPICMGPropertiesRsp) Fields() []codec.Field {
	return []codec.Field{
		codec.Completion(&m.CompletionCode),
		codec.U8("picmg_identifier", &m.PICMGIdentifier),
		codec.Bitfield("extension_version", 1,
			codec.Bits("major", &m.ExtensionMajor, 4),
			codec.Bits("minor", &m.ExtensionMinor, 4),
		),
		codec.U8("max_fru_device_id", &m.MaxFRUDeviceID),
		codec.U8("fru_device_id", &m.FRUDeviceIDOfIPM),
	}
}

// FRUActivationPolicy is the lock state of a FRU's hot swap transitions.
type FRUActivationPolicy struct {
	ActivationLocked   bool
	DeactivationLocked bool
}

func (p *FRUActivationPolicy) bitfield(name string) codec.Field {
	return codec.Bitfield(name, 1,
		codec.Flag("activation_locked", &p.ActivationLocked),
		codec.Flag("deactivation_locked", &p.DeactivationLocked),
		codec.Reserved(6),
	)
}

// SetFRUActivationPolicyReq changes the policy bits selected by Mask to
// the values in Set.
type SetFRUActivationPolicyReq struct {
	PICMGIdentifier uint8
	FRUID           uint8
	Mask            FRUActivationPolicy
	Set             FRUActivationPolicy
}

func (*SetFRUActivationPolicyReq) Identity() codec.Identity {
	return picmgRequest("SetFRUActivationPolicy", CmdSetFRUActivationPolicy)
}

func (m *SetFRUActivationPolicyReq) Fields() []codec.Field {
	return []codec.Field{
		codec.U8("picmg_identifier", &m.PICMGIdentifier),
		codec.U8("fru_id", &m.FRUID),
		m.Mask.bitfield("mask"),
		m.Set.bitfield("set"),
	}
}

type SetFRUActivationPolicyRsp struct {
	codec.Status
	PICMGIdentifier uint8
}

func (*SetFRUActivationPolicyRsp) Identity() codec.Identity {
	return picmgResponse("SetFRUActivationPolicy", CmdSetFRUActivationPolicy)
}

func (m *SetFRUActivationPolicyRsp) Fields() []codec.Field {
	return []codec.Field{
		codec.Completion(&m.CompletionCode),
		codec.U8("picmg_identifier", &m.PICMGIdentifier),
	}
}

type GetFRUActivationPolicyReq struct {
	PICMGIdentifier uint8
	FRUID           uint8
}

func (*GetFRUActivationPolicyReq) Identity() codec.Identity {
	return picmgRequest("GetFRUActivationPolicy", CmdGetFRUActivationPolicy)
}

func (m *GetFRUActivationPolicyReq) Fields() []codec.Field {
	return []codec.Field{
		codec.U8("picmg_identifier", &m.PICMGIdentifier),
		codec.U8("fru_id", &m.FRUID),
	}
}

type GetFRUActivationPolicyRsp struct {
	codec.Status
	PICMGIdentifier uint8
	Policy          FRUActivationPolicy
}

func (*GetFRUActivationPolicyRsp) Identity() codec.Identity {
	return picmgResponse("GetFRUActivationPolicy", CmdGetFRUActivationPolicy)
}

func (m *GetFRUActivationPolicyRsp) Fields() []codec.Field {
	return []codec.Field{
		codec.Completion(&m.CompletionCode),
		codec.U8("picmg_identifier", &m.PICMGIdentifier),
		m.Policy.bitfield("policy"),
	}
}
