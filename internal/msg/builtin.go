package msg

import "github.com/tjst-t/go-ipmi/internal/codec"

var builtin = []pair{
	// App
	pairOf[GetDeviceIDReq, GetDeviceIDRsp](),
	pairOf[ColdResetReq, ColdResetRsp](),
	pairOf[WarmResetReq, WarmResetRsp](),
	pairOf[GetSelfTestResultsReq, GetSelfTestResultsRsp](),
	pairOf[GetDeviceGUIDReq, GetDeviceGUIDRsp](),
	pairOf[GetSystemGUIDReq, GetSystemGUIDRsp](),
	pairOf[SendMessageReq, SendMessageRsp](),
	pairOf[GetChannelAuthenticationCapabilitiesReq, GetChannelAuthenticationCapabilitiesRsp](),
	pairOf[GetSessionChallengeReq, GetSessionChallengeRsp](),
	pairOf[ActivateSessionReq, ActivateSessionRsp](),
	pairOf[SetSessionPrivilegeLevelReq, SetSessionPrivilegeLevelRsp](),
	pairOf[CloseSessionReq, CloseSessionRsp](),
	pairOf[GetSessionInfoReq, GetSessionInfoRsp](),

	// Chassis
	pairOf[GetChassisStatusReq, GetChassisStatusRsp](),
	pairOf[ChassisControlReq, ChassisControlRsp](),

	// Storage
	pairOf[GetFRUInventoryAreaInfoReq, GetFRUInventoryAreaInfoRsp](),
	pairOf[ReadFRUDataReq, ReadFRUDataRsp](),
	pairOf[GetSDRRepositoryInfoReq, GetSDRRepositoryInfoRsp](),
	pairOf[ReserveSDRRepositoryReq, ReserveSDRRepositoryRsp](),
	pairOf[GetSDRReq, GetSDRRsp](),
	{
		req: func() codec.Message { return &ClearSDRRepositoryReq{Key: ClearKey()} },
		rsp: of[ClearSDRRepositoryRsp](),
	},
	pairOf[GetSELInfoReq, GetSELInfoRsp](),
	pairOf[ReserveSELReq, ReserveSELRsp](),
	pairOf[GetSELEntryReq, GetSELEntryRsp](),
	{
		req: func() codec.Message { return &ClearSELReq{Key: ClearKey()} },
		rsp: of[ClearSELRsp](),
	},

	// Sensor/Event
	pairOf[GetDeviceSDRInfoReq, GetDeviceSDRInfoRsp](),
	pairOf[GetDeviceSDRReq, GetDeviceSDRRsp](),
	pairOf[ReserveDeviceSDRRepositoryReq, ReserveDeviceSDRRepositoryRsp](),

	// PICMG
	pairOf[GetPICMGPropertiesReq, GetPICMGPropertiesRsp](),
	pairOf[SetFRUActivationPolicyReq, SetFRUActivationPolicyRsp](),
	pairOf[GetFRUActivationPolicyReq, GetFRUActivationPolicyRsp](),
}
