package msg

import "github.com/tjst-t/go-ipmi/internal/codec"

// Get Device SDR Info operations
const (
	DeviceSDRCountSensors = 0x00
	DeviceSDRCountRecords = 0x01
)

type GetDeviceSDRInfoReq struct {
	HasOperation bool
	Operation    uint8
}

func (*GetDeviceSDRInfoReq) Identity() codec.Identity {
	return request("GetDeviceSDRInfo", NetFnSensorEvent, CmdGetDeviceSDRInfo)
}

func (m *GetDeviceSDRInfoReq) Fields() []codec.Field {
	return []codec.Field{
		codec.Optional(&m.HasOperation,
			codec.Bitfield("operation", 1,
				codec.Bits("count", &m.Operation, 1),
				codec.Reserved(7),
			),
		),
	}
}

// LUNs lists which logical units carry sensors.
type LUNs struct {
	LUN0 bool
	LUN1 bool
	LUN2 bool
	LUN3 bool
}

type GetDeviceSDRInfoRsp struct {
	codec.Status
	Number            uint8
	LUNs              LUNs
	DynamicPopulation bool
	HasChange         bool
	PopulationChange  uint32
}

func (*GetDeviceSDRInfoRsp) Identity() codec.Identity {
	return response("GetDeviceSDRInfo", NetFnSensorEvent, CmdGetDeviceSDRInfo)
}

func (m *GetDeviceSDRInfoRsp) Fields() []codec.Field {
	return []codec.Field{
		codec.Completion(&m.CompletionCode),
		codec.U8("number", &m.Number),
		codec.Bitfield("flags", 1,
			codec.Flag("lun0_has_sensors", &m.LUNs.LUN0),
			codec.Flag("lun1_has_sensors", &m.LUNs.LUN1),
			codec.Flag("lun2_has_sensors", &m.LUNs.LUN2),
			codec.Flag("lun3_has_sensors", &m.LUNs.LUN3),
			codec.Reserved(3),
			codec.Flag("dynamic_population", &m.DynamicPopulation),
		),
		codec.Optional(&m.HasChange,
			codec.U32("sensor_population_change", &m.PopulationChange),
		),
	}
}

type GetDeviceSDRReq struct {
	ReservationID uint16
	RecordID      uint16
	Offset        uint8
	Count         uint8
}

func (*GetDeviceSDRReq) Identity() codec.Identity {
	return request("GetDeviceSDR", NetFnSensorEvent, CmdGetDeviceSDR)
}

func (m *GetDeviceSDRReq) Fields() []codec.Field {
	return readRecordFields(&m.ReservationID, &m.RecordID, &m.Offset, &m.Count)
}

type GetDeviceSDRRsp struct {
	codec.Status
	NextRecordID uint16
	Data         []byte
}

func (*GetDeviceSDRRsp) Identity() codec.Identity {
	return response("GetDeviceSDR", NetFnSensorEvent, CmdGetDeviceSDR)
}

func (m *GetDeviceSDRRsp) Fields() []codec.Field {
	return recordDataFields(&m.CompletionCode, &m.NextRecordID, &m.Data)
}

type ReserveDeviceSDRRepositoryReq struct{}

func (*ReserveDeviceSDRRepositoryReq) Identity() codec.Identity {
	return request("ReserveDeviceSDRRepository", NetFnSensorEvent, CmdReserveDeviceSDRRepository)
}

func (*ReserveDeviceSDRRepositoryReq) Fields() []codec.Field { return nil }

type ReserveDeviceSDRRepositoryRsp struct {
	codec.Status
	ReservationID uint16
}

func (*ReserveDeviceSDRRepositoryRsp) Identity() codec.Identity {
	return response("ReserveDeviceSDRRepository", NetFnSensorEvent, CmdReserveDeviceSDRRepository)
}

func (m *ReserveDeviceSDRRepositoryRsp) Fields() []codec.Field {
	return []codec.Field{
		codec.Completion(&m.CompletionCode),
		codec.U16("reservation_id", &m.ReservationID),
	}
}
