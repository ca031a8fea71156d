package msg

import "github.com/tjst-t/go-ipmi/internal/codec"

// Clear SDR / Clear SEL operations and progress values
const (
	ClearInitiate   = 0xAA
	ClearGetStatus  = 0x00
	EraseInProgress = 0x00
	EraseCompleted  = 0x01
)

// ClearKey returns the confirmation bytes that must accompany a clear request.
func ClearKey() []byte { return []byte{'C', 'L', 'R'} }

// Record ids with special meaning. As a next record id, RecordLast marks the
// end of the repository.
const (
	RecordFirst = 0x0000
	RecordLast  = 0xFFFF
)

type GetFRUInventoryAreaInfoReq struct {
	FRUID uint8
}

func (*GetFRUInventoryAreaInfoReq) Identity() codec.Identity {
	return request("GetFRUInventoryAreaInfo", NetFnStorage, CmdGetFRUInventoryAreaInfo)
}

func (m *GetFRUInventoryAreaInfoReq) Fields() []codec.Field {
	return []codec.Field{codec.U8("fru_id", &m.FRUID)}
}

type GetFRUInventoryAreaInfoRsp struct {
	codec.Status
	AreaSize      uint16
	AccessByWords bool
}

func (*GetFRUInventoryAreaInfoRsp) Identity() codec.Identity {
	return response("GetFRUInventoryAreaInfo", NetFnStorage, CmdGetFRUInventoryAreaInfo)
}

func (m *GetFRUInventoryAreaInfoRsp) Fields() []codec.Field {
	return []codec.Field{
		codec.Completion(&m.CompletionCode),
		codec.U16("area_size", &m.AreaSize),
		codec.Bitfield("area_info", 1,
			codec.Flag("access", &m.AccessByWords),
			codec.Reserved(7),
		),
	}
}

type ReadFRUDataReq struct {
	FRUID  uint8
	Offset uint16
	Count  uint8
}

func (*ReadFRUDataReq) Identity() codec.Identity {
	return request("ReadFRUData", NetFnStorage, CmdReadFRUData)
}

func (m *ReadFRUDataReq) Fields() []codec.Field {
	return []codec.Field{
		codec.U8("fru_id", &m.FRUID),
		codec.U16("offset", &m.Offset),
		codec.U8("count", &m.Count),
	}
}

type ReadFRUDataRsp struct {
	codec.Status
	Count uint8
	Data  []byte
}

func (*ReadFRUDataRsp) Identity() codec.Identity {
	return response("ReadFRUData", NetFnStorage, CmdReadFRUData)
}

func (m *ReadFRUDataRsp) Fields() []codec.Field {
	return []codec.Field{
		codec.Completion(&m.CompletionCode),
		codec.U8("count", &m.Count),
		codec.VarBytes("data", &m.Data, func() int { return int(m.Count) }),
	}
}

// RepositorySupport is the operation support byte of the SDR and SEL info
// responses.
type RepositorySupport struct {
	AllocationInfo bool
	Reserve        bool
	PartialAdd     bool
	Delete         bool
	UpdateType     uint8
	Overflow       bool
}

type GetSDRRepositoryInfoReq struct{}

func (*GetSDRRepositoryInfoReq) Identity() codec.Identity {
	return request("GetSDRRepositoryInfo", NetFnStorage, CmdGetSDRRepositoryInfo)
}

func (*GetSDRRepositoryInfoReq) Fields() []codec.Field { return nil }

type GetSDRRepositoryInfoRsp struct {
	codec.Status
	Version            uint8
	RecordCount        uint16
	FreeSpace          uint16
	MostRecentAddition uint32
	MostRecentErase    uint32
	Support            RepositorySupport
}

func (*GetSDRRepositoryInfoRsp) Identity() codec.Identity {
	return response("GetSDRRepositoryInfo", NetFnStorage, CmdGetSDRRepositoryInfo)
}

func (m *GetSDRRepositoryInfoRsp) Fields() []codec.Field {
	return []codec.Field{
		codec.Completion(&m.CompletionCode),
		codec.U8("sdr_version", &m.Version),
		codec.U16("record_count", &m.RecordCount),
		codec.U16("free_space", &m.FreeSpace),
		codec.U32("most_recent_addition", &m.MostRecentAddition),
		codec.U32("most_recent_erase", &m.MostRecentErase),
		codec.Bitfield("support", 1,
			codec.Flag("get_allocation_info", &m.Support.AllocationInfo),
			codec.Flag("reserve", &m.Support.Reserve),
			codec.Flag("partial_add", &m.Support.PartialAdd),
			codec.Flag("delete", &m.Support.Delete),
			codec.Reserved(1),
			codec.Bits("update_type", &m.Support.UpdateType, 2),
			codec.Flag("overflow", &m.Support.Overflow),
		),
	}
}

type ReserveSDRRepositoryReq struct{}

func (*ReserveSDRRepositoryReq) Identity() codec.Identity {
	return request("ReserveSDRRepository", NetFnStorage, CmdReserveSDRRepository)
}

func (*ReserveSDRRepositoryReq) Fields() []codec.Field { return nil }

type ReserveSDRRepositoryRsp struct {
	codec.Status
	ReservationID uint16
}

func (*ReserveSDRRepositoryRsp) Identity() codec.Identity {
	return response("ReserveSDRRepository", NetFnStorage, CmdReserveSDRRepository)
}

func (m *ReserveSDRRepositoryRsp) Fields() []codec.Field {
	return []codec.Field{
		codec.Completion(&m.CompletionCode),
		codec.U16("reservation_id", &m.ReservationID),
	}
}

// GetSDRReq reads Count bytes of record RecordID starting at Offset.
// Count 0xFF reads the entire record.
type GetSDRReq struct {
	ReservationID uint16
	RecordID      uint16
	Offset        uint8
	Count         uint8
}

func (*GetSDRReq) Identity() codec.Identity {
	return request("GetSDR", NetFnStorage, CmdGetSDR)
}

func (m *GetSDRReq) Fields() []codec.Field {
	return readRecordFields(&m.ReservationID, &m.RecordID, &m.Offset, &m.Count)
}

type GetSDRRsp struct {
	codec.Status
	NextRecordID uint16
	Data         []byte
}

func (*GetSDRRsp) Identity() codec.Identity {
	return response("GetSDR", NetFnStorage, CmdGetSDR)
}

func (m *GetSDRRsp) Fields() []codec.Field {
	return recordDataFields(&m.CompletionCode, &m.NextRecordID, &m.Data)
}

type ClearSDRRepositoryReq struct {
	ReservationID uint16
	Key           []byte
	Command       uint8
}

func (*ClearSDRRepositoryReq) Identity() codec.Identity {
	return request("ClearSDRRepository", NetFnStorage, CmdClearSDRRepository)
}

func (m *ClearSDRRepositoryReq) Fields() []codec.Field {
	return clearFields(&m.ReservationID, &m.Key, &m.Command)
}

type ClearSDRRepositoryRsp struct {
	codec.Status
	Progress uint8
}

func (*ClearSDRRepositoryRsp) Identity() codec.Identity {
	return response("ClearSDRRepository", NetFnStorage, CmdClearSDRRepository)
}

func (m *ClearSDRRepositoryRsp) Fields() []codec.Field {
	return clearStatusFields(&m.CompletionCode, &m.Progress)
}

type GetSELInfoReq struct{}

func (*GetSELInfoReq) Identity() codec.Identity {
	return request("GetSELInfo", NetFnStorage, CmdGetSELInfo)
}

func (*GetSELInfoReq) Fields() []codec.Field { return nil }

type GetSELInfoRsp struct {
	codec.Status
	Version            uint8
	Entries            uint16
	FreeSpace          uint16
	MostRecentAddition uint32
	MostRecentErase    uint32
	Support            RepositorySupport
}

func (*GetSELInfoRsp) Identity() codec.Identity {
	return response("GetSELInfo", NetFnStorage, CmdGetSELInfo)
}

func (m *GetSELInfoRsp) Fields() []codec.Field {
	return []codec.Field{
		codec.Completion(&m.CompletionCode),
		codec.U8("version", &m.Version),
		codec.U16("entries", &m.Entries),
		codec.U16("free_space", &m.FreeSpace),
		codec.U32("most_recent_addition", &m.MostRecentAddition),
		codec.U32("most_recent_erase", &m.MostRecentErase),
		codec.Bitfield("support", 1,
			codec.Flag("get_allocation_info", &m.Support.AllocationInfo),
			codec.Flag("reserve", &m.Support.Reserve),
			codec.Flag("partial_add", &m.Support.PartialAdd),
			codec.Flag("delete", &m.Support.Delete),
			codec.Reserved(3),
			codec.Flag("overflow", &m.Support.Overflow),
		),
	}
}

type ReserveSELReq struct{}

func (*ReserveSELReq) Identity() codec.Identity {
	return request("ReserveSEL", NetFnStorage, CmdReserveSEL)
}

func (*ReserveSELReq) Fields() []codec.Field { return nil }

type ReserveSELRsp struct {
	codec.Status
	ReservationID uint16
}

func (*ReserveSELRsp) Identity() codec.Identity {
	return response("ReserveSEL", NetFnStorage, CmdReserveSEL)
}

func (m *ReserveSELRsp) Fields() []codec.Field {
	return []codec.Field{
		codec.Completion(&m.CompletionCode),
		codec.U16("reservation_id", &m.ReservationID),
	}
}

type GetSELEntryReq struct {
	ReservationID uint16
	RecordID      uint16
	Offset        uint8
	Count         uint8
}

func (*GetSELEntryReq) Identity() codec.Identity {
	return request("GetSELEntry", NetFnStorage, CmdGetSELEntry)
}

func (m *GetSELEntryReq) Fields() []codec.Field {
	return readRecordFields(&m.ReservationID, &m.RecordID, &m.Offset, &m.Count)
}

type GetSELEntryRsp struct {
	codec.Status
	NextRecordID uint16
	Data         []byte
}

func (*GetSELEntryRsp) Identity() codec.Identity {
	return response("GetSELEntry", NetFnStorage, CmdGetSELEntry)
}

func (m *GetSELEntryRsp) Fields() []codec.Field {
	return recordDataFields(&m.CompletionCode, &m.NextRecordID, &m.Data)
}

type ClearSELReq struct {
	ReservationID uint16
	Key           []byte
	Command       uint8
}

func (*ClearSELReq) Identity() codec.Identity {
	return request("ClearSEL", NetFnStorage, CmdClearSEL)
}

func (m *ClearSELReq) Fields() []codec.Field {
	return clearFields(&m.ReservationID, &m.Key, &m.Command)
}

type ClearSELRsp struct {
	codec.Status
	Progress uint8
}

func (*ClearSELRsp) Identity() codec.Identity {
	return response("ClearSEL", NetFnStorage, CmdClearSEL)
}

func (m *ClearSELRsp) Fields() []codec.Field {
	return clearStatusFields(&m.CompletionCode, &m.Progress)
}

func readRecordFields(reservation, record *uint16, offset, count *uint8) []codec.Field {
	return []codec.Field{
		codec.U16("reservation_id", reservation),
		codec.U16("record_id", record),
		codec.U8("offset", offset),
		codec.U8("bytes_to_read", count),
	}
}

func recordDataFields(cc *codec.CompletionCode, next *uint16, data *[]byte) []codec.Field {
	return []codec.Field{
		codec.Completion(cc),
		codec.U16("next_record_id", next),
		codec.Remaining("record_data", data),
	}
}

func clearFields(reservation *uint16, key *[]byte, cmd *uint8) []codec.Field {
	return []codec.Field{
		codec.U16("reservation_id", reservation),
		codec.Bytes("key", key, 3),
		codec.U8("command", cmd),
	}
}

func clearStatusFields(cc *codec.CompletionCode, progress *uint8) []codec.Field {
	return []codec.Field{
		codec.Completion(cc),
		codec.Bitfield("status", 1,
			codec.Bits("erase_in_progress", progress, 4),
			codec.Reserved(4),
		),
	}
}
