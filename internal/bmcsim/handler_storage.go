package bmcsim

import (
	"github.com/tjst-t/go-ipmi/internal/codec"
	"github.com/tjst-t/go-ipmi/internal/msg"
)

const (
	sdrVersion = 0x51
	freeSpace  = 0xFFFF
)

var repositorySupport = msg.RepositorySupport{Reserve: true, UpdateType: 1}

func (c *Controller) fruDevice(id uint8) *FRU {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fru[id]
}

func (c *Controller) fruInfo(r *msg.GetFRUInventoryAreaInfoReq) (codec.Response, codec.CompletionCode) {
	f := c.fruDevice(r.FRUID)
	if f == nil {
		return nil, codec.CompletionCodeRequestedDataNotPresent
	}
	return &msg.GetFRUInventoryAreaInfoRsp{AreaSize: uint16(len(f.Data))}, codec.CompletionCodeOK
}

func (c *Controller) readFRU(r *msg.ReadFRUDataReq) (codec.Response, codec.CompletionCode) {
	f := c.fruDevice(r.FRUID)
	if f == nil {
		return nil, codec.CompletionCodeRequestedDataNotPresent
	}
	if f.MaxRead > 0 && int(r.Count) > f.MaxRead {
		return nil, codec.CompletionCodeRequestDataLengthExceeded
	}
	if int(r.Offset) >= len(f.Data) {
		return nil, codec.CompletionCodeParameterOutOfRange
	}
	end := int(r.Offset) + int(r.Count)
	if end > len(f.Data) {
		end = len(f.Data)
	}
	data := append([]byte(nil), f.Data[r.Offset:end]...)
	return &msg.ReadFRUDataRsp{Count: uint8(len(data)), Data: data}, codec.CompletionCodeOK
}

func sdrInfo(repo *Repository) (codec.Response, codec.CompletionCode) {
	if repo == nil {
		return nil, codec.CompletionCodeInvalidCommand
	}
	n, added, erased := repo.info()
	return &msg.GetSDRRepositoryInfoRsp{
		Version:            sdrVersion,
		RecordCount:        n,
		FreeSpace:          freeSpace,
		MostRecentAddition: added,
		MostRecentErase:    erased,
		Support:            repositorySupport,
	}, codec.CompletionCodeOK
}

func selInfo(repo *Repository) (codec.Response, codec.CompletionCode) {
	if repo == nil {
		return nil, codec.CompletionCodeInvalidCommand
	}
	n, added, erased := repo.info()
	return &msg.GetSELInfoRsp{
		Version:            sdrVersion,
		Entries:            n,
		FreeSpace:          freeSpace,
		MostRecentAddition: added,
		MostRecentErase:    erased,
		Support:            repositorySupport,
	}, codec.CompletionCodeOK
}

// deviceSDRInfo reports one sensor per record, so the sensor and SDR
// counts requested by the operation byte are the same.
func deviceSDRInfo(repo *Repository) (codec.Response, codec.CompletionCode) {
	if repo == nil {
		return nil, codec.CompletionCodeInvalidCommand
	}
	n, _, _ := repo.info()
	return &msg.GetDeviceSDRInfoRsp{Number: uint8(n), LUNs: msg.LUNs{LUN0: true}}, codec.CompletionCodeOK
}

func reserve(repo *Repository, rsp func(uint16) codec.Response) (codec.Response, codec.CompletionCode) {
	if repo == nil {
		return nil, codec.CompletionCodeInvalidCommand
	}
	return rsp(repo.Reserve()), codec.CompletionCodeOK
}

func read(repo *Repository, reservation, id uint16, offset, count uint8, rsp func(uint16, []byte) codec.Response) (codec.Response, codec.CompletionCode) {
	if repo == nil {
		return nil, codec.CompletionCodeInvalidCommand
	}
	next, data, cc := repo.Read(reservation, id, offset, count)
	if cc != codec.CompletionCodeOK {
		return nil, cc
	}
	return rsp(next, data), codec.CompletionCodeOK
}

func clearRepository(repo *Repository, reservation uint16, key []byte, command uint8, rsp func(uint8) codec.Response) (codec.Response, codec.CompletionCode) {
	if repo == nil {
		return nil, codec.CompletionCodeInvalidCommand
	}
	progress, cc := repo.Clear(reservation, key, command)
	if cc != codec.CompletionCodeOK {
		return nil, cc
	}
	return rsp(progress), codec.CompletionCodeOK
}
