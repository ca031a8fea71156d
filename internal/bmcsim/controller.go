// Package bmcsim simulates IPMI management controllers for tests and for
// cmd/ipmi-test-server: a BMC reachable over RMCP/UDP or the VM protocol,
// with sub-controllers reachable through SendMessage bridging.
package bmcsim

import (
	"sync"

	log "github.com/sirupsen/logrus"
	uuid "github.com/satori/go.uuid"

	"github.com/tjst-t/go-ipmi/internal/codec"
	"github.com/tjst-t/go-ipmi/internal/ipmb"
	"github.com/tjst-t/go-ipmi/internal/msg"
)

// Device is what Get Device ID and the GUID commands report.
type Device struct {
	ID             uint8
	Revision       uint8
	FirmwareMajor  uint8
	FirmwareMinor  uint8
	IPMIVersion    uint8
	ManufacturerID uint32
	ProductID      uint16
	Support        msg.DeviceSupport
	GUID           uuid.UUID
	SystemGUID     uuid.UUID
}

// FRU is one FRU inventory device. Reads longer than MaxRead bytes fail
// with "request data length exceeded".
type FRU struct {
	Data    []byte
	MaxRead int
}

// Controller is one simulated management controller.
type Controller struct {
	Address uint8
	Device  Device
	// Optional capabilities; nil answers "invalid command".
	Chassis   *Chassis
	SDR       *Repository
	SEL       *Repository
	DeviceSDR *Repository
	// PICMG enables the PICMG group extension commands.
	PICMG bool
	// AckBridged makes SendMessage answer with an empty acknowledgement
	// before the forwarded response.
	AckBridged bool

	registry *msg.Registry
	logger   *log.Entry

	mu       sync.Mutex
	fru      map[uint8]*FRU
	policies map[uint8]msg.FRUActivationPolicy
	children map[uint8]map[uint8]*Controller
	resets   int
}

// DefaultGUID is the device GUID of controllers created by NewController.
var DefaultGUID = uuid.Must(uuid.FromString("6f1c2e2a-6c1e-4b0e-9d6e-0d5a3c6b7a10"))

// NewController returns a controller at address with a default device
// identity and no optional capabilities.
func NewController(address uint8) *Controller {
	return &Controller{
		Address: address,
		Device: Device{
			ID:            0x20,
			Revision:      0x01,
			FirmwareMajor: 0x02,
			FirmwareMinor: 0x00,
			IPMIVersion:   0x51,
			Support:       msg.DeviceSupport{Sensor: true},
			GUID:          DefaultGUID,
			SystemGUID:    DefaultGUID,
		},
		registry: msg.Default(),
		logger:   log.WithFields(log.Fields{"component": "bmcsim", "address": address}),
		fru:      make(map[uint8]*FRU),
		policies: make(map[uint8]msg.FRUActivationPolicy),
		children: make(map[uint8]map[uint8]*Controller),
	}
}

// Attach makes child reachable through SendMessage on channel.
func (c *Controller) Attach(channel uint8, child *Controller) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.children[channel] == nil {
		c.children[channel] = make(map[uint8]*Controller)
	}
	c.children[channel][child.Address] = child
	c.Device.Support.Bridge = true
}

// SetFRU installs FRU inventory device id.
func (c *Controller) SetFRU(id uint8, f *FRU) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fru[id] = f
	c.Device.Support.FRUInventory = true
}

// Resets returns the number of cold and warm resets received.
func (c *Controller) Resets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resets
}

func (c *Controller) child(channel, address uint8) *Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.children[channel][address]
}

func reply(cc codec.CompletionCode) [][]byte {
	return [][]byte{{byte(cc)}}
}

// Handle processes a request addressed to this controller and returns the
// response bodies to send, each starting with a completion code. Bridged
// requests may produce an acknowledgement before the forwarded response.
func (c *Controller) Handle(h ipmb.RequestHeader, data []byte) [][]byte {
	logger := c.logger.WithFields(log.Fields{"netfn": h.NetFn, "cmd": h.Command})
	req, err := c.registry.Create(h.NetFn, h.Command, msg.RequestGroup(h.NetFn, data))
	if err != nil {
		logger.Debug("unknown command")
		return reply(codec.CompletionCodeInvalidCommand)
	}
	if err := codec.Decode(req, data); err != nil {
		logger.WithError(err).Debug("malformed request")
		return reply(codec.CompletionCodeRequestDataLengthInvalid)
	}
	logger.WithField("request", req.Identity().Name).Debug("handling request")

	if sm, ok := req.(*msg.SendMessageReq); ok {
		return c.bridge(sm)
	}
	rsp, cc := c.dispatch(req)
	if cc != codec.CompletionCodeOK {
		return reply(cc)
	}
	body, err := codec.Encode(rsp)
	if err != nil {
		logger.WithError(err).Warn("encoding response")
		return reply(codec.CompletionCodeUnspecified)
	}
	return [][]byte{body}
}

// bridge forwards the IPMB request carried by sm to a child controller.
func (c *Controller) bridge(sm *msg.SendMessageReq) [][]byte {
	ih, data, err := ipmb.DecodeRequest(sm.Data)
	if err != nil {
		c.logger.WithError(err).Debug("bad bridged frame")
		return reply(codec.CompletionCodeInvalidField)
	}
	child := c.child(sm.Channel, ih.ResponderAddress)
	if child == nil {
		return reply(codec.CompletionCodeDestinationUnavailable)
	}

	var out [][]byte
	if c.AckBridged {
		out = append(out, []byte{byte(codec.CompletionCodeOK)})
	}
	rh := ih.Response()
	for _, body := range child.Handle(ih, data) {
		out = append(out, append([]byte{byte(codec.CompletionCodeOK)}, ipmb.EncodeResponse(rh, body)...))
	}
	return out
}

func (c *Controller) dispatch(req codec.Message) (codec.Response, codec.CompletionCode) {
	switch r := req.(type) {
	case *msg.GetDeviceIDReq:
		return c.deviceID(), codec.CompletionCodeOK
	case *msg.ColdResetReq:
		c.reset()
		return &msg.ColdResetRsp{}, codec.CompletionCodeOK
	case *msg.WarmResetReq:
		c.reset()
		return &msg.WarmResetRsp{}, codec.CompletionCodeOK
	case *msg.GetSelfTestResultsReq:
		return &msg.GetSelfTestResultsRsp{Result: msg.SelfTestPassed}, codec.CompletionCodeOK
	case *msg.GetDeviceGUIDReq:
		return &msg.GetDeviceGUIDRsp{GUID: wireGUID(c.Device.GUID)}, codec.CompletionCodeOK
	case *msg.GetSystemGUIDReq:
		return &msg.GetSystemGUIDRsp{GUID: wireGUID(c.Device.SystemGUID)}, codec.CompletionCodeOK

	case *msg.GetChassisStatusReq:
		if c.Chassis == nil {
			return nil, codec.CompletionCodeInvalidCommand
		}
		return c.Chassis.status(), codec.CompletionCodeOK
	case *msg.ChassisControlReq:
		if c.Chassis == nil {
			return nil, codec.CompletionCodeInvalidCommand
		}
		return &msg.ChassisControlRsp{}, c.Chassis.Control(r.Control)

	case *msg.GetFRUInventoryAreaInfoReq:
		return c.fruInfo(r)
	case *msg.ReadFRUDataReq:
		return c.readFRU(r)

	case *msg.GetSDRRepositoryInfoReq:
		return sdrInfo(c.SDR)
	case *msg.ReserveSDRRepositoryReq:
		return reserve(c.SDR, func(id uint16) codec.Response { return &msg.ReserveSDRRepositoryRsp{ReservationID: id} })
	case *msg.GetSDRReq:
		return read(c.SDR, r.ReservationID, r.RecordID, r.Offset, r.Count, func(next uint16, data []byte) codec.Response {
			return &msg.GetSDRRsp{NextRecordID: next, Data: data}
		})
	case *msg.ClearSDRRepositoryReq:
		return clearRepository(c.SDR, r.ReservationID, r.Key, r.Command, func(p uint8) codec.Response { return &msg.ClearSDRRepositoryRsp{Progress: p} })

	case *msg.GetSELInfoReq:
		return selInfo(c.SEL)
	case *msg.ReserveSELReq:
		return reserve(c.SEL, func(id uint16) codec.Response { return &msg.ReserveSELRsp{ReservationID: id} })
	case *msg.GetSELEntryReq:
		return read(c.SEL, r.ReservationID, r.RecordID, r.Offset, r.Count, func(next uint16, data []byte) codec.Response {
			return &msg.GetSELEntryRsp{NextRecordID: next, Data: data}
		})
	case *msg.ClearSELReq:
		return clearRepository(c.SEL, r.ReservationID, r.Key, r.Command, func(p uint8) codec.Response { return &msg.ClearSELRsp{Progress: p} })

	case *msg.GetDeviceSDRInfoReq:
		return deviceSDRInfo(c.DeviceSDR)
	case *msg.ReserveDeviceSDRRepositoryReq:
		return reserve(c.DeviceSDR, func(id uint16) codec.Response { return &msg.ReserveDeviceSDRRepositoryRsp{ReservationID: id} })
	case *msg.GetDeviceSDRReq:
		return read(c.DeviceSDR, r.ReservationID, r.RecordID, r.Offset, r.Count, func(next uint16, data []byte) codec.Response {
			return &msg.GetDeviceSDRRsp{NextRecordID: next, Data: data}
		})

	case *msg.GetPICMGPropertiesReq:
		return c.picmgProperties()
	case *msg.SetFRUActivationPolicyReq:
		return c.setActivationPolicy(r)
	case *msg.GetFRUActivationPolicyReq:
		return c.activationPolicy(r)
	}
	return nil, codec.CompletionCodeInvalidCommand
}
