package bmcsim

import (
	uuid "github.com/satori/go.uuid"

	"github.com/tjst-t/go-ipmi/internal/msg"
)

func (c *Controller) deviceID() *msg.GetDeviceIDRsp {
	d := c.Device
	return &msg.GetDeviceIDRsp{
		DeviceID:           d.ID,
		DeviceRevision:     d.Revision,
		ProvidesDeviceSDRs: c.DeviceSDR != nil,
		FirmwareMajor:      d.FirmwareMajor,
		FirmwareMinor:      d.FirmwareMinor,
		IPMIVersion:        d.IPMIVersion,
		Support:            d.Support,
		ManufacturerID:     d.ManufacturerID,
		ProductID:          d.ProductID,
	}
}

func (c *Controller) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets++
}

// wireGUID returns u least significant byte first.
func wireGUID(u uuid.UUID) []byte {
	b := make([]byte, len(u))
	for i := range u {
		b[len(u)-1-i] = u[i]
	}
	return b
}
