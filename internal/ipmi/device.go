package ipmi

import (
	"context"

	uuid "github.com/satori/go.uuid"

	"github.com/tjst-t/go-ipmi/internal/msg"
)

// Device groups the App commands about the controller itself.
type Device struct {
	conn *Conn
}

// Device returns the device commands of c's target.
func (c *Conn) Device() *Device { return &Device{conn: c} }

// ID returns the Get Device ID response.
func (d *Device) ID(ctx context.Context) (*msg.GetDeviceIDRsp, error) {
	rsp := &msg.GetDeviceIDRsp{}
	if err := d.conn.Send(ctx, &msg.GetDeviceIDReq{}, rsp); err != nil {
		return nil, err
	}
	return rsp, nil
}

// GUID returns the device GUID.
func (d *Device) GUID(ctx context.Context) (uuid.UUID, error) {
	rsp := &msg.GetDeviceGUIDRsp{}
	if err := d.conn.Send(ctx, &msg.GetDeviceGUIDReq{}, rsp); err != nil {
		return uuid.Nil, err
	}
	return parseGUID(rsp.GUID), nil
}

// SystemGUID returns the GUID of the managed system.
func (d *Device) SystemGUID(ctx context.Context) (uuid.UUID, error) {
	rsp := &msg.GetSystemGUIDRsp{}
	if err := d.conn.Send(ctx, &msg.GetSystemGUIDReq{}, rsp); err != nil {
		return uuid.Nil, err
	}
	return parseGUID(rsp.GUID), nil
}

// ColdReset asks the controller to restart.
func (d *Device) ColdReset(ctx context.Context) error {
	return d.conn.Send(ctx, &msg.ColdResetReq{}, &msg.ColdResetRsp{})
}

// WarmReset asks the controller to reinitialize without a full restart.
func (d *Device) WarmReset(ctx context.Context) error {
	return d.conn.Send(ctx, &msg.WarmResetReq{}, &msg.WarmResetRsp{})
}

// SelfTest returns the self test result and detail bytes.
func (d *Device) SelfTest(ctx context.Context) (*msg.GetSelfTestResultsRsp, error) {
	rsp := &msg.GetSelfTestResultsRsp{}
	if err := d.conn.Send(ctx, &msg.GetSelfTestResultsReq{}, rsp); err != nil {
		return nil, err
	}
	return rsp, nil
}

// parseGUID converts a GUID sent least significant byte first.
func parseGUID(b []byte) uuid.UUID {
	r := make([]byte, len(b))
	for i := range b {
		r[len(b)-1-i] = b[i]
	}
	return uuid.FromBytesOrNil(r)
}
