package ipmi

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjst-t/go-ipmi/internal/bmcsim"
	"github.com/tjst-t/go-ipmi/internal/codec"
	"github.com/tjst-t/go-ipmi/internal/ipmb"
	"github.com/tjst-t/go-ipmi/internal/msg"
	"github.com/tjst-t/go-ipmi/internal/session"
	"github.com/tjst-t/go-ipmi/internal/transport"
)

var testOptions = transport.Options{Timeout: 200 * time.Millisecond, Retries: 1, Backoff: time.Millisecond}

// newVMConn connects a Conn to bmc through the VM protocol over net.Pipe.
func newVMConn(t *testing.T, bmc *bmcsim.Controller, opts ...Option) *Conn {
	t.Helper()
	client, server := net.Pipe()
	go bmcsim.NewVMServer(bmc).HandleConnection(server)

	v := transport.NewVM(client, testOptions)
	require.NoError(t, v.Handshake(context.Background()))
	c := New(v, opts...)
	t.Cleanup(func() { c.Close() })
	return c
}

// newLANConn serves bmc over loopback UDP and opens an administrator
// session to it.
func newLANConn(t *testing.T, bmc *bmcsim.Controller) *Conn {
	t.Helper()
	srv := bmcsim.NewServer(bmc, bmcsim.NewState("admin", "password"))
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(pc)
	t.Cleanup(func() { srv.Close() })

	l, err := transport.DialLAN(context.Background(), pc.LocalAddr().String(), testOptions)
	require.NoError(t, err)
	require.NoError(t, l.Open(context.Background(), session.Config{Username: "admin", Password: "password"}))
	c := New(l)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestConn_Send(t *testing.T) {
	c := newVMConn(t, bmcsim.NewController(ipmb.BMCAddress))

	rsp := &msg.GetDeviceIDRsp{}
	require.NoError(t, c.Send(context.Background(), &msg.GetDeviceIDReq{}, rsp))
	assert.Equal(t, uint8(0x20), rsp.DeviceID)
	assert.Equal(t, uint8(0x51), rsp.IPMIVersion)
}

func TestConn_SendCompletionCode(t *testing.T) {
	// no chassis configured
	c := newVMConn(t, bmcsim.NewController(ipmb.BMCAddress))

	rsp := &msg.GetChassisStatusRsp{}
	err := c.Send(context.Background(), &msg.GetChassisStatusReq{}, rsp)
	require.Error(t, err)
	assert.True(t, codec.IsCompletionCode(err, codec.CompletionCodeInvalidCommand))
	assert.Equal(t, codec.CompletionCodeInvalidCommand, rsp.Code())

	var ce *codec.CompletionCodeError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "GetChassisStatusRsp", ce.Message)
}

func TestConn_SendByName(t *testing.T) {
	bmc := bmcsim.NewController(ipmb.BMCAddress)
	bmc.Chassis = bmcsim.NewChassis(false)
	c := newVMConn(t, bmc)

	rsp, err := c.SendByName(context.Background(), "ChassisControl", func(req codec.Message) error {
		req.(*msg.ChassisControlReq).Control = msg.ChassisPowerUp
		return nil
	})
	require.NoError(t, err)
	assert.IsType(t, &msg.ChassisControlRsp{}, rsp)
	assert.True(t, bmc.Chassis.PowerOn())

	rsp, err = c.SendByName(context.Background(), "GetDeviceID", nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x20), rsp.(*msg.GetDeviceIDRsp).DeviceID)

	_, err = c.SendByName(context.Background(), "NoSuchCommand", nil)
	assert.ErrorIs(t, err, msg.ErrUnknownMessage)
}

func TestConn_Raw(t *testing.T) {
	c := newVMConn(t, bmcsim.NewController(ipmb.BMCAddress))

	data, err := c.Raw(context.Background(), 0, msg.NetFnApp, []byte{msg.CmdGetSelfTestResults})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, msg.SelfTestPassed, 0x00}, data)
}

func TestConn_TransportError(t *testing.T) {
	c := newVMConn(t, bmcsim.NewController(ipmb.BMCAddress))
	require.NoError(t, c.Close())

	_, err := c.Device().ID(context.Background())
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestConn_Bridged(t *testing.T) {
	bmc := bmcsim.NewController(ipmb.BMCAddress)
	child := bmcsim.NewController(0x82)
	child.Device.ID = 0x82
	bmc.Attach(7, child)
	c := newLANConn(t, bmc)

	target := ipmb.Target{
		Address: 0x82,
		Routing: []ipmb.Route{
			{RequesterAddress: ipmb.RemoteConsoleAddress, ResponderAddress: ipmb.BMCAddress, Channel: 7},
			{RequesterAddress: ipmb.BMCAddress, ResponderAddress: 0x82},
		},
	}
	bc := c.At(target)
	assert.Equal(t, target, bc.Target())
	assert.Equal(t, uint8(ipmb.BMCAddress), c.Target().Address)

	id, err := bc.Device().ID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(0x82), id.DeviceID)

	id, err = c.Device().ID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(0x20), id.DeviceID)
}
