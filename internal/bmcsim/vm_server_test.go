package bmcsim

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjst-t/go-ipmi/internal/codec"
	"github.com/tjst-t/go-ipmi/internal/ipmb"
	"github.com/tjst-t/go-ipmi/internal/msg"
	"github.com/tjst-t/go-ipmi/internal/vm"
)

// vmTestHelper runs HandleConnection on one end of a net.Pipe and returns
// the other end, the server and a function waiting for the handler.
func vmTestHelper(t *testing.T, bmc *Controller) (net.Conn, *vm.Reader, *VMServer, func() error) {
	t.Helper()

	client, server := net.Pipe()
	vs := NewVMServer(bmc)

	var handleErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		handleErr = vs.HandleConnection(server)
	}()
	return client, vm.NewReader(client), vs, func() error {
		wg.Wait()
		return handleErr
	}
}

func vmHandshake(t *testing.T, conn net.Conn, r *vm.Reader) {
	t.Helper()
	_, err := conn.Write(vm.ControlFrame(vm.CmdVersion, vm.ProtocolVersion))
	require.NoError(t, err)
	_, err = conn.Write(vm.ControlFrame(vm.CmdCapabilities, vm.CapAttn))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	term, data, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, byte(vm.CmdChar), term)
	assert.Equal(t, []byte{vm.CmdNoAttn}, data)
}

func vmRequest(t *testing.T, conn net.Conn, r *vm.Reader, req vm.Message) vm.Message {
	t.Helper()
	_, err := conn.Write(req.Frame())
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	term, data, err := r.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, byte(vm.MsgChar), term)
	m, err := vm.ParseMessage(data)
	require.NoError(t, err)
	return m
}

func TestVMServer_Handshake(t *testing.T) {
	conn, r, vs, wait := vmTestHelper(t, NewController(ipmb.BMCAddress))
	vmHandshake(t, conn, r)
	assert.Equal(t, uint8(vm.CapAttn), vs.Capabilities())

	conn.Close()
	assert.NoError(t, wait())
}

func TestVMServer_GetDeviceID(t *testing.T) {
	conn, r, _, wait := vmTestHelper(t, NewController(ipmb.BMCAddress))
	vmHandshake(t, conn, r)

	rsp := vmRequest(t, conn, r, vm.Message{Seq: 7, NetFn: msg.NetFnApp, Cmd: msg.CmdGetDeviceID})
	assert.True(t, rsp.IsResponse())
	assert.Equal(t, uint8(7), rsp.Seq)
	assert.Equal(t, uint8(msg.NetFnApp|0x01), rsp.NetFn)

	var id msg.GetDeviceIDRsp
	require.NoError(t, codec.Decode(&id, rsp.Data))
	assert.Equal(t, uint8(0x20), id.DeviceID)

	conn.Close()
	assert.NoError(t, wait())
}

func TestVMServer_ChassisControl(t *testing.T) {
	bmc := NewController(ipmb.BMCAddress)
	bmc.Chassis = NewChassis(true)
	conn, r, _, wait := vmTestHelper(t, bmc)
	vmHandshake(t, conn, r)

	rsp := vmRequest(t, conn, r, vm.Message{Seq: 1, NetFn: msg.NetFnChassis, Cmd: msg.CmdChassisControl, Data: []byte{msg.ChassisPowerDown}})
	assert.Equal(t, []byte{0x00}, rsp.Data)
	assert.False(t, bmc.Chassis.PowerOn())

	rsp = vmRequest(t, conn, r, vm.Message{Seq: 2, NetFn: msg.NetFnApp, Cmd: 0x7E})
	assert.Equal(t, []byte{0xC1}, rsp.Data)

	conn.Close()
	assert.NoError(t, wait())
}

func TestVMServer_IgnoresBadFrames(t *testing.T) {
	conn, r, _, wait := vmTestHelper(t, NewController(ipmb.BMCAddress))
	vmHandshake(t, conn, r)

	// bad checksum, then a valid request
	_, err := conn.Write([]byte{0x01, 0x18, 0x01, 0x00, vm.MsgChar})
	require.NoError(t, err)
	rsp := vmRequest(t, conn, r, vm.Message{Seq: 3, NetFn: msg.NetFnApp, Cmd: msg.CmdGetDeviceID})
	assert.Equal(t, uint8(3), rsp.Seq)

	conn.Close()
	assert.NoError(t, wait())
}

func TestVMServer_ListenAndClose(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	vs := NewVMServer(NewController(ipmb.BMCAddress))

	done := make(chan error, 1)
	go func() { done <- vs.Serve(ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	vmHandshake(t, conn, vm.NewReader(conn))
	conn.Close()

	require.NoError(t, vs.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}
