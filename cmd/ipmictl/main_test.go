package main

import (
	"bytes"
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjst-t/go-ipmi/internal/bmcsim"
	"github.com/tjst-t/go-ipmi/internal/ipmb"
)

// startSim serves bmc on loopback UDP and points the environment at it.
func startSim(t *testing.T, bmc *bmcsim.Controller) {
	t.Helper()
	srv := bmcsim.NewServer(bmc, bmcsim.NewState("admin", "password"))
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(pc)
	t.Cleanup(func() { srv.Close() })

	for _, key := range []string{"IPMI_CONFIG", "IPMI_INTERFACE", "IPMI_ROUTING", "IPMI_TARGET_ADDR", "IPMI_PRIVILEGE", "IPMI_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	t.Setenv("IPMI_HOST", "127.0.0.1")
	t.Setenv("IPMI_PORT", strconv.Itoa(pc.LocalAddr().(*net.UDPAddr).Port))
	t.Setenv("IPMI_USER", "admin")
	t.Setenv("IPMI_PASS", "password")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInfo(t *testing.T) {
	startSim(t, bmcsim.NewController(ipmb.BMCAddress))

	out, err := run(t, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "Device ID          : 0x20")
	assert.Contains(t, out, "Firmware Revision  : 2.00")
	assert.Contains(t, out, "IPMI Version       : 1.5")
	assert.Contains(t, out, bmcsim.DefaultGUID.String())
}

func TestPing(t *testing.T) {
	startSim(t, bmcsim.NewController(ipmb.BMCAddress))

	out, err := run(t, "ping")
	require.NoError(t, err)
	assert.Contains(t, out, "127.0.0.1: IPMI supported")
}

func TestRaw(t *testing.T) {
	startSim(t, bmcsim.NewController(ipmb.BMCAddress))

	out, err := run(t, "raw", "0x06", "0x04")
	require.NoError(t, err)
	assert.Equal(t, "55 00\n", out)

	_, err = run(t, "raw", "0x06", "0x7f")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "completion code 0xc1")

	_, err = run(t, "raw", "0x06", "zz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid byte "zz"`)
}

func TestChassis(t *testing.T) {
	bmc := bmcsim.NewController(ipmb.BMCAddress)
	bmc.Chassis = bmcsim.NewChassis(false)
	startSim(t, bmc)

	out, err := run(t, "chassis", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "System Power  : off")

	out, err = run(t, "chassis", "power", "on")
	require.NoError(t, err)
	assert.Contains(t, out, "Chassis Power Control: on")
	assert.True(t, bmc.Chassis.PowerOn())

	_, err = run(t, "chassis", "power", "sideways")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown power action")
}

func TestSDRAndSEL(t *testing.T) {
	bmc := bmcsim.NewController(ipmb.BMCAddress)
	bmc.SDR = bmcsim.NewRepository()
	bmc.SDR.Add(0x0001, []byte{0x01, 0x00, 0x51, 0x12, 0x03, 0xaa, 0xbb, 0xcc})
	bmc.SEL = bmcsim.NewRepository()
	bmc.SEL.Add(0x0010, []byte{0x10, 0x00, 0x02, 0, 0, 0, 0, 0x20, 0x00, 0x04, 0x01, 0x30, 0x6f, 0x00, 0xff, 0xff})
	startSim(t, bmc)

	out, err := run(t, "sdr")
	require.NoError(t, err)
	assert.Equal(t, "0001 | type 0x12 |   8 bytes | aa bb cc\n", out)

	out, err = run(t, "sel", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "0010 | 02 00 00 00 00 20 00")

	out, err = run(t, "sel", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "SEL cleared")
	assert.Equal(t, 0, bmc.SEL.Len())
}

func TestFRU(t *testing.T) {
	bmc := bmcsim.NewController(ipmb.BMCAddress)
	data := make([]byte, 20)
	for i := range data {
		data[i] = byte(i)
	}
	bmc.SetFRU(1, &bmcsim.FRU{Data: data})
	startSim(t, bmc)

	out, err := run(t, "fru", "1")
	require.NoError(t, err)
	assert.Equal(t, "0000: 00 01 02 03 04 05 06 07 08 09 0a 0b 0c 0d 0e 0f\n0010: 10 11 12 13\n", out)
}

func TestFlags(t *testing.T) {
	startSim(t, bmcsim.NewController(ipmb.BMCAddress))

	_, err := run(t, "--target", "0x1ff", "info")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--target")

	_, err = run(t, "--route", "0x81", "info")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--route")

	_, err = run(t, "--pass", "wrong", "info")
	require.Error(t, err)

	_, err = run(t, "--interface", "serial", "info")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestBridged(t *testing.T) {
	bmc := bmcsim.NewController(ipmb.BMCAddress)
	child := bmcsim.NewController(0x82)
	child.Device.ID = 0x82
	bmc.Attach(7, child)
	startSim(t, bmc)

	out, err := run(t, "--target", "0x82", "--route", "0x81:0x20:7,0x20:0x82", "info")
	require.NoError(t, err)
	assert.Contains(t, out, "Device ID          : 0x82")
}
