package ipmi

import (
	"context"
	"testing"

	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjst-t/go-ipmi/internal/bmcsim"
	"github.com/tjst-t/go-ipmi/internal/ipmb"
	"github.com/tjst-t/go-ipmi/internal/msg"
)

func TestDevice_ID(t *testing.T) {
	bmc := bmcsim.NewController(ipmb.BMCAddress)
	bmc.Device.ManufacturerID = 0x1234
	bmc.Device.ProductID = 0x0102
	bmc.DeviceSDR = bmcsim.NewRepository()
	d := newVMConn(t, bmc).Device()

	id, err := d.ID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1234), id.ManufacturerID)
	assert.Equal(t, uint16(0x0102), id.ProductID)
	assert.True(t, id.ProvidesDeviceSDRs)
	assert.True(t, id.Support.Sensor)
}

func TestDevice_GUID(t *testing.T) {
	system := uuid.Must(uuid.FromString("0a1b2c3d-4e5f-6071-8293-a4b5c6d7e8f9"))
	bmc := bmcsim.NewController(ipmb.BMCAddress)
	bmc.Device.SystemGUID = system
	d := newVMConn(t, bmc).Device()

	guid, err := d.GUID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bmcsim.DefaultGUID, guid)

	guid, err = d.SystemGUID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, system, guid)
}

func TestParseGUID(t *testing.T) {
	wire := []byte{0x10, 0x7a, 0x6b, 0x3c, 0x5a, 0x0d, 0x6e, 0x9d, 0x0e, 0x4b, 0x1e, 0x6c, 0x2a, 0x2e, 0x1c, 0x6f}
	assert.Equal(t, "6f1c2e2a-6c1e-4b0e-9d6e-0d5a3c6b7a10", parseGUID(wire).String())
	assert.Equal(t, uuid.Nil, parseGUID([]byte{0x01, 0x02}))
}

func TestDevice_Resets(t *testing.T) {
	bmc := bmcsim.NewController(ipmb.BMCAddress)
	d := newVMConn(t, bmc).Device()

	require.NoError(t, d.ColdReset(context.Background()))
	require.NoError(t, d.WarmReset(context.Background()))
	assert.Equal(t, 2, bmc.Resets())
}

func TestDevice_SelfTest(t *testing.T) {
	d := newVMConn(t, bmcsim.NewController(ipmb.BMCAddress)).Device()

	st, err := d.SelfTest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(msg.SelfTestPassed), st.Result)
}

func TestChassis(t *testing.T) {
	bmc := bmcsim.NewController(ipmb.BMCAddress)
	bmc.Chassis = bmcsim.NewChassis(false)
	ch := newVMConn(t, bmc).Chassis()
	ctx := context.Background()

	st, err := ch.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Power.PowerOn)

	require.NoError(t, ch.PowerOn(ctx))
	st, err = ch.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Power.PowerOn)
	assert.True(t, st.LastEvent.PowerOnByIPMI)

	require.NoError(t, ch.PowerCycle(ctx))
	require.NoError(t, ch.HardReset(ctx))
	assert.Equal(t, 2, bmc.Chassis.Cycles())

	require.NoError(t, ch.PowerOff(ctx))
	assert.False(t, bmc.Chassis.PowerOn())
}

func TestParseControl(t *testing.T) {
	tests := []struct {
		name string
		want uint8
		ok   bool
	}{
		{"on", msg.ChassisPowerUp, true},
		{"off", msg.ChassisPowerDown, true},
		{"cycle", msg.ChassisPowerCycle, true},
		{"reset", msg.ChassisHardReset, true},
		{"soft", msg.ChassisSoftShutdown, true},
		{"diag", msg.ChassisDiagnosticInterrupt, true},
		{"bounce", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseControl(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPICMG(t *testing.T) {
	bmc := bmcsim.NewController(ipmb.BMCAddress)
	bmc.PICMG = true
	bmc.SetFRU(0, &bmcsim.FRU{Data: make([]byte, 8)})
	bmc.SetFRU(3, &bmcsim.FRU{Data: make([]byte, 8)})
	p := newVMConn(t, bmc).PICMG()
	ctx := context.Background()

	props, err := p.Properties(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), props.MaxFRUDeviceID)

	require.NoError(t, p.SetActivationPolicy(ctx, 3,
		msg.FRUActivationPolicy{ActivationLocked: true},
		msg.FRUActivationPolicy{ActivationLocked: true, DeactivationLocked: true}))
	policy, err := p.ActivationPolicy(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, msg.FRUActivationPolicy{ActivationLocked: true}, policy)
}
