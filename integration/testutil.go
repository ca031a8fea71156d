//go:build integration

package integration

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tjst-t/go-ipmi/internal/ipmb"
	"github.com/tjst-t/go-ipmi/internal/ipmi"
	"github.com/tjst-t/go-ipmi/internal/session"
	"github.com/tjst-t/go-ipmi/internal/transport"
)

// Layout of the controllers ipmi-test-server builds.
const (
	childAddress = 0x82
	childChannel = 0x07
)

var options = transport.Options{Timeout: time.Second, Retries: 3, Backoff: 100 * time.Millisecond}

type testEnv struct {
	IPMIHost string
	IPMIPort string
	VMAddr   string
	User     string
	Pass     string
}

func loadTestEnv() testEnv {
	return testEnv{
		IPMIHost: getEnvDefault("BMC_IPMI_HOST", "localhost"),
		IPMIPort: getEnvDefault("BMC_IPMI_PORT", "6234"),
		VMAddr:   getEnvDefault("BMC_VM_ADDR", "localhost:9002"),
		User:     getEnvDefault("BMC_USER", "admin"),
		Pass:     getEnvDefault("BMC_PASS", "password"),
	}
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (e testEnv) lanAddr() string { return net.JoinHostPort(e.IPMIHost, e.IPMIPort) }

// connectLAN opens an administrator session to the simulator.
func connectLAN(t *testing.T, env testEnv) *ipmi.Conn {
	t.Helper()
	ctx := context.Background()
	l, err := transport.DialLAN(ctx, env.lanAddr(), options)
	require.NoError(t, err)
	err = l.Open(ctx, session.Config{Username: env.User, Password: env.Pass})
	if err != nil {
		l.Close()
	}
	require.NoError(t, err)
	c := ipmi.New(l)
	t.Cleanup(func() { c.Close() })
	return c
}

func connectVM(t *testing.T, env testEnv) *ipmi.Conn {
	t.Helper()
	v, err := transport.DialVM(context.Background(), env.VMAddr, options)
	require.NoError(t, err)
	c := ipmi.New(v)
	t.Cleanup(func() { c.Close() })
	return c
}

// childTarget routes through the BMC's IPMB channel to the child
// controller.
func childTarget() ipmb.Target {
	return ipmb.Target{
		Address: childAddress,
		Routing: []ipmb.Route{
			{RequesterAddress: ipmb.RemoteConsoleAddress, ResponderAddress: ipmb.BMCAddress, Channel: childChannel},
			{RequesterAddress: ipmb.BMCAddress, ResponderAddress: childAddress},
		},
	}
}

// runIPMITool executes ipmitool over the IPMI v1.5 LAN interface.
func runIPMITool(t *testing.T, env testEnv, args ...string) (string, error) {
	t.Helper()
	if _, err := exec.LookPath("ipmitool"); err != nil {
		t.Skip("ipmitool not installed")
	}
	cmdArgs := []string{"-I", "lan", "-H", env.IPMIHost, "-p", env.IPMIPort, "-U", env.User, "-P", env.Pass}
	cmdArgs = append(cmdArgs, args...)
	out, err := exec.Command("ipmitool", cmdArgs...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// waitForSimReady pings the RMCP port and performs a VM handshake.
func waitForSimReady(env testEnv, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := ping(ctx, env)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(time.Second)
	}
	return fmt.Errorf("simulator not ready within %s", timeout)
}

func ping(ctx context.Context, env testEnv) error {
	l, err := transport.DialLAN(ctx, env.lanAddr(), options)
	if err != nil {
		return err
	}
	defer l.Close()
	if err := l.Ping(ctx); err != nil {
		return err
	}
	v, err := transport.DialVM(ctx, env.VMAddr, options)
	if err != nil {
		return err
	}
	return v.Close()
}

// waitForPower polls chassis status until the power state matches on.
func waitForPower(c *ipmi.Conn, on bool, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		st, err := c.Chassis().Status(context.Background())
		if err == nil && st.Power.PowerOn == on {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("power state did not become %t within %s", on, timeout)
}
