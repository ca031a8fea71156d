package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjst-t/go-ipmi/internal/ipmb"
	"github.com/tjst-t/go-ipmi/internal/msg"
)

var envKeys = []string{
	"IPMI_CONFIG", "IPMI_HOST", "IPMI_PORT", "IPMI_USER", "IPMI_PASS", "IPMI_PRIVILEGE",
	"IPMI_INTERFACE", "VM_IPMI_ADDR", "IPMI_TIMEOUT", "IPMI_RETRIES", "IPMI_BACKOFF",
	"IPMI_REQUESTER_ADDR", "IPMI_TARGET_ADDR", "IPMI_OUTBOUND_SEQ", "IPMI_CHUNK_SIZE",
	"IPMI_CHUNK_SHRINK", "IPMI_READ_RETRIES", "IPMI_API_ADDR", "IPMI_API_USER", "IPMI_API_PASS",
	"IPMI_LOG_LEVEL", "IPMI_LOG_FORMAT", "IPMI_SIM_SESSIONLESS", "IPMI_ROUTING",
}

func clearEnv(t *testing.T) {
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Host)
	assert.Equal(t, 623, cfg.Port)
	assert.Equal(t, "admin", cfg.User)
	assert.Equal(t, "password", cfg.Pass)
	assert.Equal(t, "administrator", cfg.Privilege)
	assert.Equal(t, "lan", cfg.Interface)
	assert.Equal(t, "localhost:9002", cfg.VMAddr)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, 50*time.Millisecond, cfg.Backoff)
	assert.Equal(t, uint8(0x81), cfg.RequesterAddress)
	assert.Equal(t, uint8(0x20), cfg.TargetAddress)
	assert.Equal(t, uint32(5), cfg.InitialOutboundSequence)
	assert.Equal(t, 20, cfg.ChunkSize)
	assert.Equal(t, 4, cfg.ChunkShrink)
	assert.Equal(t, 20, cfg.ReadRetries)
	assert.Equal(t, ":8623", cfg.APIAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.False(t, cfg.SimSessionless)
	assert.Empty(t, cfg.Routing)
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("IPMI_HOST", "10.0.0.5")
	t.Setenv("IPMI_PORT", "6230")
	t.Setenv("IPMI_USER", "testuser")
	t.Setenv("IPMI_PASS", "testpass")
	t.Setenv("IPMI_TIMEOUT", "1s")
	t.Setenv("IPMI_RETRIES", "0")
	t.Setenv("IPMI_TARGET_ADDR", "0x82")
	t.Setenv("IPMI_SIM_SESSIONLESS", "yes")
	t.Setenv("IPMI_ROUTING", "0x81:0x20:7, 0x20:0x82")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", cfg.Host)
	assert.Equal(t, 6230, cfg.Port)
	assert.Equal(t, "testuser", cfg.User)
	assert.Equal(t, "testpass", cfg.Pass)
	assert.Equal(t, time.Second, cfg.Timeout)
	assert.Equal(t, 0, cfg.Retries)
	assert.Equal(t, uint8(0x82), cfg.TargetAddress)
	assert.True(t, cfg.SimSessionless)
	assert.Equal(t, []Hop{{Requester: 0x81, Responder: 0x20, Channel: 7}, {Requester: 0x20, Responder: 0x82}}, cfg.Routing)
}

func TestLoad_InvalidValuesKeepDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("IPMI_PORT", "not-a-port")
	t.Setenv("IPMI_TIMEOUT", "soon")
	t.Setenv("IPMI_TARGET_ADDR", "0x1FF")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 623, cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
	assert.Equal(t, uint8(0x20), cfg.TargetAddress)
}

func TestLoad_BadRouting(t *testing.T) {
	clearEnv(t)
	t.Setenv("IPMI_ROUTING", "0x81")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ProfileFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "profile.yaml")
	profile := `host: bmc.example.net
user: operator
privilege: operator
timeout: 500ms
target_address: 0x82
routing:
  - requester: 0x81
    responder: 0x20
    channel: 7
  - requester: 0x20
    responder: 0x82
log_format: json
`
	require.NoError(t, os.WriteFile(path, []byte(profile), 0o600))
	t.Setenv("IPMI_CONFIG", path)
	t.Setenv("IPMI_USER", "override")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "bmc.example.net", cfg.Host)
	assert.Equal(t, "override", cfg.User)
	assert.Equal(t, msg.PrivilegeOperator, cfg.PrivilegeLevel())
	assert.Equal(t, 500*time.Millisecond, cfg.Timeout)
	assert.Equal(t, "json", cfg.LogFormat)
	// unset keys keep their defaults
	assert.Equal(t, 623, cfg.Port)

	target := cfg.Target()
	assert.True(t, target.Bridged())
	assert.Equal(t, uint8(0x82), target.Address)
	assert.Equal(t, ipmb.Route{RequesterAddress: 0x81, ResponderAddress: 0x20, Channel: 7}, target.Routing[0])
	require.NoError(t, cfg.Validate())
}

func TestLoad_ProfileErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("IPMI_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.ErrorContains(t, err, "reading config")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [1, 2"), 0o600))
	t.Setenv("IPMI_CONFIG", path)
	_, err = Load()
	assert.ErrorContains(t, err, "parsing config")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.Host = "127.0.0.1"
		return c
	}
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"vm", func(c *Config) { c.Interface = "vm"; c.Host = "" }, ""},
		{"no host", func(c *Config) { c.Host = "" }, "needs a host"},
		{"unknown interface", func(c *Config) { c.Interface = "serial" }, "unknown interface"},
		{"vm routing", func(c *Config) {
			c.Interface = "vm"
			c.Routing = []Hop{{0x81, 0x20, 7}, {0x20, 0x82, 0}}
		}, "does not support bridging"},
		{"port", func(c *Config) { c.Port = 70000 }, "invalid port"},
		{"privilege", func(c *Config) { c.Privilege = "root" }, "unknown privilege"},
		{"timeout", func(c *Config) { c.Timeout = 0 }, "timeout"},
		{"retries", func(c *Config) { c.Retries = -1 }, "retries"},
		{"chunk", func(c *Config) { c.ChunkSize = 300 }, "chunk size"},
		{"shrink", func(c *Config) { c.ChunkShrink = 0 }, "chunk shrink"},
		{"single hop", func(c *Config) { c.Routing = []Hop{{0x81, 0x20, 7}} }, "two hops"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log format"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "not a valid logrus Level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParseRouting(t *testing.T) {
	hops, err := ParseRouting("0x81:0x20:7,0x20:0x72:2,0x72:0x86")
	require.NoError(t, err)
	assert.Equal(t, []Hop{
		{Requester: 0x81, Responder: 0x20, Channel: 7},
		{Requester: 0x20, Responder: 0x72, Channel: 2},
		{Requester: 0x72, Responder: 0x86},
	}, hops)

	for _, bad := range []string{"", "0x81", "0x81:0x20:7:1", "0x81:zz", "0x81:0x100"} {
		_, err := ParseRouting(bad)
		assert.Error(t, err, bad)
	}
}

func TestApplyLogging(t *testing.T) {
	defer log.SetLevel(log.GetLevel())
	defer log.SetFormatter(log.StandardLogger().Formatter)

	c := Default()
	c.LogLevel = "debug"
	c.LogFormat = "json"
	require.NoError(t, c.ApplyLogging())
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	c.LogLevel = "loud"
	assert.Error(t, c.ApplyLogging())
}
