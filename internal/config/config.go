package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/tjst-t/go-ipmi/internal/ipmb"
	"github.com/tjst-t/go-ipmi/internal/msg"
)

// Hop is one bridging step: Requester sends to Responder, which forwards
// on Channel.
type Hop struct {
	Requester uint8 `yaml:"requester"`
	Responder uint8 `yaml:"responder"`
	Channel   uint8 `yaml:"channel"`
}

// Config holds the application configuration
type Config struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Pass      string `yaml:"pass"`
	Privilege string `yaml:"privilege"`
	Interface string `yaml:"interface"` // lan or vm
	VMAddr    string `yaml:"vm_addr"`   // OpenIPMI VM protocol TCP address

	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
	Backoff time.Duration `yaml:"backoff"`

	RequesterAddress        uint8  `yaml:"requester_address"`
	TargetAddress           uint8  `yaml:"target_address"`
	Routing                 []Hop  `yaml:"routing"`
	InitialOutboundSequence uint32 `yaml:"initial_outbound_sequence"`

	ChunkSize   int `yaml:"chunk_size"`
	ChunkShrink int `yaml:"chunk_shrink"`
	ReadRetries int `yaml:"read_retries"`

	APIAddr string `yaml:"api_addr"`
	APIUser string `yaml:"api_user"`
	APIPass string `yaml:"api_pass"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // text or json

	// SimSessionless lets the simulator accept commands outside a session.
	SimSessionless bool `yaml:"sim_sessionless"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:                    623,
		User:                    "admin",
		Pass:                    "password",
		Privilege:               "administrator",
		Interface:               "lan",
		VMAddr:                  "localhost:9002",
		Timeout:                 250 * time.Millisecond,
		Retries:                 3,
		Backoff:                 50 * time.Millisecond,
		RequesterAddress:        ipmb.RemoteConsoleAddress,
		TargetAddress:           ipmb.BMCAddress,
		InitialOutboundSequence: 5,
		ChunkSize:               20,
		ChunkShrink:             4,
		ReadRetries:             20,
		APIAddr:                 ":8623",
		LogLevel:                "info",
		LogFormat:               "text",
	}
}

// Load builds the configuration from the defaults, the YAML profile named
// by IPMI_CONFIG, and environment variables, later sources winning.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("IPMI_CONFIG"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Host = getEnv("IPMI_HOST", cfg.Host)
	cfg.Port = getIntEnv("IPMI_PORT", cfg.Port)
	cfg.User = getEnv("IPMI_USER", cfg.User)
	cfg.Pass = getEnv("IPMI_PASS", cfg.Pass)
	cfg.Privilege = getEnv("IPMI_PRIVILEGE", cfg.Privilege)
	cfg.Interface = getEnv("IPMI_INTERFACE", cfg.Interface)
	cfg.VMAddr = getEnv("VM_IPMI_ADDR", cfg.VMAddr)
	cfg.Timeout = getDurationEnv("IPMI_TIMEOUT", cfg.Timeout)
	cfg.Retries = getIntEnv("IPMI_RETRIES", cfg.Retries)
	cfg.Backoff = getDurationEnv("IPMI_BACKOFF", cfg.Backoff)
	cfg.RequesterAddress = getAddressEnv("IPMI_REQUESTER_ADDR", cfg.RequesterAddress)
	cfg.TargetAddress = getAddressEnv("IPMI_TARGET_ADDR", cfg.TargetAddress)
	cfg.InitialOutboundSequence = uint32(getIntEnv("IPMI_OUTBOUND_SEQ", int(cfg.InitialOutboundSequence)))
	cfg.ChunkSize = getIntEnv("IPMI_CHUNK_SIZE", cfg.ChunkSize)
	cfg.ChunkShrink = getIntEnv("IPMI_CHUNK_SHRINK", cfg.ChunkShrink)
	cfg.ReadRetries = getIntEnv("IPMI_READ_RETRIES", cfg.ReadRetries)
	cfg.APIAddr = getEnv("IPMI_API_ADDR", cfg.APIAddr)
	cfg.APIUser = getEnv("IPMI_API_USER", cfg.APIUser)
	cfg.APIPass = getEnv("IPMI_API_PASS", cfg.APIPass)
	cfg.LogLevel = getEnv("IPMI_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("IPMI_LOG_FORMAT", cfg.LogFormat)
	cfg.SimSessionless = getBoolEnv("IPMI_SIM_SESSIONLESS", cfg.SimSessionless)

	if v := os.Getenv("IPMI_ROUTING"); v != "" {
		hops, err := ParseRouting(v)
		if err != nil {
			return nil, fmt.Errorf("IPMI_ROUTING: %w", err)
		}
		cfg.Routing = hops
	}
	return cfg, nil
}

// LoadFile overlays the YAML profile at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch c.Interface {
	case "lan":
		if c.Host == "" {
			return errors.New("lan interface needs a host")
		}
	case "vm":
		if c.VMAddr == "" {
			return errors.New("vm interface needs an address")
		}
		if len(c.Routing) > 0 {
			return errors.New("vm interface does not support bridging")
		}
	default:
		return fmt.Errorf("unknown interface %q", c.Interface)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if _, ok := msg.ParsePrivilege(c.Privilege); !ok {
		return fmt.Errorf("unknown privilege %q", c.Privilege)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", c.Retries)
	}
	if c.ChunkSize <= 0 || c.ChunkSize > 0xFF {
		return fmt.Errorf("chunk size %d out of range", c.ChunkSize)
	}
	if c.ChunkShrink <= 0 {
		return fmt.Errorf("chunk shrink must be positive, got %d", c.ChunkShrink)
	}
	if len(c.Routing) == 1 {
		return errors.New("routing needs at least two hops")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// PrivilegeLevel returns the requested session privilege.
func (c *Config) PrivilegeLevel() msg.Privilege {
	p, ok := msg.ParsePrivilege(c.Privilege)
	if !ok {
		return msg.PrivilegeAdministrator
	}
	return p
}

// Target returns the controller requests are addressed to.
func (c *Config) Target() ipmb.Target {
	if len(c.Routing) == 0 {
		return ipmb.NewTarget(c.TargetAddress)
	}
	t := ipmb.Target{Address: c.TargetAddress}
	for _, h := range c.Routing {
		t.Routing = append(t.Routing, ipmb.Route{
			RequesterAddress: h.Requester,
			ResponderAddress: h.Responder,
			Channel:          h.Channel,
		})
	}
	return t
}

// ApplyLogging sets the logrus level and formatter.
func (c *Config) ApplyLogging() error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	if c.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// ParseRouting parses hops written as requester:responder[:channel],
// separated by commas, e.g. "0x81:0x20:7,0x20:0x82".
func ParseRouting(s string) ([]Hop, error) {
	var hops []Hop
	for _, part := range strings.Split(s, ",") {
		fields := strings.Split(strings.TrimSpace(part), ":")
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("invalid hop %q", part)
		}
		var vals [3]uint8
		for i, f := range fields {
			v, err := strconv.ParseUint(f, 0, 8)
			if err != nil {
				return nil, fmt.Errorf("invalid hop %q: %w", part, err)
			}
			vals[i] = uint8(v)
		}
		hops = append(hops, Hop{Requester: vals[0], Responder: vals[1], Channel: vals[2]})
	}
	return hops, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	switch value {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

func getIntEnv(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getAddressEnv(key string, defaultValue uint8) uint8 {
	v, err := strconv.ParseUint(os.Getenv(key), 0, 8)
	if err != nil {
		return defaultValue
	}
	return uint8(v)
}
