package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/tjst-t/go-ipmi/internal/config"
	"github.com/tjst-t/go-ipmi/internal/ipmi"
	"github.com/tjst-t/go-ipmi/internal/session"
	"github.com/tjst-t/go-ipmi/internal/transport"
)

func transportOptions(cfg *config.Config, m *transport.Metrics) transport.Options {
	retries := cfg.Retries
	if retries == 0 {
		// zero means the package default in Options
		retries = -1
	}
	return transport.Options{
		Timeout:          cfg.Timeout,
		Retries:          retries,
		Backoff:          cfg.Backoff,
		RequesterAddress: cfg.RequesterAddress,
		Metrics:          m,
	}
}

// dialLAN opens the UDP socket without a session.
func dialLAN(ctx context.Context, cfg *config.Config, m *transport.Metrics) (*transport.LAN, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	return transport.DialLAN(ctx, addr, transportOptions(cfg, m))
}

// connect validates cfg, dials the configured interface and, for LAN,
// establishes the session.
func connect(ctx context.Context, cfg *config.Config, m *transport.Metrics) (*ipmi.Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var tr transport.Transport
	switch cfg.Interface {
	case "vm":
		v, err := transport.DialVM(ctx, cfg.VMAddr, transportOptions(cfg, m))
		if err != nil {
			return nil, err
		}
		tr = v
	default:
		l, err := dialLAN(ctx, cfg, m)
		if err != nil {
			return nil, err
		}
		err = l.Open(ctx, session.Config{
			Username:                cfg.User,
			Password:                cfg.Pass,
			Privilege:               cfg.PrivilegeLevel(),
			InitialOutboundSequence: cfg.InitialOutboundSequence,
		})
		if err != nil {
			l.Close()
			return nil, err
		}
		tr = l
	}

	return ipmi.New(tr,
		ipmi.WithTarget(cfg.Target()),
		ipmi.WithReadTuning(ipmi.ReadTuning{
			ChunkSize:  cfg.ChunkSize,
			Shrink:     cfg.ChunkShrink,
			MaxRetries: cfg.ReadRetries,
		}),
	), nil
}
