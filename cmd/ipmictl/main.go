// ipmictl talks to a BMC over RMCP (IPMI 1.5 LAN) or the OpenIPMI VM
// protocol, and can expose it through the raw HTTP API.
//
// Usage:
//
//	ipmictl --host 10.0.0.5 --user admin --pass password info
//	ipmictl --interface vm --vm-addr localhost:9002 raw 0x06 0x01
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tjst-t/go-ipmi/internal/config"
)

// globalFlags are the persistent flags that override the loaded
// configuration when given.
type globalFlags struct {
	host      string
	port      int
	user      string
	pass      string
	privilege string
	iface     string
	vmAddr    string
	target    string
	route     string
	logLevel  string
}

func newRootCommand() *cobra.Command {
	var (
		flags globalFlags
		cfg = config.Default()
	)

	cmd := &cobra.Command{
		Use:           "ipmictl",
		Short:         "IPMI client for LAN and VM interfaces",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, &flags, loaded); err != nil {
				return err
			}
			*cfg = *loaded
			return cfg.ApplyLogging()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.host, "host", "H", "", "BMC host name or address")
	pf.IntVarP(&flags.port, "port", "p", 623, "BMC RMCP port")
	pf.StringVarP(&flags.user, "user", "U", "", "user name")
	pf.StringVarP(&flags.pass, "pass", "P", "", "password")
	pf.StringVarP(&flags.privilege, "privilege", "L", "", "session privilege level")
	pf.StringVarP(&flags.iface, "interface", "I", "", "interface: lan or vm")
	pf.StringVar(&flags.vmAddr, "vm-addr", "", "OpenIPMI VM protocol address")
	pf.StringVarP(&flags.target, "target", "t", "", "target controller address")
	pf.StringVar(&flags.route, "route", "", "bridging hops, requester:responder[:channel],...")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level")

	cmd.AddCommand(
		newPingCommand(cfg),
		newInfoCommand(cfg),
		newRawCommand(cfg),
		newChassisCommand(cfg),
		newSDRCommand(cfg),
		newSELCommand(cfg),
		newFRUCommand(cfg),
		newServeCommand(cfg),
	)
	return cmd
}

// applyFlags copies the flags the user set onto cfg.
func applyFlags(cmd *cobra.Command, f *globalFlags, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("host") {
		cfg.Host = f.host
	}
	if changed("port") {
		cfg.Port = f.port
	}
	if changed("user") {
		cfg.User = f.user
	}
	if changed("pass") {
		cfg.Pass = f.pass
	}
	if changed("privilege") {
		cfg.Privilege = f.privilege
	}
	if changed("interface") {
		cfg.Interface = f.iface
	}
	if changed("vm-addr") {
		cfg.VMAddr = f.vmAddr
	}
	if changed("target") {
		addr, err := parseByte(f.target)
		if err != nil {
			return fmt.Errorf("--target: %w", err)
		}
		cfg.TargetAddress = addr
	}
	if changed("route") {
		hops, err := config.ParseRouting(f.route)
		if err != nil {
			return fmt.Errorf("--route: %w", err)
		}
		cfg.Routing = hops
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	return nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.WithError(err).Error("ipmictl failed")
		os.Exit(1)
	}
}
