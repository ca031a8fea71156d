// ipmi-test-server serves a simulated BMC over RMCP/UDP and the OpenIPMI
// VM protocol for manual and integration testing.
//
// Usage:
//
//	go run ./cmd/ipmi-test-server [--port 6234] [--vm-addr localhost:9002]
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tjst-t/go-ipmi/internal/bmcsim"
	"github.com/tjst-t/go-ipmi/internal/config"
	"github.com/tjst-t/go-ipmi/internal/ipmb"
	"github.com/tjst-t/go-ipmi/internal/msg"
)

// childAddress and childChannel locate the bridged controller.
const (
	childAddress = 0x82
	childChannel = 0x07
)

// newSimulator builds a BMC with a chassis, populated repositories, one
// FRU device and a PICMG controller reachable through bridging.
func newSimulator() *bmcsim.Controller {
	bmc := bmcsim.NewController(ipmb.BMCAddress)
	bmc.Device.Support = msg.DeviceSupport{
		Sensor:        true,
		SDRRepository: true,
		SEL:           true,
		FRUInventory:  true,
		Chassis:       true,
	}
	bmc.Chassis = bmcsim.NewChassis(true)

	bmc.SDR = bmcsim.NewRepository()
	for id := uint16(1); id <= 4; id++ {
		name := fmt.Sprintf("Temp %d", id)
		rec := []byte{byte(id), byte(id >> 8), 0x51, 0x12, byte(len(name) + 1), 0x20}
		bmc.SDR.Add(id, append(rec, name...))
	}

	bmc.SEL = bmcsim.NewRepository()
	bmc.SEL.Add(0x0001, []byte{0x01, 0x00, 0x02, 0, 0, 0, 0, 0x20, 0x00, 0x04, 0x01, 0x30, 0x6f, 0x00, 0xff, 0xff})

	fru := make([]byte, 64)
	fru[0] = 0x01
	copy(fru[8:], "go-ipmi simulator")
	bmc.SetFRU(0, &bmcsim.FRU{Data: fru, MaxRead: 32})

	child := bmcsim.NewController(childAddress)
	child.Device.ID = childAddress
	child.PICMG = true
	child.SetFRU(0, &bmcsim.FRU{Data: make([]byte, 16)})
	child.DeviceSDR = bmcsim.NewRepository()
	child.DeviceSDR.Add(0x0001, []byte{0x01, 0x00, 0x51, 0x12, 0x01, childAddress})
	bmc.Attach(childChannel, child)
	return bmc
}

func newRootCommand() *cobra.Command {
	var (
		port   int
		vmAddr string
	)
	cmd := &cobra.Command{
		Use:          "ipmi-test-server",
		Short:        "Serve a simulated BMC over RMCP and the VM protocol",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.ApplyLogging(); err != nil {
				return err
			}
			if !cmd.Flags().Changed("port") && os.Getenv("IPMI_PORT") != "" {
				port = cfg.Port
			}
			if !cmd.Flags().Changed("vm-addr") {
				vmAddr = cfg.VMAddr
			}

			bmc := newSimulator()
			srv := bmcsim.NewServer(bmc, bmcsim.NewState(cfg.User, cfg.Pass))
			srv.Sessionless = cfg.SimSessionless
			vms := bmcsim.NewVMServer(bmc)

			errCh := make(chan error, 2)
			go func() {
				errCh <- srv.ListenAndServe(net.JoinHostPort("", strconv.Itoa(port)))
			}()
			go func() {
				errCh <- vms.ListenAndServe(vmAddr)
			}()
			log.WithFields(log.Fields{
				"port":        port,
				"vm_addr":     vmAddr,
				"user":        cfg.User,
				"sessionless": cfg.SimSessionless,
			}).Info("IPMI test server started")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-sigCh:
				log.WithField("signal", sig.String()).Info("shutting down")
			case err = <-errCh:
			}
			srv.Close()
			vms.Close()
			return err
		},
	}
	cmd.Flags().IntVar(&port, "port", 6234, "UDP port for RMCP")
	cmd.Flags().StringVar(&vmAddr, "vm-addr", "", "TCP address for the VM protocol")
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.WithError(err).Fatal("ipmi-test-server failed")
	}
}
