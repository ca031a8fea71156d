package main

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tjst-t/go-ipmi/internal/codec"
	"github.com/tjst-t/go-ipmi/internal/config"
	"github.com/tjst-t/go-ipmi/internal/ipmi"
	"github.com/tjst-t/go-ipmi/internal/transport"
)

func newPingCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the BMC answers (ASF presence ping on LAN, handshake on VM)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if cfg.Interface == "vm" {
				v, err := transport.DialVM(ctx, cfg.VMAddr, transportOptions(cfg, nil))
				if err != nil {
					return err
				}
				defer v.Close()
				fmt.Fprintf(cmd.OutOrStdout(), "%s: VM interface ready\n", cfg.VMAddr)
				return nil
			}
			if cfg.Host == "" {
				return fmt.Errorf("ping needs a host")
			}
			l, err := dialLAN(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer l.Close()
			if err := l.Ping(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: IPMI supported\n", cfg.Host)
			return nil
		},
	}
}

func newInfoCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the target's device ID and GUID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer conn.Close()

			d := conn.Device()
			id, err := d.ID(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Device ID          : 0x%02x\n", id.DeviceID)
			fmt.Fprintf(out, "Device Revision    : %d\n", id.DeviceRevision)
			fmt.Fprintf(out, "Firmware Revision  : %d.%02x\n", id.FirmwareMajor, id.FirmwareMinor)
			fmt.Fprintf(out, "IPMI Version       : %d.%d\n", id.IPMIVersion&0x0F, id.IPMIVersion>>4)
			fmt.Fprintf(out, "Manufacturer ID    : %d\n", id.ManufacturerID)
			fmt.Fprintf(out, "Product ID         : %d\n", id.ProductID)
			fmt.Fprintf(out, "Provides Device SDR: %t\n", id.ProvidesDeviceSDRs)
			if guid, err := d.GUID(cmd.Context()); err == nil {
				fmt.Fprintf(out, "Device GUID        : %s\n", guid)
			}
			return nil
		},
	}
}

func newRawCommand(cfg *config.Config) *cobra.Command {
	var lun uint8
	cmd := &cobra.Command{
		Use:   "raw <netfn> <cmd> [data...]",
		Short: "Send a raw request and print the response data",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b := make([]byte, len(args))
			for i, a := range args {
				v, err := parseByte(a)
				if err != nil {
					return err
				}
				b[i] = v
			}
			conn, err := connect(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer conn.Close()

			rsp, err := conn.Raw(cmd.Context(), lun, b[0], b[1:])
			if err != nil {
				return err
			}
			if len(rsp) == 0 {
				return codec.ErrTruncated
			}
			if cc := codec.CompletionCode(rsp[0]); cc != codec.CompletionCodeOK {
				return fmt.Errorf("completion code 0x%02x (%s)", uint8(cc), cc)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hexBytes(rsp[1:]))
			return nil
		},
	}
	cmd.Flags().Uint8Var(&lun, "lun", 0, "responder LUN")
	return cmd
}

func newChassisCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chassis",
		Short: "Chassis status and power control",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the chassis power state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer conn.Close()
			st, err := conn.Chassis().Status(cmd.Context())
			if err != nil {
				return err
			}
			power := "off"
			if st.Power.PowerOn {
				power = "on"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "System Power  : %s\n", power)
			fmt.Fprintf(out, "Power Overload: %t\n", st.Power.PowerOverload)
			fmt.Fprintf(out, "Power Fault   : %t\n", st.Power.PowerFault)
			fmt.Fprintf(out, "Intrusion     : %t\n", st.Misc.Intrusion)
			return nil
		},
	}, &cobra.Command{
		Use:   "power <on|off|cycle|reset|diag|soft>",
		Short: "Send a chassis control operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, ok := ipmi.ParseControl(args[0])
			if !ok {
				return fmt.Errorf("unknown power action %q", args[0])
			}
			conn, err := connect(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := conn.Chassis().Control(cmd.Context(), op); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chassis Power Control: %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func newSDRCommand(cfg *config.Config) *cobra.Command {
	var device bool
	cmd := &cobra.Command{
		Use:   "sdr",
		Short: "List sensor data records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer conn.Close()
			repo := conn.SDR()
			if device {
				repo = conn.DeviceSDR()
			}
			records, err := repo.ReadAll(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, rec := range records {
				fmt.Fprintf(out, "%04x | type 0x%02x | %3d bytes | %s\n",
					binary.LittleEndian.Uint16(rec[0:2]), rec[3], len(rec), hexBytes(rec[5:]))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&device, "device", false, "read device SDRs instead of the SDR repository")
	return cmd
}

func newSELCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sel",
		Short: "System event log",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List SEL entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer conn.Close()
			records, err := conn.SEL().ReadAll(cmd.Context())
			if err != nil {
				return err
			}
			for _, rec := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "%04x | %s\n", binary.LittleEndian.Uint16(rec[0:2]), hexBytes(rec[2:]))
			}
			return nil
		},
	}, &cobra.Command{
		Use:   "clear",
		Short: "Erase the SEL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := conn.SEL().Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "SEL cleared")
			return nil
		},
	})
	return cmd
}

func newFRUCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "fru [id]",
		Short: "Dump a FRU inventory area",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id uint8
			if len(args) == 1 {
				v, err := parseByte(args[0])
				if err != nil {
					return err
				}
				id = v
			}
			conn, err := connect(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer conn.Close()
			data, err := conn.FRU(id).ReadAll(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for off := 0; off < len(data); off += 16 {
				end := min(off+16, len(data))
				fmt.Fprintf(out, "%04x: %s\n", off, hexBytes(data[off:end]))
			}
			return nil
		},
	}
}

// parseByte accepts decimal and 0x prefixed hex.
func parseByte(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte %q", s)
	}
	return uint8(v), nil
}

func hexBytes(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, " ")
}
