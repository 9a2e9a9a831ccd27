package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/speters/mcuprobe/mcu"
)

func parseParams(args []string) ([]byte, error) {
	b := make([]byte, len(args))
	for i, a := range args {
		v, err := strconv.ParseUint(a, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", a, err)
		}
		b[i] = byte(v)
	}
	return b, nil
}

// exchange sends req and prints raw and decoded reply
func exchange(w io.Writer, d *mcu.Driver, dialect mcu.Dialect, name string, req mcu.Request) error {
	fmt.Fprintf(w, "Sending command: %s\n", name)
	resp, ok, err := d.Exchange(req)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(w, "Raw response: None\nParsed response: No response\n")
		return nil
	}
	fmt.Fprintf(w, "Raw response: % X\n", resp)
	fmt.Fprintf(w, "Parsed response: %s\n", mcu.Describe(mcu.Frame{Dialect: dialect, Payload: resp}))
	return nil
}

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <command> [param...]",
		Short: "Send one command and print the reply",
		Long:  "Send one command of the command table. Parameters (decimal or 0x hex) replace the defaults.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := mcu.Lookup(args[0])
			if err != nil {
				return err
			}
			req := c.Request()
			if len(args) > 1 {
				p, err := parseParams(args[1:])
				if err != nil {
					return err
				}
				req = c.With(p...)
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return withDevice(cfg, func(dev *mcu.Device) error {
				d := mcu.NewDriver(dev, driverOptions(cfg)...)
				return exchange(os.Stdout, d, cfg.DialectValue(), c.Name, req)
			})
		},
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Send every command of the command table once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return withDevice(cfg, func(dev *mcu.Device) error {
				d := mcu.NewDriver(dev, driverOptions(cfg)...)
				for _, c := range mcu.Commands() {
					if err := exchange(os.Stdout, d, cfg.DialectValue(), c.Name, c.Request()); err != nil {
						return err
					}
					fmt.Println()
				}
				return nil
			})
		},
	}
}

func newCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List the command table",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, c := range mcu.Commands() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s 0x%02X % X\n", c.Name, c.Opcode, c.Params)
			}
		},
	}
}
