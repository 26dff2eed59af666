package main

import (
	"fmt"

	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"github.com/leandrodaf/perfdiff/sdk/midi"
	"github.com/spf13/cobra"
)

var serialDevices bool

func init() {
	devicesCmd.Flags().BoolVar(&serialDevices, "serial", false, "list serial ports instead of native MIDI devices")
	rootCmd.AddCommand(devicesCmd)
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List MIDI input devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := []contracts.Option{contracts.WithLogger(newLogger())}
		if serialDevices {
			opts = append(opts, contracts.WithSerialTransport(contracts.SerialConfig{}))
		}
		client, err := midi.NewMIDIClient(opts...)
		if err != nil {
			return err
		}
		defer client.Stop()

		devices, err := client.ListDevices()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, headerStyle.Render("index  name"))
		for i, d := range devices {
			line := fmt.Sprintf("%5d  %s", i, d.Name)
			if d.Manufacturer != "" {
				line += dimStyle.Render(" (" + d.Manufacturer + ")")
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}
