package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pipelined/busreader/portaudio"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available input devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := portaudio.Devices()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tHOST API\tCHANNELS\tSAMPLE RATE\tDEFAULT")
			for _, d := range devices {
				fmt.Fprintf(w, "%s\t%s\t%d\t%v\t%v\n", d.Name, d.HostAPI, d.Channels, d.DefaultSampleRate, d.Default)
			}
			return w.Flush()
		},
	}
}
