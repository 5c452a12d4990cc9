package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pipelined/busreader/engine"
)

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported input formats",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range engine.DefaultRegistry().Formats() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
