package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// set with -ldflags
var (
	version    = "dev"
	commitHash = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of busreader",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "busreader version: %s, %s/%s, commit: %s\n",
				version, runtime.GOOS, runtime.GOARCH, commitHash)
		},
	}
}
