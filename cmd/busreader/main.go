// Command busreader decodes an audio file or captures a sound card input
// and prints a summary of the assembled front-left and front-right bus.
package main

import (
	"fmt"
	"os"
)

const (
	successExitCode = 0
	errorExitCode   = 1
)

func main() {
	cmd, err := newRootCmd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(errorExitCode)
	}
	if err := cmd.Execute(); err != nil {
		os.Exit(errorExitCode)
	}
	os.Exit(successExitCode)
}
