package main

import (
	"fmt"
	"os"

	wlctlcmd "github.com/openwaitlist/waitlist/pkg/wlctl/cmd"
)

func main() {
	root := wlctlcmd.NewRootCommand(wlctlcmd.DefaultConfig())
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
