package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openwaitlist/waitlist/pkg/system"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show wlctl version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), system.VersionString())
			return nil
		},
	}
}
