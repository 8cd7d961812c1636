package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored token pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.Store().Clear(); err != nil {
				return fmt.Errorf("failed to clear stored tokens: %w", err)
			}
			_, _ = fmt.Fprintln(rt.Writer(), "Logged out.")
			return nil
		},
	}
}
