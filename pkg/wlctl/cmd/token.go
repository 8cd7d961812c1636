package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored token pair",
	}
	cmd.AddCommand(newTokenShowCommand())
	return cmd
}

func newTokenShowCommand() *cobra.Command {
	var showRefresh bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}

			pair, found, err := rt.Store().Load()
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no stored token pair, run `wlctl login` first")
			}

			token := pair.AccessToken
			if showRefresh {
				token = pair.RefreshToken
			}
			if token == "" {
				return fmt.Errorf("requested token is empty")
			}
			_, _ = fmt.Fprintln(rt.Writer(), token)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showRefresh, "refresh", false, "Print the refresh token instead of the access token")
	return cmd
}
