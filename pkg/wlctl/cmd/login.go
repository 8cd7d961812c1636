package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/openwaitlist/waitlist/pkg/identity"
)

// Swapped out by tests.
var (
	deviceLogin  = identity.DeviceLogin
	browserLogin = identity.BrowserLogin
)

func newLoginCommand() *cobra.Command {
	var useBrowser bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login via OIDC and persist the token pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			loginCfg, err := rt.LoginConfig()
			if err != nil {
				return err
			}

			var pair identity.TokenPair
			if useBrowser {
				pair, err = browserLogin(context.Background(), loginCfg)
			} else {
				pair, err = deviceLogin(context.Background(), loginCfg, rt.Writer())
			}
			if err != nil {
				return err
			}

			if err := rt.Store().Save(pair); err != nil {
				return fmt.Errorf("login succeeded but storing the token pair failed: %w", err)
			}

			printExpiry(rt.Writer(), pair)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useBrowser, "browser", false, "Use the auth-code flow with a local browser instead of device code")
	return cmd
}

func printExpiry(w io.Writer, pair identity.TokenPair) {
	if pair.Expiry.IsZero() {
		_, _ = fmt.Fprintln(w, "Authenticated.")
		return
	}
	_, _ = fmt.Fprintf(w, "Authenticated. Token expires at %s\n", pair.Expiry.UTC().Format(time.RFC3339))
}
