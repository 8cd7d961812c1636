// Package cmd implements the wlctl command tree: interactive login against
// the portal's realm, inspection of the stored token pair and logout.
package cmd

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/openwaitlist/waitlist/pkg/identity"
)

type Config struct {
	OutputWriter io.Writer
}

type runtimeState struct {
	authority    string
	clientID     string
	tokenStorage string
	tokenPath    string
	writer       io.Writer
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{OutputWriter: os.Stdout}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{writer: cfg.OutputWriter}

	root := &cobra.Command{
		Use:           "wlctl",
		Short:         "Waitlist portal CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.authority == "" {
				rt.authority = os.Getenv("WLCTL_AUTHORITY")
			}
			if rt.clientID == "" {
				rt.clientID = os.Getenv("WLCTL_CLIENT_ID")
			}
			if rt.tokenStorage == "" {
				rt.tokenStorage = os.Getenv("WLCTL_TOKEN_STORAGE")
			}
			if rt.tokenPath == "" {
				rt.tokenPath = os.Getenv("WLCTL_TOKEN_PATH")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&rt.authority, "authority", "", "OIDC issuer URL (Keycloak realm URL)")
	root.PersistentFlags().StringVar(&rt.clientID, "client-id", "", "OIDC client ID")
	root.PersistentFlags().StringVar(&rt.tokenStorage, "token-storage", "", "Token storage backend: file or keyring")
	root.PersistentFlags().StringVar(&rt.tokenPath, "token-path", "", "Token cache file for the file backend")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		newLoginCommand(),
		newTokenCommand(),
		newLogoutCommand(),
		newVersionCommand(),
	)
	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("command runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer == nil {
		return os.Stdout
	}
	return rt.writer
}

func (rt *runtimeState) Store() *identity.TokenStore {
	return identity.NewStore(rt.tokenStorage, rt.tokenPath)
}

func (rt *runtimeState) LoginConfig() (identity.LoginConfig, error) {
	if rt.authority == "" || rt.clientID == "" {
		return identity.LoginConfig{}, errors.New("authority and client ID are required (--authority/--client-id or WLCTL_AUTHORITY/WLCTL_CLIENT_ID)")
	}
	return identity.LoginConfig{
		Authority: rt.authority,
		ClientID:  rt.clientID,
	}, nil
}
