package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DeviceLogin runs the OAuth device-code flow: it requests a user code,
// prints the verification URL, optionally opens a browser, and polls the
// token endpoint until the user has completed the login.
//
// Instructions are written to out (os.Stdout when nil).
func DeviceLogin(ctx context.Context, cfg LoginConfig, out io.Writer) (TokenPair, error) {
	if cfg.Authority == "" || cfg.ClientID == "" {
		return TokenPair{}, errors.New("authority and client ID are required")
	}
	if out == nil {
		out = os.Stdout
	}

	endpoint, err := discoverEndpoint(ctx, cfg.Authority)
	if err != nil {
		return TokenPair{}, err
	}
	if endpoint.DeviceAuthURL == "" {
		return TokenPair{}, errors.New("device authorization endpoint not advertised")
	}

	oauthCfg := oauthConfig(endpoint, cfg, "")

	deviceAuth, err := oauthCfg.DeviceAuth(ctx)
	if err != nil {
		return TokenPair{}, fmt.Errorf("device authorization request failed: %w", err)
	}

	_, _ = fmt.Fprintf(out, "Visit %s and enter code: %s\n", deviceAuth.VerificationURI, deviceAuth.UserCode)
	verificationURL := deviceAuth.VerificationURIComplete
	if verificationURL == "" {
		verificationURL = deviceAuth.VerificationURI
	}
	if verificationURL != "" && !strings.EqualFold(os.Getenv("WLCTL_NO_BROWSER"), "true") {
		_ = openBrowser(verificationURL)
	}

	token, err := oauthCfg.DeviceAccessToken(ctx, deviceAuth)
	if err != nil {
		return TokenPair{}, fmt.Errorf("device login failed: %w", err)
	}
	return pairFromToken(token), nil
}
