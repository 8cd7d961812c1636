package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// LoginConfig drives the interactive login flows used by wlctl.
type LoginConfig struct {
	// Authority is the OIDC issuer URL (Keycloak realm URL).
	Authority string
	ClientID  string
	Scopes    []string
}

// discoverEndpoint resolves the provider's OAuth endpoints, including the
// device authorization endpoint that oauth2.Endpoint needs for device flow.
func discoverEndpoint(ctx context.Context, authority string) (oauth2.Endpoint, error) {
	provider, err := oidc.NewProvider(ctx, authority)
	if err != nil {
		return oauth2.Endpoint{}, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	endpoint := provider.Endpoint()
	if endpoint.DeviceAuthURL == "" {
		var claims struct {
			DeviceAuthorizationEndpoint string `json:"device_authorization_endpoint"`
		}
		if err := provider.Claims(&claims); err == nil {
			endpoint.DeviceAuthURL = claims.DeviceAuthorizationEndpoint
		}
	}
	return endpoint, nil
}

func oauthConfig(endpoint oauth2.Endpoint, cfg LoginConfig, redirectURL string) oauth2.Config {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}
	return oauth2.Config{
		ClientID:    cfg.ClientID,
		Endpoint:    endpoint,
		RedirectURL: redirectURL,
		Scopes:      scopes,
	}
}

func pairFromToken(token *oauth2.Token) TokenPair {
	return TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}
}

// BrowserLogin runs the authorization-code flow with PKCE: it starts a
// loopback callback listener, opens the provider's login page in a browser
// and exchanges the returned code for a token pair.
func BrowserLogin(ctx context.Context, cfg LoginConfig) (TokenPair, error) {
	if cfg.Authority == "" || cfg.ClientID == "" {
		return TokenPair{}, errors.New("authority and client ID are required")
	}

	endpoint, err := discoverEndpoint(ctx, cfg.Authority)
	if err != nil {
		return TokenPair{}, err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to start callback listener: %w", err)
	}
	defer func() { _ = listener.Close() }()

	redirectURL := fmt.Sprintf("http://%s/callback", listener.Addr().String())
	oauthCfg := oauthConfig(endpoint, cfg, redirectURL)

	verifier, challenge, err := newPKCEPair()
	if err != nil {
		return TokenPair{}, err
	}
	state, err := randomToken(24)
	if err != nil {
		return TokenPair{}, err
	}

	authURL := oauthCfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)

	resultCh := make(chan TokenPair, 1)
	errCh := make(chan error, 1)

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/callback" {
				http.NotFound(w, r)
				return
			}
			if r.URL.Query().Get("state") != state {
				errCh <- errors.New("invalid state in callback")
				http.Error(w, "invalid state", http.StatusBadRequest)
				return
			}
			code := r.URL.Query().Get("code")
			if code == "" {
				errCh <- errors.New("missing code in callback")
				http.Error(w, "missing code", http.StatusBadRequest)
				return
			}
			token, err := oauthCfg.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", verifier))
			if err != nil {
				errCh <- fmt.Errorf("token exchange failed: %w", err)
				http.Error(w, "token exchange failed", http.StatusInternalServerError)
				return
			}
			_, _ = fmt.Fprintln(w, "Login complete. You can close this window.")
			resultCh <- pairFromToken(token)
		}),
	}

	go func() { _ = server.Serve(listener) }()
	defer func() { _ = server.Close() }()

	_, _ = fmt.Fprintf(os.Stdout, "Open the following URL in your browser:\n%s\n", authURL)
	_ = openBrowser(authURL)

	select {
	case <-ctx.Done():
		return TokenPair{}, ctx.Err()
	case err := <-errCh:
		return TokenPair{}, err
	case pair := <-resultCh:
		return pair, nil
	}
}

func newPKCEPair() (string, string, error) {
	verifier, err := randomToken(32)
	if err != nil {
		return "", "", err
	}
	sum := sha256.Sum256([]byte(verifier))
	return verifier, base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

func randomToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Start()
}
