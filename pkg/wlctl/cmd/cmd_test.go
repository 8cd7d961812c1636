package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openwaitlist/waitlist/pkg/identity"
)

func execute(t *testing.T, out *bytes.Buffer, args ...string) error {
	t.Helper()
	root := NewRootCommand(Config{OutputWriter: out})
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	return root.Execute()
}

func tokenPathArgs(t *testing.T) (string, []string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokens.json")
	return path, []string{"--token-storage", "file", "--token-path", path}
}

func TestLoginDeviceFlowPersistsPair(t *testing.T) {
	origDevice := deviceLogin
	t.Cleanup(func() { deviceLogin = origDevice })

	expiry := time.Now().Add(5 * time.Minute)
	deviceLogin = func(_ context.Context, cfg identity.LoginConfig, out io.Writer) (identity.TokenPair, error) {
		assert.Equal(t, "https://id.example.com/realms/waitlist", cfg.Authority)
		assert.Equal(t, "waitlist-portal", cfg.ClientID)
		return identity.TokenPair{AccessToken: "at", RefreshToken: "rt", Expiry: expiry}, nil
	}

	path, storeArgs := tokenPathArgs(t)
	var out bytes.Buffer
	args := append([]string{
		"login",
		"--authority", "https://id.example.com/realms/waitlist",
		"--client-id", "waitlist-portal",
	}, storeArgs...)
	require.NoError(t, execute(t, &out, args...))
	assert.Contains(t, out.String(), "Authenticated")

	pair, found, err := identity.NewStore("file", path).Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "at", pair.AccessToken)
	assert.Equal(t, "rt", pair.RefreshToken)
}

func TestLoginBrowserFlag(t *testing.T) {
	origBrowser := browserLogin
	t.Cleanup(func() { browserLogin = origBrowser })

	called := false
	browserLogin = func(_ context.Context, _ identity.LoginConfig) (identity.TokenPair, error) {
		called = true
		return identity.TokenPair{AccessToken: "at"}, nil
	}

	_, storeArgs := tokenPathArgs(t)
	var out bytes.Buffer
	args := append([]string{
		"login", "--browser",
		"--authority", "https://id.example.com/realms/waitlist",
		"--client-id", "waitlist-portal",
	}, storeArgs...)
	require.NoError(t, execute(t, &out, args...))
	assert.True(t, called)
}

func TestLoginRequiresAuthority(t *testing.T) {
	var out bytes.Buffer
	err := execute(t, &out, "login", "--client-id", "waitlist-portal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authority")
}

func TestLoginSurfacesFlowError(t *testing.T) {
	origDevice := deviceLogin
	t.Cleanup(func() { deviceLogin = origDevice })
	deviceLogin = func(context.Context, identity.LoginConfig, io.Writer) (identity.TokenPair, error) {
		return identity.TokenPair{}, errors.New("device login failed")
	}

	_, storeArgs := tokenPathArgs(t)
	var out bytes.Buffer
	args := append([]string{
		"login",
		"--authority", "https://id.example.com/realms/waitlist",
		"--client-id", "waitlist-portal",
	}, storeArgs...)
	err := execute(t, &out, args...)
	require.Error(t, err)
}

func TestTokenShow(t *testing.T) {
	path, storeArgs := tokenPathArgs(t)
	require.NoError(t, identity.NewStore("file", path).Save(identity.TokenPair{
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
	}))

	var out bytes.Buffer
	require.NoError(t, execute(t, &out, append([]string{"token", "show"}, storeArgs...)...))
	assert.Equal(t, "access-123\n", out.String())

	out.Reset()
	require.NoError(t, execute(t, &out, append([]string{"token", "show", "--refresh"}, storeArgs...)...))
	assert.Equal(t, "refresh-456\n", out.String())
}

func TestTokenShowWithoutLogin(t *testing.T) {
	_, storeArgs := tokenPathArgs(t)
	var out bytes.Buffer
	err := execute(t, &out, append([]string{"token", "show"}, storeArgs...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wlctl login")
}

func TestLogoutClearsStore(t *testing.T) {
	path, storeArgs := tokenPathArgs(t)
	store := identity.NewStore("file", path)
	require.NoError(t, store.Save(identity.TokenPair{AccessToken: "at", RefreshToken: "rt"}))

	var out bytes.Buffer
	require.NoError(t, execute(t, &out, append([]string{"logout"}, storeArgs...)...))
	assert.Contains(t, out.String(), "Logged out")

	_, found, err := store.Load()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLogoutIdempotent(t *testing.T) {
	_, storeArgs := tokenPathArgs(t)
	var out bytes.Buffer
	require.NoError(t, execute(t, &out, append([]string{"logout"}, storeArgs...)...))
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, execute(t, &out, "version"))
	assert.NotEmpty(t, out.String())
}
