package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
)

// The credential pair is persisted under two fixed keys, overwritten on
// every save and removed only by an explicit logout.
const (
	AccessTokenKey  = "waitlist.access-token"
	RefreshTokenKey = "waitlist.refresh-token"

	keyringService = "waitlist-portal"

	storeBackendFile    = "file"
	storeBackendKeyring = "keyring"
)

// TokenStore persists the session credential pair across process restarts.
// The file backend writes a JSON document with 0600 permissions; the keyring
// backend uses the OS credential store via zalando/go-keyring.
type TokenStore struct {
	Backend string
	// Path is the cache file for the file backend.
	Path string
}

// DefaultStorePath returns the cache file location used by the file backend
// when none is configured.
func DefaultStorePath() string {
	if env := os.Getenv("WAITLIST_TOKEN_PATH"); env != "" {
		return env
	}
	base, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(base, "waitlist", "tokens.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".waitlist", "tokens.json")
}

// NewStore builds a TokenStore for the given backend ("file" or "keyring").
func NewStore(backend, path string) *TokenStore {
	if backend == "" {
		backend = storeBackendFile
	}
	if path == "" {
		path = DefaultStorePath()
	}
	return &TokenStore{Backend: backend, Path: path}
}

// Save writes both keys, unconditionally overwriting any prior values.
func (s *TokenStore) Save(pair TokenPair) error {
	if s.Backend == storeBackendKeyring {
		if err := keyring.Set(keyringService, AccessTokenKey, pair.AccessToken); err != nil {
			return fmt.Errorf("failed to store access token: %w", err)
		}
		if err := keyring.Set(keyringService, RefreshTokenKey, pair.RefreshToken); err != nil {
			return fmt.Errorf("failed to store refresh token: %w", err)
		}
		return nil
	}
	return s.saveFile(pair)
}

// Load returns the stored pair, reporting found=false when nothing has been
// persisted yet.
func (s *TokenStore) Load() (TokenPair, bool, error) {
	if s.Backend == storeBackendKeyring {
		access, err := keyring.Get(keyringService, AccessTokenKey)
		if errors.Is(err, keyring.ErrNotFound) {
			return TokenPair{}, false, nil
		}
		if err != nil {
			return TokenPair{}, false, err
		}
		refresh, err := keyring.Get(keyringService, RefreshTokenKey)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return TokenPair{}, false, err
		}
		return TokenPair{AccessToken: access, RefreshToken: refresh}, true, nil
	}
	return s.loadFile()
}

// Clear removes both keys. Missing entries are not an error.
func (s *TokenStore) Clear() error {
	if s.Backend == storeBackendKeyring {
		for _, key := range []string{AccessTokenKey, RefreshTokenKey} {
			if err := keyring.Delete(keyringService, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
				return err
			}
		}
		return nil
	}
	err := os.Remove(s.Path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *TokenStore) saveFile(pair TokenPair) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create token dir: %w", err)
	}
	content, err := json.MarshalIndent(map[string]string{
		AccessTokenKey:  pair.AccessToken,
		RefreshTokenKey: pair.RefreshToken,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token cache: %w", err)
	}
	return os.WriteFile(s.Path, content, 0o600)
}

func (s *TokenStore) loadFile() (TokenPair, bool, error) {
	content, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return TokenPair{}, false, nil
	}
	if err != nil {
		return TokenPair{}, false, err
	}
	var keys map[string]string
	if err := json.Unmarshal(content, &keys); err != nil {
		return TokenPair{}, false, fmt.Errorf("failed to parse token cache: %w", err)
	}
	pair := TokenPair{
		AccessToken:  keys[AccessTokenKey],
		RefreshToken: keys[RefreshTokenKey],
	}
	return pair, pair.AccessToken != "" || pair.RefreshToken != "", nil
}
