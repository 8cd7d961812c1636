package identity

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Nerzal/gocloak/v13"
	"go.uber.org/zap"

	"github.com/openwaitlist/waitlist/pkg/config"
)

// TokenPair is the session credential pair returned by the identity provider:
// a short-lived access token and the refresh token used to renew it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// UserRecord is the portal's view of a directory user.
type UserRecord struct {
	ID            string
	Username      string
	Email         string
	FirstName     string
	LastName      string
	Enabled       bool
	EmailVerified bool
	CreatedAt     time.Time
}

// ErrUserExists is returned by CreateUser when the username is already taken;
// the record then carries the existing user's ID.
var ErrUserExists = errors.New("user already exists")

// Connector is the identity-client handle. It owns the in-memory token pair
// and delegates the protocol to gocloak.
type Connector struct {
	client *gocloak.GoCloak
	cfg    config.Keycloak
	log    *zap.SugaredLogger

	mu   sync.Mutex
	pair TokenPair

	adminMu     sync.Mutex
	adminToken  string
	adminExpiry time.Time
}

// NewConnector configures the identity client from static configuration:
// endpoint URL, realm, client identifier. TLS trust follows the configured
// CA bundle, or system roots by default.
func NewConnector(cfg config.Keycloak, log *zap.SugaredLogger) (*Connector, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" || strings.TrimSpace(cfg.Realm) == "" {
		return nil, errors.New("keycloak base URL and realm are required")
	}

	client := gocloak.NewClient(strings.TrimRight(cfg.BaseURL, "/"))
	resty := client.RestyClient()
	resty.SetTimeout(parseTimeout(cfg.RequestTimeout))

	if cfg.CertificateAuthority != "" {
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM([]byte(cfg.CertificateAuthority)); !ok {
			return nil, errors.New("could not parse certificateAuthority PEM from configuration")
		}
		resty.SetTLSClientConfig(&tls.Config{MinVersion: tls.VersionTLS12, RootCAs: pool})
	} else if cfg.InsecureSkipVerify {
		log.Warn("keycloak.insecureSkipVerify=true: TLS certificate verification is DISABLED (dev only)")
		resty.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec
	}

	return &Connector{client: client, cfg: cfg, log: log}, nil
}

// Authority returns the OIDC issuer URL of the configured realm.
func (c *Connector) Authority() string {
	return c.cfg.Authority()
}

// CurrentPair returns a copy of the in-memory token pair.
func (c *Connector) CurrentPair() TokenPair {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pair
}

func (c *Connector) setPair(jwt *gocloak.JWT) TokenPair {
	pair := TokenPair{
		AccessToken:  jwt.AccessToken,
		RefreshToken: jwt.RefreshToken,
		Expiry:       time.Now().Add(time.Duration(jwt.ExpiresIn) * time.Second),
	}
	c.mu.Lock()
	c.pair = pair
	c.mu.Unlock()
	return pair
}

// Initialize performs the authentication handshake. The outcome is exactly
// one of: a live token pair (authenticated), authenticated=false when no
// usable credentials exist or a prior session can no longer be resumed, or
// an error when the provider rejects the handshake outright.
//
// Confidential clients log in with their service account. Otherwise a prior
// session is resumed from the stored refresh token, if one was passed in.
func (c *Connector) Initialize(ctx context.Context, prior *TokenPair) (TokenPair, bool, error) {
	if c.cfg.ClientSecret != "" {
		jwt, err := c.client.LoginClient(ctx, c.cfg.ClientID, c.cfg.ClientSecret, c.cfg.Realm)
		if err != nil {
			return TokenPair{}, false, fmt.Errorf("service account login failed: %w", err)
		}
		return c.setPair(jwt), true, nil
	}

	if prior != nil && prior.RefreshToken != "" {
		jwt, err := c.client.RefreshToken(ctx, prior.RefreshToken, c.cfg.ClientID, c.cfg.ClientSecret, c.cfg.Realm)
		if err != nil {
			// An expired or revoked refresh token is a negative result,
			// not a failure: the caller sends the user back to login.
			c.log.Warnw("Could not resume session from stored refresh token", "error", err)
			return TokenPair{}, false, nil
		}
		return c.setPair(jwt), true, nil
	}

	return TokenPair{}, false, nil
}

// Refresh renews the in-memory pair when it expires within minValidity.
// Returns renewed=false when the token was still fresh enough.
func (c *Connector) Refresh(ctx context.Context, minValidity time.Duration) (TokenPair, bool, error) {
	c.mu.Lock()
	pair := c.pair
	c.mu.Unlock()

	if !pair.Expiry.IsZero() && time.Until(pair.Expiry) > minValidity {
		return pair, false, nil
	}

	if pair.RefreshToken != "" {
		jwt, err := c.client.RefreshToken(ctx, pair.RefreshToken, c.cfg.ClientID, c.cfg.ClientSecret, c.cfg.Realm)
		if err == nil {
			return c.setPair(jwt), true, nil
		}
		if c.cfg.ClientSecret == "" {
			return pair, false, fmt.Errorf("failed to refresh token: %w", err)
		}
		c.log.Warnw("Refresh token rejected, falling back to service account login", "error", err)
	}

	if c.cfg.ClientSecret != "" {
		jwt, err := c.client.LoginClient(ctx, c.cfg.ClientID, c.cfg.ClientSecret, c.cfg.Realm)
		if err != nil {
			return pair, false, fmt.Errorf("service account re-login failed: %w", err)
		}
		return c.setPair(jwt), true, nil
	}

	return pair, false, errors.New("no refresh token available")
}

// adminAccessToken returns a live admin token for directory operations,
// logging in with the configured admin credentials when the cached one is
// about to expire.
func (c *Connector) adminAccessToken(ctx context.Context) (string, error) {
	c.adminMu.Lock()
	defer c.adminMu.Unlock()

	if c.adminToken != "" && time.Until(c.adminExpiry) > 10*time.Second {
		return c.adminToken, nil
	}

	if c.cfg.AdminUsername == "" || c.cfg.AdminPassword == "" {
		return "", errors.New("keycloak admin credentials are not configured")
	}

	jwt, err := c.client.LoginAdmin(ctx, c.cfg.AdminUsername, c.cfg.AdminPassword, c.cfg.AdminRealm)
	if err != nil {
		return "", fmt.Errorf("failed to obtain admin token: %w", err)
	}
	c.adminToken = jwt.AccessToken
	c.adminExpiry = time.Now().Add(time.Duration(jwt.ExpiresIn) * time.Second)
	return c.adminToken, nil
}

// CreateUser creates a directory user in the target realm. When the username
// is already taken, the existing user's ID is resolved and ErrUserExists
// returned. A non-empty password is set as permanent.
func (c *Connector) CreateUser(ctx context.Context, record UserRecord, password string) (string, error) {
	token, err := c.adminAccessToken(ctx)
	if err != nil {
		return "", err
	}

	user := gocloak.User{
		Username:      gocloak.StringP(record.Username),
		Enabled:       gocloak.BoolP(record.Enabled),
		EmailVerified: gocloak.BoolP(record.EmailVerified),
	}
	if record.Email != "" {
		user.Email = gocloak.StringP(record.Email)
	}
	if record.FirstName != "" {
		user.FirstName = gocloak.StringP(record.FirstName)
	}
	if record.LastName != "" {
		user.LastName = gocloak.StringP(record.LastName)
	}

	userID, err := c.client.CreateUser(ctx, token, c.cfg.Realm, user)
	if err != nil {
		if isConflict(err) {
			c.log.Warnw("User already exists", "username", record.Username)
			existing, lookupErr := c.findUserID(ctx, token, record.Username)
			if lookupErr != nil {
				return "", fmt.Errorf("user exists but lookup failed: %w", lookupErr)
			}
			return existing, ErrUserExists
		}
		return "", fmt.Errorf("failed to create user in realm %s: %w", c.cfg.Realm, err)
	}

	if password != "" {
		if err := c.client.SetPassword(ctx, token, userID, c.cfg.Realm, password, false); err != nil {
			return userID, fmt.Errorf("user created but setting password failed: %w", err)
		}
	}

	c.log.Infow("Created user", "username", record.Username, "id", userID)
	return userID, nil
}

// ListUsers returns up to max realm users, optionally filtered by search term.
func (c *Connector) ListUsers(ctx context.Context, search string, max int) ([]UserRecord, error) {
	token, err := c.adminAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	params := gocloak.GetUsersParams{}
	if search != "" {
		params.Search = gocloak.StringP(search)
	}
	if max > 0 {
		params.Max = gocloak.IntP(max)
	}

	users, err := c.client.GetUsers(ctx, token, c.cfg.Realm, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	records := make([]UserRecord, 0, len(users))
	for _, u := range users {
		records = append(records, recordFromUser(u))
	}
	return records, nil
}

func (c *Connector) findUserID(ctx context.Context, token, username string) (string, error) {
	users, err := c.client.GetUsers(ctx, token, c.cfg.Realm, gocloak.GetUsersParams{
		Username: gocloak.StringP(username),
		Exact:    gocloak.BoolP(true),
	})
	if err != nil {
		return "", err
	}
	for _, u := range users {
		if u.ID != nil && u.Username != nil && strings.EqualFold(*u.Username, username) {
			return *u.ID, nil
		}
	}
	return "", fmt.Errorf("user %s not found", username)
}

func recordFromUser(u *gocloak.User) UserRecord {
	record := UserRecord{}
	if u == nil {
		return record
	}
	if u.ID != nil {
		record.ID = *u.ID
	}
	if u.Username != nil {
		record.Username = *u.Username
	}
	if u.Email != nil {
		record.Email = *u.Email
	}
	if u.FirstName != nil {
		record.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		record.LastName = *u.LastName
	}
	if u.Enabled != nil {
		record.Enabled = *u.Enabled
	}
	if u.EmailVerified != nil {
		record.EmailVerified = *u.EmailVerified
	}
	if u.CreatedTimestamp != nil {
		record.CreatedAt = time.UnixMilli(*u.CreatedTimestamp)
	}
	return record
}

// FullName joins first and last name, either of which may be empty.
func (r UserRecord) FullName() string {
	name := r.FirstName
	if r.LastName != "" {
		if name != "" {
			name += " "
		}
		name += r.LastName
	}
	return name
}

func isConflict(err error) bool {
	var apiErr *gocloak.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusConflict
	}
	return false
}

func parseTimeout(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}
