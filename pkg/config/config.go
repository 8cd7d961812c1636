package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Server holds the HTTP listener configuration.
type Server struct {
	ListenAddress  string   `yaml:"listenAddress"`
	TLSCertFile    string   `yaml:"tlsCertFile"`
	TLSKeyFile     string   `yaml:"tlsKeyFile"`
	TrustedProxies []string `yaml:"trustedProxies"`
}

// Frontend describes the single-page application served by the portal and the
// identity settings it needs to bootstrap its own OIDC client.
type Frontend struct {
	BaseURL      string `yaml:"baseURL"`
	BrandingName string `yaml:"brandingName"`
	// SPADir is the directory holding the built frontend assets.
	SPADir string `yaml:"spaDir"`
}

// Keycloak is the identity-provider connection. AdminRealm/AdminUsername/
// AdminPassword drive the user-management API; ClientID (+ClientSecret for
// confidential clients) drives the portal's own service login.
type Keycloak struct {
	BaseURL              string `yaml:"baseURL"`
	Realm                string `yaml:"realm"`
	ClientID             string `yaml:"clientID"`
	ClientSecret         string `yaml:"clientSecret"`
	AdminRealm           string `yaml:"adminRealm"`
	AdminUsername        string `yaml:"adminUsername"`
	AdminPassword        string `yaml:"adminPassword"`
	RequestTimeout       string `yaml:"requestTimeout"`
	InsecureSkipVerify   bool   `yaml:"insecureSkipVerify"`
	CertificateAuthority string `yaml:"certificateAuthority"`
}

// Authority returns the OIDC issuer URL for the configured realm.
func (k Keycloak) Authority() string {
	return fmt.Sprintf("%s/realms/%s", strings.TrimRight(k.BaseURL, "/"), k.Realm)
}

// TokenStore selects where the session credential pair is persisted.
type TokenStore struct {
	// Backend is "file" or "keyring".
	Backend string `yaml:"backend"`
	// Path is the cache file location for the file backend.
	Path string `yaml:"path"`
}

// Refresh controls the periodic token renewal loop.
type Refresh struct {
	Interval    string `yaml:"interval"`
	MinValidity string `yaml:"minValidity"`
}

type Mail struct {
	Enabled            bool   `yaml:"enabled"`
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	SenderAddress      string `yaml:"senderAddress"`
	SenderName         string `yaml:"senderName"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
	RetryCount         int    `yaml:"retryCount"`
	RetryBackoffMs     int    `yaml:"retryBackoffMs"`
}

type KafkaAudit struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic"`
	TLS          bool     `yaml:"tls"`
	SASLUser     string   `yaml:"saslUser"`
	SASLPassword string   `yaml:"saslPassword"`
	Async        bool     `yaml:"async"`
}

type Audit struct {
	Kafka KafkaAudit `yaml:"kafka"`
}

type Telemetry struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SamplingRate float64 `yaml:"samplingRate"`
}

type Config struct {
	Server     Server     `yaml:"server"`
	Frontend   Frontend   `yaml:"frontend"`
	Keycloak   Keycloak   `yaml:"keycloak"`
	TokenStore TokenStore `yaml:"tokenStore"`
	Refresh    Refresh    `yaml:"refresh"`
	Mail       Mail       `yaml:"mail"`
	Audit      Audit      `yaml:"audit"`
	Telemetry  Telemetry  `yaml:"telemetry"`
}

// Load reads the portal configuration from a YAML file. If configPath is
// empty it defaults to "./config.yaml". Secrets may be left out of the file
// and provided via environment variables instead (see applyEnvOverrides).
func Load(configPath ...string) (Config, error) {
	path := "./config.yaml"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	var config Config

	content, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("trying to open waitlist config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(content, &config); err != nil {
		return config, fmt.Errorf("error unmarshaling YAML %s: %w", path, err)
	}
	config.applyEnvOverrides()
	return config, nil
}

// applyEnvOverrides lets deployments keep secrets out of the config file.
func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"KEYCLOAK_BASE_URL", &c.Keycloak.BaseURL},
		{"KEYCLOAK_REALM", &c.Keycloak.Realm},
		{"KEYCLOAK_CLIENT_ID", &c.Keycloak.ClientID},
		{"KEYCLOAK_CLIENT_SECRET", &c.Keycloak.ClientSecret},
		{"KEYCLOAK_ADMIN_REALM", &c.Keycloak.AdminRealm},
		{"KEYCLOAK_ADMIN_USERNAME", &c.Keycloak.AdminUsername},
		{"KEYCLOAK_ADMIN_PASSWORD", &c.Keycloak.AdminPassword},
		{"WAITLIST_MAIL_PASSWORD", &c.Mail.Password},
		{"WAITLIST_AUDIT_SASL_PASSWORD", &c.Audit.Kafka.SASLPassword},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.env); ok && v != "" {
			*o.target = v
		}
	}
}

// Defaults fills unset fields with working values.
func (c *Config) Defaults() {
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = ":8080"
	}
	if c.Frontend.SPADir == "" {
		c.Frontend.SPADir = "./frontend/dist/"
	}
	if c.Frontend.BrandingName == "" {
		c.Frontend.BrandingName = "Waitlist"
	}
	if c.Keycloak.BaseURL == "" {
		c.Keycloak.BaseURL = "http://localhost:8080"
	}
	if c.Keycloak.Realm == "" {
		c.Keycloak.Realm = "master"
	}
	if c.Keycloak.AdminRealm == "" {
		c.Keycloak.AdminRealm = "master"
	}
	if c.Keycloak.ClientID == "" {
		c.Keycloak.ClientID = "admin-cli"
	}
	if c.Keycloak.RequestTimeout == "" {
		c.Keycloak.RequestTimeout = "10s"
	}
	if c.TokenStore.Backend == "" {
		c.TokenStore.Backend = "file"
	}
	if c.Refresh.Interval == "" {
		c.Refresh.Interval = "60s"
	}
	if c.Refresh.MinValidity == "" {
		c.Refresh.MinValidity = "70s"
	}
	if c.Audit.Kafka.Topic == "" {
		c.Audit.Kafka.Topic = "waitlist-audit"
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = "otlp"
	}
	if c.Telemetry.SamplingRate == 0 {
		c.Telemetry.SamplingRate = 1.0
	}
}

// Validate reports configuration that cannot work at runtime.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Keycloak.BaseURL) == "" {
		return fmt.Errorf("keycloak.baseURL is required")
	}
	if strings.TrimSpace(c.Keycloak.Realm) == "" {
		return fmt.Errorf("keycloak.realm is required")
	}
	if strings.TrimSpace(c.Keycloak.ClientID) == "" {
		return fmt.Errorf("keycloak.clientID is required")
	}
	if c.TokenStore.Backend != "file" && c.TokenStore.Backend != "keyring" {
		return fmt.Errorf("tokenStore.backend must be \"file\" or \"keyring\", got %q", c.TokenStore.Backend)
	}
	if _, err := time.ParseDuration(c.Refresh.Interval); err != nil {
		return fmt.Errorf("refresh.interval: %w", err)
	}
	if _, err := time.ParseDuration(c.Refresh.MinValidity); err != nil {
		return fmt.Errorf("refresh.minValidity: %w", err)
	}
	if c.Mail.Enabled && c.Mail.Host == "" {
		return fmt.Errorf("mail.host is required when mail is enabled")
	}
	if c.Audit.Kafka.Enabled && len(c.Audit.Kafka.Brokers) == 0 {
		return fmt.Errorf("audit.kafka.brokers is required when the kafka audit sink is enabled")
	}
	return nil
}

// RefreshInterval returns the parsed refresh interval, falling back to 60s.
func (c *Config) RefreshInterval() time.Duration {
	return parseDurationOr(c.Refresh.Interval, 60*time.Second)
}

// RefreshMinValidity returns the parsed minimum validity, falling back to 70s.
func (c *Config) RefreshMinValidity() time.Duration {
	return parseDurationOr(c.Refresh.MinValidity, 70*time.Second)
}

// KeycloakRequestTimeout returns the parsed request timeout, falling back to 10s.
func (c *Config) KeycloakRequestTimeout() time.Duration {
	return parseDurationOr(c.Keycloak.RequestTimeout, 10*time.Second)
}

func parseDurationOr(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}
