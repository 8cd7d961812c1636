package cli

import (
	"flag"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Config carries the command-line flags of the waitlistd server.
type Config struct {
	Debug bool

	// Server flags
	ListenAddress string
	MetricsAddr   string

	// Configuration flags
	ConfigPath  string
	DisableMail bool
}

// Parse reads command-line flags with environment variable fallbacks.
// The pattern: flag.XxxVar(&variable, "flag-name", defaultValueOrEnvValue, "help text")
func Parse() *Config {
	config := &Config{}

	flag.BoolVar(&config.Debug, "debug", getEnvBool("WAITLIST_DEBUG", false), "Enable debug level logging")
	flag.StringVar(&config.ListenAddress, "listen-address", getEnvString("WAITLIST_LISTEN_ADDRESS", ""),
		"The address the API server binds to (host:port). Overrides server.listenAddress from the config file")
	flag.StringVar(&config.MetricsAddr, "metrics-bind-address", getEnvString("WAITLIST_METRICS_BIND_ADDRESS", ":8081"),
		"The address the metrics endpoint binds to, or empty to disable the metrics service")
	flag.StringVar(&config.ConfigPath, "config-path", getEnvString("WAITLIST_CONFIG_PATH", "./config.yaml"),
		"Path to the waitlist configuration file")
	flag.BoolVar(&config.DisableMail, "disable-mail", getEnvBool("WAITLIST_DISABLE_MAIL", false),
		"Disable confirmation mails for waitlist signups")

	flag.Parse()

	return config
}

func (c *Config) Print(log *zap.SugaredLogger) {
	log.Infow("CLI Configuration",
		"debug", c.Debug,
		"listen_address", c.ListenAddress,
		"metrics_bind_address", c.MetricsAddr,
		"config_path", c.ConfigPath,
		"disable_mail", c.DisableMail,
	)
}

// getEnvString returns the value of an environment variable, or the provided default if not set.
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvBool returns the value of an environment variable as a bool, or the provided default if not set.
// Valid true values are "true", "1", "yes" (case-insensitive).
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}
