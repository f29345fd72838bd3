// Package config loads process-wide settings from a YAML file. Settings are
// passed into constructors explicitly, there is no global instance.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	yaml "gopkg.in/yaml.v2"

	"github.com/rob-Hitchens/trading-bots/log"
)

// Defaults applied when the file omits a field
const (
	DefaultTag            = "TradingBots"
	DefaultTimeoutSeconds = 120
	DefaultStorageName    = "json"
	DefaultStorageFile    = "store.json"
)

// EnvPrefix namespaces the environment variable overrides,
// e.g. TRADING_BOTS_DRY_RUN=false
const EnvPrefix = "TRADING_BOTS"

// Config errors
var (
	ErrNoBotConfig    = errors.New("no configuration block for bot")
	ErrNoCredentials  = errors.New("no credentials configured for exchange")
	errInvalidTimeout = errors.New("timeout must be positive")
)

// Storage selects and parameterises the persistence backend
type Storage struct {
	// Name selects the backend, one of json, sqlite3 or postgres
	Name string `mapstructure:"name"`
	// Filename backs the json and sqlite3 stores
	Filename string `mapstructure:"filename"`
	// URL is the postgres connection string
	URL string `mapstructure:"url"`
}

// Settings holds the full process configuration
type Settings struct {
	Tag            string                       `mapstructure:"tag"`
	DryRun         bool                         `mapstructure:"dry_run"`
	TimeoutSeconds int                          `mapstructure:"timeout"`
	Storage        Storage                      `mapstructure:"storage"`
	Credentials    map[string]map[string]string `mapstructure:"credentials"`
	Bots           map[string]map[string]any    `mapstructure:"bots"`
}

// Load reads and validates the settings file at path
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("tag", DefaultTag)
	v.SetDefault("dry_run", true)
	v.SetDefault("timeout", DefaultTimeoutSeconds)
	v.SetDefault("storage.name", DefaultStorageName)
	v.SetDefault("storage.filename", DefaultStorageFile)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshalling settings: %w", err)
	}
	if s.TimeoutSeconds <= 0 {
		return nil, fmt.Errorf("%w, received %d", errInvalidTimeout, s.TimeoutSeconds)
	}
	log.Debugf(log.ConfigSys, "Loaded settings from %s", v.ConfigFileUsed())
	if s.DryRun {
		log.Warnf(log.ConfigSys, "Dry run enabled, orders and withdrawals stay local")
	}
	return &s, nil
}

// Timeout returns the per-request client timeout
func (s *Settings) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// ExchangeCredentials returns the credential set of an exchange, matched case
// insensitively
func (s *Settings) ExchangeCredentials(exchange string) (map[string]string, error) {
	for name, creds := range s.Credentials {
		if strings.EqualFold(name, exchange) {
			return creds, nil
		}
	}
	return nil, fmt.Errorf("%w %q", ErrNoCredentials, exchange)
}

// BotConfig unmarshals the configuration block of a bot into out. The block
// round-trips through YAML so bots declare plain yaml-tagged structs.
func (s *Settings) BotConfig(label string, out any) error {
	var block map[string]any
	for name, b := range s.Bots {
		if strings.EqualFold(name, label) {
			block = b
			break
		}
	}
	if block == nil {
		return fmt.Errorf("%w %q", ErrNoBotConfig, label)
	}
	raw, err := yaml.Marshal(block)
	if err != nil {
		return fmt.Errorf("re-encoding %q config: %w", label, err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %q config: %w", label, err)
	}
	return nil
}
