// Package config loads and saves ~/.config/jellyrename/config.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/Nomadcxx/jellyrename/internal/catalog"
	"github.com/Nomadcxx/jellyrename/internal/logging"
	"github.com/Nomadcxx/jellyrename/internal/naming"
	"github.com/Nomadcxx/jellyrename/internal/paths"
	"github.com/Nomadcxx/jellyrename/internal/planner"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid config")

// Environment variables that override file values.
const (
	EnvAPIKey      = "TMDB_API_KEY"
	EnvAccessToken = "TMDB_ACCESS_TOKEN"
)

type Config struct {
	Catalog CatalogConfig  `mapstructure:"catalog" toml:"catalog"`
	Naming  NamingConfig   `mapstructure:"naming" toml:"naming"`
	History HistoryConfig  `mapstructure:"history" toml:"history"`
	Server  ServerConfig   `mapstructure:"server" toml:"server"`
	Watch   WatchConfig    `mapstructure:"watch" toml:"watch"`
	Logging logging.Config `mapstructure:"logging" toml:"logging"`
}

// CatalogConfig configures the show/episode catalog.
type CatalogConfig struct {
	URL            string `mapstructure:"url" toml:"url"`
	APIKey         string `mapstructure:"api_key" toml:"api_key" comment:"TMDB v3 API key, overridden by TMDB_API_KEY"`
	AccessToken    string `mapstructure:"access_token" toml:"access_token" comment:"TMDB v4 read access token, used instead of api_key when set"`
	Language       string `mapstructure:"language" toml:"language"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" toml:"timeout_seconds"`
	// Static points at a JSON catalog that replaces TMDB, for offline use.
	Static string `mapstructure:"static" toml:"static,omitempty"`
}

// NamingConfig holds the defaults for every batch.
type NamingConfig struct {
	Mode         string `mapstructure:"mode" toml:"mode" comment:"episode or serial"`
	Template     string `mapstructure:"template" toml:"template" comment:"fields: {show} {season} {episode} {title} {ext} {year} {name}"`
	ShowTemplate string `mapstructure:"show_template" toml:"show_template" comment:"used when the show resolved but the episode did not; empty leaves such files alone"`
	Policy       string `mapstructure:"policy" toml:"policy" comment:"strict or overwrite"`
	SerialPrefix string `mapstructure:"serial_prefix" toml:"serial_prefix"`
	SerialBase   int    `mapstructure:"serial_base" toml:"serial_base"`
	SerialWidth  int    `mapstructure:"serial_width" toml:"serial_width"`
	TitleCase    bool   `mapstructure:"title_case" toml:"title_case"`
}

// HistoryConfig controls the batch history database used by undo across runs.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
	Path    string `mapstructure:"path" toml:"path" comment:"empty means ~/.config/jellyrename/history.db"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr" toml:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins"`
	Token          string   `mapstructure:"token" toml:"token" comment:"bearer token required by the API, empty disables auth"`
}

// WatchConfig contains directories to watch
type WatchConfig struct {
	Dirs          []string `mapstructure:"dirs" toml:"dirs"`
	SettleSeconds int      `mapstructure:"settle_seconds" toml:"settle_seconds"`
	Recursive     bool     `mapstructure:"recursive" toml:"recursive"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			URL:            catalog.DefaultTMDBURL,
			Language:       "en-US",
			TimeoutSeconds: 10,
		},
		Naming: NamingConfig{
			Mode:        planner.ModeEpisode.String(),
			Template:    naming.DefaultTemplate,
			Policy:      planner.PolicyStrict.String(),
			SerialBase:  planner.DefaultSerialBase,
			SerialWidth: planner.DefaultSerialWidth,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8687",
			AllowedOrigins: []string{},
		},
		Watch: WatchConfig{
			Dirs:          []string{},
			SettleSeconds: 5,
			Recursive:     true,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads the config from the default location or returns defaults
func Load() (*Config, error) {
	configPath, err := paths.ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("unable to get config path: %w", err)
	}
	return LoadFrom(configPath)
}

// LoadFrom reads path if it exists, applies environment overrides and
// validates the result.
func LoadFrom(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
	}

	if err := v.BindEnv("catalog.api_key", EnvAPIKey); err != nil {
		return nil, err
	}
	if err := v.BindEnv("catalog.access_token", EnvAccessToken); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values the engine would otherwise reject mid-batch.
func (c *Config) Validate() error {
	if _, err := planner.ParseMode(c.Naming.Mode); err != nil {
		return fmt.Errorf("%w: naming.mode: %v", ErrInvalid, err)
	}
	if _, err := planner.ParsePolicy(c.Naming.Policy); err != nil {
		return fmt.Errorf("%w: naming.policy: %v", ErrInvalid, err)
	}
	if c.Naming.SerialWidth < 1 || c.Naming.SerialWidth > 9 {
		return fmt.Errorf("%w: naming.serial_width must be between 1 and 9, got %d", ErrInvalid, c.Naming.SerialWidth)
	}
	if c.Naming.SerialBase < 0 {
		return fmt.Errorf("%w: naming.serial_base must not be negative", ErrInvalid)
	}
	if _, err := naming.ParseTemplate(c.Naming.Template); err != nil {
		return fmt.Errorf("%w: naming.template: %v", ErrInvalid, err)
	}
	if strings.TrimSpace(c.Naming.ShowTemplate) != "" {
		if _, err := naming.ParseTemplate(c.Naming.ShowTemplate); err != nil {
			return fmt.Errorf("%w: naming.show_template: %v", ErrInvalid, err)
		}
	}
	if c.Catalog.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: catalog.timeout_seconds must not be negative", ErrInvalid)
	}
	if c.Watch.SettleSeconds < 0 {
		return fmt.Errorf("%w: watch.settle_seconds must not be negative", ErrInvalid)
	}
	return nil
}

// PlannerOptions builds planner options from the naming section. FS and
// Logger are left for the caller.
func (c *Config) PlannerOptions() (planner.Options, error) {
	opts := planner.DefaultOptions()

	mode, err := planner.ParseMode(c.Naming.Mode)
	if err != nil {
		return opts, err
	}
	policy, err := planner.ParsePolicy(c.Naming.Policy)
	if err != nil {
		return opts, err
	}
	tmpl, err := naming.ParseTemplate(c.Naming.Template)
	if err != nil {
		return opts, err
	}

	opts.Mode = mode
	opts.Policy = policy
	opts.Template = tmpl
	opts.SerialPrefix = c.Naming.SerialPrefix
	opts.SerialBase = c.Naming.SerialBase
	opts.SerialWidth = c.Naming.SerialWidth
	opts.TitleCase = c.Naming.TitleCase

	if strings.TrimSpace(c.Naming.ShowTemplate) != "" {
		opts.ShowTemplate, err = naming.ParseTemplate(c.Naming.ShowTemplate)
		if err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// TMDBConfig returns the catalog client settings.
func (c *Config) TMDBConfig() catalog.TMDBConfig {
	return catalog.TMDBConfig{
		URL:         c.Catalog.URL,
		APIKey:      c.Catalog.APIKey,
		AccessToken: c.Catalog.AccessToken,
		Language:    c.Catalog.Language,
		Timeout:     time.Duration(c.Catalog.TimeoutSeconds) * time.Second,
	}
}

// HasCredentials reports whether TMDB can be queried.
func (c *Config) HasCredentials() bool {
	return c.Catalog.APIKey != "" || c.Catalog.AccessToken != ""
}

// HistoryPath returns the configured history database, or the default one.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return expandHome(c.History.Path)
	}
	return paths.DatabasePath()
}

func expandHome(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := paths.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("unable to get home dir: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}

// Save saves configuration to the default location
func (c *Config) Save() error {
	configFile, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(configFile)
}

// SaveTo writes the config as TOML, creating the parent directory.
func (c *Config) SaveTo(configFile string) error {
	content, err := c.ToTOML()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(configFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("unable to create config dir: %w", err)
	}

	// The file can hold API credentials.
	return os.WriteFile(configFile, content, 0600)
}

func ConfigPath() (string, error) {
	return paths.ConfigPath()
}

// ToTOML renders the config with a short header.
func (c *Config) ToTOML() ([]byte, error) {
	body, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("unable to encode config: %w", err)
	}
	header := "# jellyrename configuration\n# Generated by: jellyrename config init\n\n"
	return append([]byte(header), body...), nil
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.Catalog.APIKey = MaskSecret(c.Catalog.APIKey)
	out.Catalog.AccessToken = MaskSecret(c.Catalog.AccessToken)
	out.Server.Token = MaskSecret(c.Server.Token)
	out.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	out.Watch.Dirs = append([]string(nil), c.Watch.Dirs...)
	return &out
}
