package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Harvest     HarvestConfig     `toml:"harvest"`
	Database    DatabaseConfig    `toml:"database"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Genius GeniusConfig `toml:"genius"`
}

// GeniusConfig contains Genius API credentials and transport settings.
type GeniusConfig struct {
	AccessToken       string  `toml:"access_token"`
	BaseURL           string  `toml:"base_url"`
	Retries           int     `toml:"retries"`
	TimeoutSeconds    float64 `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	ClientID          string  `toml:"client_id"`
	ClientSecret      string  `toml:"client_secret"`
	RedirectURL       string  `toml:"redirect_url"`
}

// HarvestConfig contains the batch job settings.
type HarvestConfig struct {
	InputPath            string   `toml:"input_path"`
	NameColumn           string   `toml:"name_column"`
	OutputPath           string   `toml:"output_path"`
	BatchSize            int      `toml:"batch_size"`
	MaxSongs             int      `toml:"max_songs"`
	Sort                 string   `toml:"sort"`
	PauseSeconds         float64  `toml:"pause_seconds"`
	CooldownSeconds      float64  `toml:"cooldown_seconds"`
	FullInfo             bool     `toml:"full_info"`
	SkipNonSongs         bool     `toml:"skip_non_songs"`
	RemoveSectionHeaders bool     `toml:"remove_section_headers"`
	ExcludedTerms        []string `toml:"excluded_terms"`
}

// DatabaseConfig contains database connection settings for the attempt ledger.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// Pause returns the inter-artist pause as a [time.Duration].
func (h HarvestConfig) Pause() time.Duration {
	return Seconds(h.PauseSeconds)
}

// Cooldown returns the transient-failure cooldown as a [time.Duration].
func (h HarvestConfig) Cooldown() time.Duration {
	return Seconds(h.CooldownSeconds)
}

// Timeout returns the HTTP client timeout as a [time.Duration].
func (g GeniusConfig) Timeout() time.Duration {
	return Seconds(g.TimeoutSeconds)
}

// Seconds converts fractional seconds into a [time.Duration].
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of the embedded example config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the numeric settings the harvest job depends on.
func (c *Config) Validate() error {
	switch {
	case c.Harvest.BatchSize <= 0:
		return fmt.Errorf("%w: harvest.batch_size must be positive", ErrInvalidConfig)
	case c.Harvest.MaxSongs <= 0:
		return fmt.Errorf("%w: harvest.max_songs must be positive", ErrInvalidConfig)
	case c.Harvest.PauseSeconds < 0:
		return fmt.Errorf("%w: harvest.pause_seconds cannot be negative", ErrInvalidConfig)
	case c.Harvest.CooldownSeconds < 0:
		return fmt.Errorf("%w: harvest.cooldown_seconds cannot be negative", ErrInvalidConfig)
	case c.Harvest.OutputPath == "":
		return fmt.Errorf("%w: harvest.output_path is required", ErrInvalidConfig)
	case c.Credentials.Genius.Retries < 0:
		return fmt.Errorf("%w: credentials.genius.retries cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ResolveConfig loads path when it exists and falls back to [DefaultConfig] otherwise.
func ResolveConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	return LoadConfig(path)
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := WriteFileAtomic(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
