// Package config handles TOML configuration loading with environment
// variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Server        ServerConfig         `toml:"server"`
	Database      DatabaseConfig       `toml:"database"`
	Downloads     DownloadsConfig      `toml:"downloads"`
	Quality       QualityConfig        `toml:"quality"`
	DelayProfiles []DelayProfileConfig `toml:"delay_profiles"`
}

type ServerConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	LogLevel string `toml:"log_level"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// DownloadsConfig controls the reconciliation loop and the tracked store.
type DownloadsConfig struct {
	PollInterval      Duration `toml:"poll_interval"`
	CompletedHandling bool     `toml:"completed_handling"`
	FailedHandling    bool     `toml:"failed_handling"`
	HideUnhandled     bool     `toml:"hide_unhandled"`
	// RemoveCompleted removes fully imported items from their download
	// client. Read-only items (seeding torrents) are always left alone.
	RemoveCompleted bool     `toml:"remove_completed"`
	TrackedTTL      Duration `toml:"tracked_ttl"`
	// DownloadedEpisodesFolder is the intermediate folder watched by the
	// path-scan import; completed items already inside it are skipped.
	DownloadedEpisodesFolder string `toml:"downloaded_episodes_folder"`
}

type QualityConfig struct {
	// Profile is the ordered accept list, most wanted quality first.
	Profile []string `toml:"profile"`
}

// DelayProfileConfig defers grabbing pending releases, per protocol.
type DelayProfileConfig struct {
	Order        int      `toml:"order"`
	Tags         []int64  `toml:"tags"`
	UsenetDelay  Duration `toml:"usenet_delay"`
	TorrentDelay Duration `toml:"torrent_delay"`
}

// Duration decodes TOML strings like "30m" or "1h30m".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load reads, substitutes and validates the configuration file.
// Missing environment variables and validation failures are aggregated
// into a single *ConfigError.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	content, missing := substituteEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	cfgErr := &ConfigError{Path: path, Missing: missing, Errors: cfg.Validate()}
	if cfgErr.HasErrors() {
		return nil, cfgErr
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8989
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/trackarr.db"
	}
	if c.Downloads.PollInterval == 0 {
		c.Downloads.PollInterval = Duration(time.Minute)
	}
	if c.Downloads.TrackedTTL == 0 {
		c.Downloads.TrackedTTL = Duration(5 * time.Minute)
	}
	if len(c.Quality.Profile) == 0 {
		c.Quality.Profile = []string{"1080p bluray", "1080p webdl", "720p hdtv"}
	}
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
// and reports the names it could not resolve.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func substituteEnvVars(content string) (string, []string) {
	var missing []string
	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1] // Strip ${ and }
		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		missing = append(missing, varName)
		return match // Leave unchanged if not found
	})
	return result, missing
}
