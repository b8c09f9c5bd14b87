// internal/config/validate.go
package config

import (
	"fmt"
	"os"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

// Validate checks the configuration for errors.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	var errs []string

	// Server validation
	if c.Server.Port != 0 && (c.Server.Port < 1 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server.port: must be between 1 and 65535, got %d", c.Server.Port))
	}
	if !validLogLevels[c.Server.LogLevel] {
		errs = append(errs, fmt.Sprintf("server.log_level: must be one of debug, info, warn, error; got %q", c.Server.LogLevel))
	}

	// Downloads validation
	if c.Downloads.PollInterval < 0 {
		errs = append(errs, fmt.Sprintf("downloads.poll_interval: must not be negative, got %s", c.Downloads.PollInterval.Std()))
	}
	if c.Downloads.TrackedTTL < 0 {
		errs = append(errs, fmt.Sprintf("downloads.tracked_ttl: must not be negative, got %s", c.Downloads.TrackedTTL.Std()))
	}

	// Delay profile validation
	seen := map[int]bool{}
	for i, p := range c.DelayProfiles {
		if p.UsenetDelay < 0 || p.TorrentDelay < 0 {
			errs = append(errs, fmt.Sprintf("delay_profiles[%d]: delays must not be negative", i))
		}
		if seen[p.Order] {
			errs = append(errs, fmt.Sprintf("delay_profiles[%d]: duplicate order %d", i, p.Order))
		}
		seen[p.Order] = true
	}

	// Downloaded episodes folder warning (non-fatal by convention, still reported)
	if c.Downloads.DownloadedEpisodesFolder != "" {
		if _, err := os.Stat(c.Downloads.DownloadedEpisodesFolder); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("downloads.downloaded_episodes_folder: warning: directory %q does not exist", c.Downloads.DownloadedEpisodesFolder))
		}
	}

	return errs
}
