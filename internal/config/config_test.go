package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(""), 0644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8989, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "./data/trackarr.db", cfg.Database.Path)
	assert.Equal(t, time.Minute, cfg.Downloads.PollInterval.Std())
	assert.Equal(t, 5*time.Minute, cfg.Downloads.TrackedTTL.Std())
	assert.NotEmpty(t, cfg.Quality.Profile)
}

func TestLoad_DelayProfiles(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.toml")
	content := `
[[delay_profiles]]
order = 1
tags = [3, 7]
usenet_delay = "30m"
torrent_delay = "1h"

[[delay_profiles]]
order = 2
usenet_delay = "0s"
torrent_delay = "0s"
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	require.Len(t, cfg.DelayProfiles, 2)
	assert.Equal(t, []int64{3, 7}, cfg.DelayProfiles[0].Tags)
	assert.Equal(t, 30*time.Minute, cfg.DelayProfiles[0].UsenetDelay.Std())
	assert.Equal(t, time.Hour, cfg.DelayProfiles[0].TorrentDelay.Std())
	assert.Empty(t, cfg.DelayProfiles[1].Tags)
}

func TestLoad_QualityProfile(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.toml")
	content := `
[quality]
profile = ["2160p bluray", "1080p webdl"]
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"2160p bluray", "1080p webdl"}, cfg.Quality.Profile)
}
