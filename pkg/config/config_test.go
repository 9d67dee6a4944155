package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "v9", cfg.Discord.APIVersion)
	assert.Equal(t, []string{"discord.com", "discordapp.net"}, cfg.Discord.SafeDomains)
	assert.Equal(t, 5, cfg.RateLimit.MaxRateLimitRetries)
	assert.Equal(t, 5, cfg.RateLimit.MaxRedirects)
	assert.Equal(t, time.Second, cfg.RateLimit.RetryAfterPadding)
	assert.Equal(t, 1, cfg.Retry.DayAttempts)
	assert.Equal(t, PolicyBestEffort, cfg.Errors.Policy)
	assert.False(t, cfg.FailFast())
	assert.True(t, cfg.Output.SanitizeFileNames)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CHANARCHIVE_TOKEN", "secret-token")
	t.Setenv("CHANARCHIVE_OUTPUT_DIR", "/tmp/archive")
	t.Setenv("CHANARCHIVE_CHUNK_SIZE", "4096")
	t.Setenv("CHANARCHIVE_CONCURRENT_DOWNLOADS", "6")
	t.Setenv("CHANARCHIVE_ERROR_POLICY", "fail_fast")
	t.Setenv("CHANARCHIVE_PROXY", "socks5://127.0.0.1:9050")
	t.Setenv("CHANARCHIVE_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "secret-token", cfg.Discord.Token)
	assert.Equal(t, "/tmp/archive", cfg.Output.BaseDirectory)
	assert.Equal(t, int64(4096), cfg.Download.ChunkSize)
	assert.Equal(t, 6, cfg.Download.ConcurrentDownloads)
	assert.True(t, cfg.FailFast())
	assert.Equal(t, "socks5://127.0.0.1:9050", cfg.Network.Proxy)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvInvalidNumber(t *testing.T) {
	t.Setenv("CHANARCHIVE_CHUNK_SIZE", "lots")

	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromEnv())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
discord:
  api_version: v10
  timezone: UTC
targets:
  "111":
    - "222"
    - "333"
query:
  images: true
  nsfw: true
download:
  chunk_size: 2048
  concurrent_downloads: 2
  concurrent_channels: 2
errors:
  policy: fail_fast
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "v10", cfg.Discord.APIVersion)
	assert.Equal(t, []string{"222", "333"}, cfg.Targets["111"])
	assert.True(t, cfg.Query.NSFW)
	assert.Equal(t, int64(2048), cfg.Download.ChunkSize)
	assert.Equal(t, 2, cfg.Download.ConcurrentChannels)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.True(t, cfg.FailFast())
	// untouched sections keep defaults
	assert.Equal(t, "https://discord.com", cfg.Discord.APIBase)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty api base", func(c *Config) { c.Discord.APIBase = "" }},
		{"relative api base", func(c *Config) { c.Discord.APIBase = "discord.com" }},
		{"no safe domains", func(c *Config) { c.Discord.SafeDomains = nil }},
		{"bad proxy scheme", func(c *Config) { c.Network.Proxy = "ftp://proxy:21" }},
		{"zero day attempts", func(c *Config) { c.Retry.DayAttempts = 0 }},
		{"negative redirects", func(c *Config) { c.RateLimit.MaxRedirects = -1 }},
		{"too many downloads", func(c *Config) { c.Download.ConcurrentDownloads = 64 }},
		{"unknown policy", func(c *Config) { c.Errors.Policy = "yolo" }},
		{"unknown timezone", func(c *Config) { c.Discord.Timezone = "Mars/Olympus" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.BaseDirectory = ""
	cfg.Errors.Policy = "nope"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output directory is required")
	assert.Contains(t, err.Error(), "invalid error policy")
}

func TestLoadPrecedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(home, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  base_directory: /from/file\nlogging:\n  level: warn\n"), 0644))
	t.Setenv("CHANARCHIVE_OUTPUT_DIR", "/from/env")

	cfg, err := Load(path, map[string]interface{}{
		"log-level":  "error",
		"concurrent": 4,
		"targets":    map[string][]string{"1": {"2"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.Output.BaseDirectory)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, 4, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, []string{"2"}, cfg.Targets["1"])
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Discord.Token = "never-written"
	cfg.Targets = map[string][]string{"10": {"20"}}
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "never-written")

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, cfg.Targets, loaded.Targets)
}

func TestParseTarget(t *testing.T) {
	g, c, err := ParseTarget("123/456")
	require.NoError(t, err)
	assert.Equal(t, "123", g)
	assert.Equal(t, "456", c)

	for _, bad := range []string{"123", "123/", "/456", "abc/456", "1/2/3"} {
		_, _, err := ParseTarget(bad)
		assert.Error(t, err, bad)
	}
}
