package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Error policies
const (
	PolicyBestEffort = "best_effort"
	PolicyFailFast   = "fail_fast"
)

// Config holds all configuration options for the channel archiver
type Config struct {
	// Backend connection and credential scoping
	Discord DiscordConfig `yaml:"discord" json:"discord"`

	// Guild ID -> channel IDs to archive
	Targets map[string][]string `yaml:"targets" json:"targets"`

	// Content classes requested from the search endpoint
	Query QueryConfig `yaml:"query" json:"query"`

	// Media types written to disk
	Types TypesConfig `yaml:"types" json:"types"`

	RateLimit  RateLimitConfig  `yaml:"rate_limit" json:"rate_limit"`
	Retry      RetryConfig      `yaml:"retry" json:"retry"`
	Network    NetworkConfig    `yaml:"network" json:"network"`
	Download   DownloadConfig   `yaml:"download" json:"download"`
	Output     OutputConfig     `yaml:"output" json:"output"`
	Errors     ErrorsConfig     `yaml:"errors" json:"errors"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
	Schedule   ScheduleConfig   `yaml:"schedule" json:"schedule"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// DiscordConfig holds backend-specific configuration
type DiscordConfig struct {
	Token       string   `yaml:"-" json:"-"`
	UserAgent   string   `yaml:"user_agent" json:"user_agent"`
	APIBase     string   `yaml:"api_base" json:"api_base"`
	APIVersion  string   `yaml:"api_version" json:"api_version"`
	SafeDomains []string `yaml:"safe_domains" json:"safe_domains"`
	// Timezone used to cut calendar days; empty means the local zone
	Timezone string `yaml:"timezone" json:"timezone"`
}

// QueryConfig selects the has=... terms of the search query
type QueryConfig struct {
	Images bool `yaml:"images" json:"images"`
	Files  bool `yaml:"files" json:"files"`
	Embeds bool `yaml:"embeds" json:"embeds"`
	Links  bool `yaml:"links" json:"links"`
	Videos bool `yaml:"videos" json:"videos"`
	NSFW   bool `yaml:"nsfw" json:"nsfw"`
}

// TypesConfig is the download type filter
type TypesConfig struct {
	Images bool `yaml:"images" json:"images"`
	Videos bool `yaml:"videos" json:"videos"`
	Files  bool `yaml:"files" json:"files"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// 0 disables client-side pacing; the backend 429 gate is always active
	RequestsPerMinute   int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	MaxRateLimitRetries int           `yaml:"max_rate_limit_retries" json:"max_rate_limit_retries"`
	MaxRedirects        int           `yaml:"max_redirects" json:"max_redirects"`
	RetryAfterPadding   time.Duration `yaml:"retry_after_padding" json:"retry_after_padding"`
}

// RetryConfig controls retries of a day's first search page
type RetryConfig struct {
	DayAttempts int           `yaml:"day_attempts" json:"day_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
}

// NetworkConfig selects the connection shim
type NetworkConfig struct {
	// Empty for a direct connection, otherwise http://, https:// or socks5:// proxy URL
	Proxy   string        `yaml:"proxy" json:"proxy"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ChunkSize           int64 `yaml:"chunk_size" json:"chunk_size"`
	ConcurrentDownloads int   `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	ConcurrentChannels  int   `yaml:"concurrent_channels" json:"concurrent_channels"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory     string `yaml:"base_directory" json:"base_directory"`
	SanitizeFileNames bool   `yaml:"sanitize_file_names" json:"sanitize_file_names"`
	CacheJSON         bool   `yaml:"cache_json" json:"cache_json"`
}

// ErrorsConfig chooses between best-effort and fail-fast handling
type ErrorsConfig struct {
	Policy string `yaml:"policy" json:"policy"`
}

// CheckpointConfig controls ChannelCursor persistence
type CheckpointConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Empty means the platform data directory
	Directory string `yaml:"directory" json:"directory"`
}

// IndexConfig points at the SQLite archive index; empty disables it
type IndexConfig struct {
	Path string `yaml:"path" json:"path"`
}

// MetricsConfig holds the Prometheus listener address; empty disables it
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// ScheduleConfig holds the cron spec used by the watch command
type ScheduleConfig struct {
	Cron string `yaml:"cron" json:"cron"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// FailFast reports whether the error policy aborts on the first failure
func (c *Config) FailFast() bool {
	return strings.EqualFold(c.Errors.Policy, PolicyFailFast)
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Discord: DiscordConfig{
			UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			APIBase:     "https://discord.com",
			APIVersion:  "v9",
			SafeDomains: []string{"discord.com", "discordapp.net"},
		},
		Targets: map[string][]string{},
		Query: QueryConfig{
			Images: true,
			Files:  true,
			Videos: true,
		},
		Types: TypesConfig{
			Images: true,
			Videos: true,
			Files:  true,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute:   0,
			MaxRateLimitRetries: 5,
			MaxRedirects:        5,
			RetryAfterPadding:   time.Second,
		},
		Retry: RetryConfig{
			DayAttempts: 1,
			BaseDelay:   2 * time.Second,
			MaxDelay:    30 * time.Second,
		},
		Network: NetworkConfig{
			Timeout: 60 * time.Second,
		},
		Download: DownloadConfig{
			ChunkSize:           1 << 20,
			ConcurrentDownloads: 3,
			ConcurrentChannels:  1,
		},
		Output: OutputConfig{
			BaseDirectory:     ".",
			SanitizeFileNames: true,
			CacheJSON:         false,
		},
		Errors: ErrorsConfig{
			Policy: PolicyBestEffort,
		},
		Checkpoint: CheckpointConfig{
			Enabled: true,
		},
		Schedule: ScheduleConfig{
			Cron: "@daily",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if token := os.Getenv("CHANARCHIVE_TOKEN"); token != "" {
		c.Discord.Token = token
	}
	if userAgent := os.Getenv("CHANARCHIVE_USER_AGENT"); userAgent != "" {
		c.Discord.UserAgent = userAgent
	}
	if version := os.Getenv("CHANARCHIVE_API_VERSION"); version != "" {
		c.Discord.APIVersion = version
	}
	if proxy := os.Getenv("CHANARCHIVE_PROXY"); proxy != "" {
		c.Network.Proxy = proxy
	}
	if outputDir := os.Getenv("CHANARCHIVE_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if chunk := os.Getenv("CHANARCHIVE_CHUNK_SIZE"); chunk != "" {
		val, err := strconv.ParseInt(chunk, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid CHANARCHIVE_CHUNK_SIZE: %w", err)
		}
		c.Download.ChunkSize = val
	}
	if concurrent := os.Getenv("CHANARCHIVE_CONCURRENT_DOWNLOADS"); concurrent != "" {
		val, err := strconv.Atoi(concurrent)
		if err != nil {
			return fmt.Errorf("invalid CHANARCHIVE_CONCURRENT_DOWNLOADS: %w", err)
		}
		c.Download.ConcurrentDownloads = val
	}
	if policy := os.Getenv("CHANARCHIVE_ERROR_POLICY"); policy != "" {
		c.Errors.Policy = policy
	}
	if indexPath := os.Getenv("CHANARCHIVE_INDEX"); indexPath != "" {
		c.Index.Path = indexPath
	}
	if logLevel := os.Getenv("CHANARCHIVE_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".chanarchive.yaml",
		".chanarchive.yml",
		filepath.Join(home, ".config", "chanarchive", "config.yaml"),
		filepath.Join(home, ".config", "chanarchive", "config.yml"),
		filepath.Join(home, ".chanarchive.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Discord.APIBase == "" {
		errs = append(errs, errors.New("discord api base is required"))
	} else if u, err := url.Parse(c.Discord.APIBase); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("discord api base %q is not an absolute URL", c.Discord.APIBase))
	}
	if c.Discord.APIVersion == "" {
		errs = append(errs, errors.New("discord api version is required"))
	}
	if len(c.Discord.SafeDomains) == 0 {
		errs = append(errs, errors.New("at least one safe domain is required"))
	}
	if c.Discord.Timezone != "" {
		if _, err := time.LoadLocation(c.Discord.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("invalid timezone: %w", err))
		}
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}
	if c.RateLimit.MaxRateLimitRetries < 0 {
		errs = append(errs, errors.New("max rate limit retries cannot be negative"))
	}
	if c.RateLimit.MaxRedirects < 0 {
		errs = append(errs, errors.New("max redirects cannot be negative"))
	}
	if c.Retry.DayAttempts < 1 {
		errs = append(errs, errors.New("day attempts must be at least 1"))
	}

	if c.Network.Proxy != "" {
		u, err := url.Parse(c.Network.Proxy)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid proxy URL: %w", err))
		} else {
			switch u.Scheme {
			case "http", "https", "socks5", "socks5h":
			default:
				errs = append(errs, fmt.Errorf("unsupported proxy scheme %q", u.Scheme))
			}
		}
	}
	if c.Network.Timeout <= 0 {
		errs = append(errs, errors.New("network timeout must be positive"))
	}

	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 16 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 16"))
	}
	if c.Download.ConcurrentChannels <= 0 {
		errs = append(errs, errors.New("concurrent channels must be positive"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	switch strings.ToLower(c.Errors.Policy) {
	case PolicyBestEffort, PolicyFailFast:
	default:
		errs = append(errs, fmt.Errorf("invalid error policy %q", c.Errors.Policy))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Location returns the time zone used to cut calendar days
func (c *Config) Location() *time.Location {
	if c.Discord.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Discord.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if token, ok := flags["token"].(string); ok && token != "" {
		c.Discord.Token = token
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if proxy, ok := flags["proxy"].(string); ok && proxy != "" {
		c.Network.Proxy = proxy
	}
	if chunk, ok := flags["chunk-size"].(int64); ok && chunk != 0 {
		c.Download.ChunkSize = chunk
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Download.ConcurrentDownloads = concurrent
	}
	if channels, ok := flags["channels"].(int); ok && channels > 0 {
		c.Download.ConcurrentChannels = channels
	}
	if policy, ok := flags["error-policy"].(string); ok && policy != "" {
		c.Errors.Policy = policy
	}
	if indexPath, ok := flags["index"].(string); ok && indexPath != "" {
		c.Index.Path = indexPath
	}
	if addr, ok := flags["metrics-addr"].(string); ok && addr != "" {
		c.Metrics.Addr = addr
	}
	if spec, ok := flags["cron"].(string); ok && spec != "" {
		c.Schedule.Cron = spec
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if targets, ok := flags["targets"].(map[string][]string); ok && len(targets) > 0 {
		c.Targets = targets
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".chanarchive.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// ParseTarget splits a "guild/channel" argument
func ParseTarget(arg string) (guildID, channelID string, err error) {
	parts := strings.Split(strings.TrimSpace(arg), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("target %q must be in the form <guild_id>/<channel_id>", arg)
	}
	for _, p := range parts {
		if _, err := strconv.ParseUint(p, 10, 64); err != nil {
			return "", "", fmt.Errorf("target %q: %q is not a snowflake", arg, p)
		}
	}
	return parts[0], parts[1], nil
}
