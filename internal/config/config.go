// Package config provides the configuration structure for the
// voice-agent service.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Defaults applied when the TOML omits a value.
const (
	defaultPort           = "8080"
	defaultTimeoutSeconds = 300
	defaultKokoroLangCode = "a"
	defaultZonosLanguage  = "en-us"
	defaultVoicesDirName  = "voices"
	defaultTempDirName    = "voice-agent"
)

// ErrNoModelEnabled indicates a configuration with every backend turned
// off.
var ErrNoModelEnabled = errors.New("at least one model backend must be enabled")

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Port               string `toml:"port"`
	CORSAllowedOrigins string `toml:"cors_allowed_origins"`
}

// NATSConfig holds the job-worker settings.
type NATSConfig struct {
	Enabled                bool   `toml:"enabled"`
	URL                    string `toml:"url"`
	JobsSubject            string `toml:"jobs_subject"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
}

// KokoroConfig holds the Kokoro runtime settings.
type KokoroConfig struct {
	Enabled        bool   `toml:"enabled"`
	URL            string `toml:"url"`
	LangCode       string `toml:"lang_code"`
	SplitPattern   string `toml:"split_pattern"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ZonosConfig holds the Zonos runtime settings.
type ZonosConfig struct {
	Enabled        bool   `toml:"enabled"`
	URL            string `toml:"url"`
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// PathsConfig holds the filesystem locations the service writes to.
type PathsConfig struct {
	VoicesDir   string `toml:"voices_dir"`
	TempDir     string `toml:"temp_dir"`
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Server ServerConfig `toml:"server"`
	NATS   NATSConfig   `toml:"nats"`
	Kokoro KokoroConfig `toml:"kokoro"`
	Zonos  ZonosConfig  `toml:"zonos"`
	Paths  PathsConfig  `toml:"paths"`
}

// Load loads the configuration for the voice-agent via the central
// configurator, applies defaults, and validates it.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, validateErr
	}

	return &cfg, nil
}

// ApplyDefaults fills empty fields with working defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = defaultPort
	}

	if c.Kokoro.LangCode == "" {
		c.Kokoro.LangCode = defaultKokoroLangCode
	}

	if c.Kokoro.TimeoutSeconds == 0 {
		c.Kokoro.TimeoutSeconds = defaultTimeoutSeconds
	}

	if c.Zonos.Language == "" {
		c.Zonos.Language = defaultZonosLanguage
	}

	if c.Zonos.TimeoutSeconds == 0 {
		c.Zonos.TimeoutSeconds = defaultTimeoutSeconds
	}

	if c.Paths.VoicesDir == "" {
		c.Paths.VoicesDir = defaultVoicesDirName
	}

	if c.Paths.TempDir == "" {
		c.Paths.TempDir = filepath.Join(os.TempDir(), defaultTempDirName)
	}
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if !c.Kokoro.Enabled && !c.Zonos.Enabled {
		return ErrNoModelEnabled
	}

	return nil
}

// EnsureDirectories creates the writable directories the service needs.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.VoicesDir, c.Paths.TempDir} {
		err := os.MkdirAll(dir, 0o750)
		if err != nil {
			return fmt.Errorf("failed to create directory %q: %w", dir, err)
		}
	}

	return nil
}
