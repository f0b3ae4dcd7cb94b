package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the panoview API configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Provider    ProviderConfig    `yaml:"provider"`
	Geolocation GeolocationConfig `yaml:"geolocation"`
	Dispatcher  DispatcherConfig  `yaml:"dispatcher"`
	Viewer      ViewerConfig      `yaml:"viewer"`
	Storage     StorageConfig     `yaml:"storage"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// AuthConfig holds API authentication settings. Empty api_keys disables
// authentication.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// ProviderConfig holds geospatial provider settings.
type ProviderConfig struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	TimeoutSec      int    `yaml:"timeout_sec"`
	DetailsCacheSec int    `yaml:"details_cache_sec"`
}

// GeolocationConfig holds device-position lookup settings.
type GeolocationConfig struct {
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// DispatcherConfig holds rate-limit recovery timing. Values are in
// milliseconds so tests can shrink them.
type DispatcherConfig struct {
	CooldownMS      int `yaml:"cooldown_ms"`
	ReplaySpacingMS int `yaml:"replay_spacing_ms"`
}

// ViewerConfig holds viewer session settings.
type ViewerConfig struct {
	DefaultLat      float64 `yaml:"default_lat"`
	DefaultLng      float64 `yaml:"default_lng"`
	ResumeDelayMS   int     `yaml:"resume_delay_ms"`
	FrameIntervalMS int     `yaml:"frame_interval_ms"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = "https://maps.googleapis.com"
	}
	if c.Provider.TimeoutSec <= 0 {
		c.Provider.TimeoutSec = 10
	}
	if c.Provider.DetailsCacheSec <= 0 {
		c.Provider.DetailsCacheSec = 300
	}
	if c.Geolocation.BaseURL == "" {
		c.Geolocation.BaseURL = "http://ip-api.com"
	}
	if c.Geolocation.TimeoutSec <= 0 {
		c.Geolocation.TimeoutSec = 5
	}
	if c.Dispatcher.CooldownMS <= 0 {
		c.Dispatcher.CooldownMS = 2000
	}
	if c.Dispatcher.ReplaySpacingMS <= 0 {
		c.Dispatcher.ReplaySpacingMS = 1000
	}
	if c.Viewer.DefaultLat == 0 && c.Viewer.DefaultLng == 0 {
		// Pune: the seeded default with guaranteed panorama coverage.
		c.Viewer.DefaultLat = 18.5204
		c.Viewer.DefaultLng = 73.8567
	}
	if c.Viewer.ResumeDelayMS <= 0 {
		c.Viewer.ResumeDelayMS = 1000
	}
	if c.Viewer.FrameIntervalMS <= 0 {
		c.Viewer.FrameIntervalMS = 16
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "panoview:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider.api_key is required")
	}
	if c.Viewer.DefaultLat < -90 || c.Viewer.DefaultLat > 90 ||
		c.Viewer.DefaultLng < -180 || c.Viewer.DefaultLng > 180 {
		return fmt.Errorf("viewer default coordinate out of range: %g,%g",
			c.Viewer.DefaultLat, c.Viewer.DefaultLng)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
