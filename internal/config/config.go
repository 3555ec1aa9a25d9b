package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server  ServerConfig  `toml:"server"`  // HTTP server settings
	Logging LoggingConfig `toml:"logging"` // Application logging settings
	Weather WxConfig      `toml:"wx"`      // Live weather fetching settings
	Sim     SimConfig     `toml:"sim"`     // Simulated aircraft settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port             int    `toml:"port"`                  // HTTP port for the server
	Host             string `toml:"host"`                  // Host address to bind to
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request
	WriteTimeoutSecs int    `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout, needed for streaming)
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds"`  // Keep-alive idle timeout
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// WxConfig contains live weather fetching configuration
type WxConfig struct {
	BaseURL                string  `toml:"base_url"`                 // AWC dataserver endpoint
	RequestTimeoutSeconds  int     `toml:"request_timeout_seconds"`  // HTTP request timeout in seconds
	SearchRadiusNM         float64 `toml:"search_radius_nm"`         // Initial METAR search radius in nautical miles
	RefreshIntervalSeconds int     `toml:"refresh_interval_seconds"` // How often to request a weather update
	UserAgent              string  `toml:"user_agent"`               // Client identification sent with every request
}

// SimConfig contains the simulated aircraft configuration
type SimConfig struct {
	InitialLat            float64 `toml:"initial_lat"`             // Starting latitude in decimal degrees
	InitialLon            float64 `toml:"initial_lon"`             // Starting longitude in decimal degrees
	InitialAltitudeFt     float64 `toml:"initial_altitude_ft"`     // Starting altitude in feet
	InitialHeadingDeg     float64 `toml:"initial_heading_deg"`     // Starting heading in degrees
	InitialSpeedKts       float64 `toml:"initial_speed_kts"`       // Starting speed in knots
	UpdateIntervalSeconds int     `toml:"update_interval_seconds"` // Dead-reckoning tick in seconds
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Validate logging config
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid log level
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "console":
		// Valid log format
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if err := c.ValidateWeather(); err != nil {
		return err
	}

	return c.ValidateSim()
}

// ValidateWeather validates the weather configuration
func (c *Config) ValidateWeather() error {
	if c.Weather.BaseURL == "" {
		c.Weather.BaseURL = "https://www.aviationweather.gov/adds/dataserver_current/httpparam"
	}
	if c.Weather.UserAgent == "" {
		c.Weather.UserAgent = "simwx/1.0"
	}

	if c.Weather.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("wx request_timeout_seconds must be greater than 0: %d", c.Weather.RequestTimeoutSeconds)
	}
	if c.Weather.RefreshIntervalSeconds <= 0 {
		return fmt.Errorf("wx refresh_interval_seconds must be greater than 0: %d", c.Weather.RefreshIntervalSeconds)
	}
	if c.Weather.SearchRadiusNM <= 0 || c.Weather.SearchRadiusNM > 100 {
		return fmt.Errorf("wx search_radius_nm must be within (0, 100]: %f", c.Weather.SearchRadiusNM)
	}

	return nil
}

// ValidateSim validates the simulated aircraft configuration
func (c *Config) ValidateSim() error {
	if c.Sim.InitialLat < -90 || c.Sim.InitialLat > 90 {
		return fmt.Errorf("invalid sim initial_lat: %f", c.Sim.InitialLat)
	}
	if c.Sim.InitialLon < -180 || c.Sim.InitialLon > 180 {
		return fmt.Errorf("invalid sim initial_lon: %f", c.Sim.InitialLon)
	}
	if c.Sim.InitialHeadingDeg < 0 || c.Sim.InitialHeadingDeg >= 360 {
		return fmt.Errorf("invalid sim initial_heading_deg: %f", c.Sim.InitialHeadingDeg)
	}
	if c.Sim.InitialSpeedKts < 0 {
		return fmt.Errorf("invalid sim initial_speed_kts: %f", c.Sim.InitialSpeedKts)
	}
	if c.Sim.UpdateIntervalSeconds <= 0 {
		c.Sim.UpdateIntervalSeconds = 1
	}

	return nil
}
