// Package config loads the YAML configuration for a socksio server
// binary, grounded on the same read-unmarshal-validate shape as a plain
// YAML proxy config loader.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/latency-space/socksio/frame"
)

// Config is the top-level YAML configuration for cmd/socks-server.
type Config struct {
	Listen string `yaml:"listen"`

	AllowedVersions []int  `yaml:"allowed_versions"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`

	// NoStrictSecurity opts out of the strict_security gate, which
	// defaults to enabled: SOCKS4 and credentials are mutually
	// exclusive unless an operator explicitly sets no_strict_security.
	NoStrictSecurity bool `yaml:"no_strict_security"`

	// Encoding selects the text codec for SOCKS4 USERID, SOCKS5 domain
	// labels, and username/password fields ("utf8", the default, or
	// "raw").
	Encoding string `yaml:"encoding"`

	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `yaml:"rate_limit_burst"`

	MetricsListen string `yaml:"metrics_listen"`

	Autocert struct {
		Enabled    bool     `yaml:"enabled"`
		Email      string   `yaml:"email"`
		CacheDir   string   `yaml:"cache_dir"`
		AllowHosts []string `yaml:"allow_hosts"`
	} `yaml:"autocert"`
}

// Load reads and validates the YAML configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{
		RateLimitPerSecond: 50,
		RateLimitBurst:     100,
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fills in defaults and checks the configuration for internal
// consistency. Load calls this after unmarshalling; a caller that
// mutates a *Config after Load (e.g. applying CLI flag overrides) must
// call Validate again before using it.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("config: 'listen' is required")
	}
	if len(c.AllowedVersions) == 0 {
		c.AllowedVersions = []int{4, 5}
	}
	for _, v := range c.AllowedVersions {
		if v != 4 && v != 5 {
			return fmt.Errorf("config: allowed_versions entry %d must be 4 or 5", v)
		}
	}
	if c.StrictSecurity() && c.Username != "" {
		for _, v := range c.AllowedVersions {
			if v == 4 {
				return fmt.Errorf("config: strict security (default) forbids allowing socks4 alongside credentials; set no_strict_security to opt out")
			}
		}
	}
	if c.Encoding != "" && c.Encoding != "utf8" && c.Encoding != "raw" {
		return fmt.Errorf("config: encoding %q must be \"utf8\" or \"raw\"", c.Encoding)
	}
	if c.Autocert.Enabled && len(c.Autocert.AllowHosts) == 0 {
		return fmt.Errorf("config: autocert.enabled requires at least one entry in allow_hosts")
	}
	return nil
}

// StrictSecurity reports whether the strict security gate is active.
// It defaults to true; NoStrictSecurity is the only way to disable it.
func (c *Config) StrictSecurity() bool {
	return !c.NoStrictSecurity
}

// TextEncoding maps the configured encoding name to frame.Encoding,
// defaulting to UTF8.
func (c *Config) TextEncoding() frame.Encoding {
	if c.Encoding == "raw" {
		return frame.Raw
	}
	return frame.UTF8
}

// VersionSet returns AllowedVersions as the map shape socksio.Policy
// expects.
func (c *Config) VersionSet() map[int]bool {
	out := make(map[int]bool, len(c.AllowedVersions))
	for _, v := range c.AllowedVersions {
		out[v] = true
	}
	return out
}
