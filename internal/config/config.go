package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfigFailed marks any problem reading or parsing the config file.
var ErrConfigFailed = errors.New("config: failed to load")

type Config struct {
	Database       DatabaseConfig       `yaml:"database"`
	Catalog        CatalogConfig        `yaml:"catalog"`
	Profiles       ProfilesConfig       `yaml:"profiles"`
	SmartProtocols SmartProtocolsConfig `yaml:"smart_protocols"`
	Prober         ProberConfig         `yaml:"prober"`
	GeoIP          GeoIPConfig          `yaml:"geoip"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

type ProfilesConfig struct {
	// DefaultCountries adds a fastest-in-country shortcut per entry to the
	// built-in profile set.
	DefaultCountries []string `yaml:"default_countries"`
}

// SmartProtocolsConfig plays the role of the remote feature flags that
// enable or disable protocols for automatic selection.
type SmartProtocolsConfig struct {
	WireGuardUDP bool `yaml:"wireguard_udp"`
	WireGuardTCP bool `yaml:"wireguard_tcp"`
	WireGuardTLS bool `yaml:"wireguard_tls"`
	OpenVPNUDP   bool `yaml:"openvpn_udp"`
	OpenVPNTCP   bool `yaml:"openvpn_tcp"`
}

type ProberConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	Retries     int           `yaml:"retries"`
	WorkerCount int           `yaml:"worker_count"`
	ProxyURL    string        `yaml:"proxy_url"`
}

type GeoIPConfig struct {
	ASNPath     string `yaml:"asn_path"`
	CountryPath string `yaml:"country_path"`
}

// Error carries the path of the config file that failed to load.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrConfigFailed, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == ErrConfigFailed
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Database.Path = "vpnprofile.db"
	cfg.Catalog.Path = "servers.yaml"
	cfg.SmartProtocols = SmartProtocolsConfig{
		WireGuardUDP: true,
		WireGuardTCP: true,
		WireGuardTLS: true,
		OpenVPNUDP:   true,
		OpenVPNTCP:   true,
	}
	cfg.Prober.Timeout = 3 * time.Second
	cfg.Prober.Retries = 1
	cfg.Prober.WorkerCount = 20
	return &cfg
}

// Load reads path (default ./config.yaml). A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	countries := c.Profiles.DefaultCountries[:0]
	for _, cc := range c.Profiles.DefaultCountries {
		cc = strings.ToUpper(strings.TrimSpace(cc))
		if cc != "" {
			countries = append(countries, cc)
		}
	}
	c.Profiles.DefaultCountries = countries

	if c.Prober.WorkerCount <= 0 {
		c.Prober.WorkerCount = 20
	}
	if c.Prober.Timeout <= 0 {
		c.Prober.Timeout = 3 * time.Second
	}
	if c.Prober.Retries < 0 {
		c.Prober.Retries = 0
	}
}
