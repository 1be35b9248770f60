// Package config loads and saves the pingwatch configuration.
//
// The file is YAML. Values are layered by viper: defaults, then the file,
// then PINGWATCH_* environment variables, then any command line flags bound
// by the caller. The file is rewritten only by Save (used when discovered
// hosts are promoted to devices). It writes the effective values, so env and
// flag overrides active at the time end up in the file.
//
// Config file locations (priority order):
//  1. $PINGWATCH_CONFIG
//  2. ./pingwatch.yaml
//  3. $XDG_CONFIG_HOME/pingwatch/config.yaml
//  4. ~/.config/pingwatch/config.yaml
//  5. /etc/pingwatch/config.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pingwatch/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. PINGWATCH_PROBE_TIMEOUT_SECONDS
const EnvPrefix = "PINGWATCH"

// Loader reads the config through viper
type Loader struct {
	path string
	v    *viper.Viper
}

// NewLoader creates a loader for path; "" searches FindConfigPath
func NewLoader(path string) *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return &Loader{path: path, v: v}
}

// Viper exposes the underlying instance so callers can bind flags
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load reads the file (if any), applies overrides and validates the result.
// The returned path is the file that was read, or "" when running on defaults.
func (l *Loader) Load() (*Config, string, error) {
	path := l.path
	if path == "" {
		path = FindConfigPath()
	}

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, path, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return &cfg, path, nil
}

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	return NewLoader("").Load()
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	return NewLoader(path).Load()
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("namespace", d.Namespace)
	v.SetDefault("interval_ms", d.IntervalMs)
	v.SetDefault("unreachable_interval_ms", 0)
	v.SetDefault("retries", d.Retries)
	v.SetDefault("no_hostname", false)
	v.SetDefault("autodetect_minutes", 0)

	v.SetDefault("probe.timeout_seconds", d.Probe.TimeoutSeconds)
	v.SetDefault("probe.min_reply", d.Probe.MinReply)
	v.SetDefault("probe.ping_path", "")

	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("http.addr", d.HTTP.Addr)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output", d.Log.Output)
	v.SetDefault("log.file_path", "")
	v.SetDefault("log.max_size", d.Log.MaxSize)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age", d.Log.MaxAge)
	v.SetDefault("log.compress", false)

	v.SetDefault("notify.redis.addr", "")
	v.SetDefault("notify.redis.password", "")
	v.SetDefault("notify.redis.db", 0)
	v.SetDefault("notify.redis.channel", "")

	v.SetDefault("enrich.arp_path", "")
	v.SetDefault("enrich.nmap", false)
	v.SetDefault("enrich.mac_prefixes_path", "")
}

// DefaultConfig returns the defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Namespace:  "pingwatch.0",
		IntervalMs: 60000,
		Probe: ProbeConfig{
			TimeoutSeconds: 2,
			MinReply:       1,
		},
		Database: DatabaseConfig{Path: "./pingwatch.db"},
		HTTP:     HTTPConfig{Addr: ":8086"},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     28,
		},
	}
}

// Validate rejects values no component can run with
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Namespace) == "" {
		errs = append(errs, errors.New("namespace is empty"))
	}
	if c.IntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("interval_ms must be positive, got %d", c.IntervalMs))
	}
	if c.Retries < 0 {
		errs = append(errs, fmt.Errorf("retries must not be negative, got %d", c.Retries))
	}
	if c.Probe.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("probe.timeout_seconds must be positive, got %d", c.Probe.TimeoutSeconds))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// AddDevices appends discovered hosts as enabled devices, skipping addresses
// that are already configured. The device name is the vendor when known.
// Returns the number of devices added.
func (c *Config) AddDevices(hosts []domain.DetectedHost) int {
	known := make(map[string]struct{}, len(c.Devices))
	for _, d := range c.Devices {
		known[d.IP] = struct{}{}
	}

	added := 0
	for _, h := range hosts {
		if h.IP == "" {
			continue
		}
		if _, ok := known[h.IP]; ok {
			continue
		}
		name := h.Vendor
		if name == "" {
			name = h.IP
		}
		c.Devices = append(c.Devices, domain.Device{Name: name, IP: h.IP})
		known[h.IP] = struct{}{}
		added++
	}
	return added
}
