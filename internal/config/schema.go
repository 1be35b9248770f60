package config

import (
	"time"

	"pingwatch/internal/domain"
)

// Config is the root configuration structure
type Config struct {
	// Namespace prefixes every object and state id
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	// IntervalMs is the alive-cycle period
	IntervalMs int `yaml:"interval_ms" mapstructure:"interval_ms"`
	// UnreachableIntervalMs is the unreachable-cycle period, 0 = IntervalMs
	UnreachableIntervalMs int  `yaml:"unreachable_interval_ms,omitempty" mapstructure:"unreachable_interval_ms"`
	Retries               int  `yaml:"retries" mapstructure:"retries"`
	NoHostname            bool `yaml:"no_hostname,omitempty" mapstructure:"no_hostname"`
	// AutodetectMinutes enables periodic unattended sweeps, 0 = off
	AutodetectMinutes int `yaml:"autodetect_minutes,omitempty" mapstructure:"autodetect_minutes"`

	Probe    ProbeConfig     `yaml:"probe" mapstructure:"probe"`
	Devices  []domain.Device `yaml:"devices" mapstructure:"devices"`
	Database DatabaseConfig  `yaml:"database" mapstructure:"database"`
	HTTP     HTTPConfig      `yaml:"http" mapstructure:"http"`
	Log      LogConfig       `yaml:"log" mapstructure:"log"`
	Notify   NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	Enrich   EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
}

// ProbeConfig holds settings for single probes
type ProbeConfig struct {
	TimeoutSeconds int      `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	MinReply       int      `yaml:"min_reply" mapstructure:"min_reply"`
	ExtraArgs      []string `yaml:"extra_args,omitempty" mapstructure:"extra_args"`
	// PingPath overrides the platform's ping binary
	PingPath string `yaml:"ping_path,omitempty" mapstructure:"ping_path"`
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// HTTPConfig holds the API listener
type HTTPConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// LogConfig selects level, format and destination of the log
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text, json
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, file

	FilePath   string `yaml:"file_path,omitempty" mapstructure:"file_path"`
	MaxSize    int    `yaml:"max_size,omitempty" mapstructure:"max_size"` // MB
	MaxBackups int    `yaml:"max_backups,omitempty" mapstructure:"max_backups"`
	MaxAge     int    `yaml:"max_age,omitempty" mapstructure:"max_age"` // days
	Compress   bool   `yaml:"compress,omitempty" mapstructure:"compress"`
}

// NotifyConfig holds optional notification transports
type NotifyConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig enables redis pub/sub when Addr is set
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty" mapstructure:"addr"`
	Password string `yaml:"password,omitempty" mapstructure:"password"`
	DB       int    `yaml:"db,omitempty" mapstructure:"db"`
	Channel  string `yaml:"channel,omitempty" mapstructure:"channel"`
}

// EnrichConfig controls MAC and vendor lookup for discovered hosts
type EnrichConfig struct {
	ARPPath         string `yaml:"arp_path,omitempty" mapstructure:"arp_path"`
	Nmap            bool   `yaml:"nmap" mapstructure:"nmap"`
	MACPrefixesPath string `yaml:"mac_prefixes_path,omitempty" mapstructure:"mac_prefixes_path"`
}

// Interval is the alive-cycle period
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// UnreachableInterval is the unreachable-cycle period; unset means Interval
func (c *Config) UnreachableInterval() time.Duration {
	if c.UnreachableIntervalMs <= 0 {
		return c.Interval()
	}
	return time.Duration(c.UnreachableIntervalMs) * time.Millisecond
}

// ProbeTimeout is the per-probe timeout
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Probe.TimeoutSeconds) * time.Second
}

// AutodetectPeriod is the delay between unattended sweeps, 0 when disabled
func (c *Config) AutodetectPeriod() time.Duration {
	if c.AutodetectMinutes <= 0 {
		return 0
	}
	return time.Duration(c.AutodetectMinutes) * time.Minute
}
