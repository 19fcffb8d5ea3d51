// Package config loads the daemon configuration from YAML and fills in
// defaults for anything omitted. Every knob maps onto a component config;
// nothing here is read at scan time.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML can carry human-readable values
// like "500ms" or "12h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value %q", value.Value)
	}
	*d = Duration(n)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Quota   QuotaConfig   `yaml:"quota"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Probe   ProbeConfig   `yaml:"probe"`
	Scan    ScanConfig    `yaml:"scan"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`

	// TriggerSecret protects the internal step-trigger route. Empty
	// disables the route entirely.
	TriggerSecret string `yaml:"trigger_secret"`

	// DeepEnabled gates deep scans globally, independent of per-request
	// authorization.
	DeepEnabled bool `yaml:"deep_enabled"`

	// AllowedOrigins feeds the CORS layer. Empty means same-origin only.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type StorageConfig struct {
	// Path is the SQLite database file. Empty selects the in-memory store.
	Path string `yaml:"path"`
}

type QuotaConfig struct {
	UserLimit int      `yaml:"user_limit"`
	IPLimit   int      `yaml:"ip_limit"`
	Window    Duration `yaml:"window"`
}

type FetchConfig struct {
	Timeout        Duration `yaml:"timeout"`
	MaxRedirects   int      `yaml:"max_redirects"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes"`
	MaxScripts     int      `yaml:"max_scripts"`
	MaxConcurrency int      `yaml:"max_concurrency"`
	ScriptTimeout  Duration `yaml:"script_timeout"`
	UserAgent      string   `yaml:"user_agent"`
}

type ProbeConfig struct {
	SchemaTimeout Duration `yaml:"schema_timeout"`
	ProbeTimeout  Duration `yaml:"probe_timeout"`
	BatchSize     int      `yaml:"batch_size"`
	BatchPause    Duration `yaml:"batch_pause"`
	RowLimit      int      `yaml:"row_limit"`
}

type ScanConfig struct {
	StepDelay   Duration `yaml:"step_delay"`
	StepTimeout Duration `yaml:"step_timeout"`
}

// Default returns the configuration used when no file is given. Zero
// values inside component configs are filled by the components themselves;
// only cross-cutting defaults live here.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:      ":8080",
			DeepEnabled: true,
		},
		Quota: QuotaConfig{
			UserLimit: 10,
			IPLimit:   3,
			Window:    Duration(24 * time.Hour),
		},
	}
}

// Load reads and parses the YAML file at path on top of defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = Default().Server.Listen
	}
	return cfg, nil
}
