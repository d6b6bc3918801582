// Package config loads the simulator process's own configuration: where
// station templates and persisted configuration files live, transport
// TLS settings, logging, the metrics listener, and default ATG bounds.
// Per-station identity/behavior lives in template files (internal/template),
// never here.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TLSConfig holds TLS certificate configuration for the supervision
// WebSocket connection shared by every station in the pool.
type TLSConfig struct {
	CAFile         string `yaml:"ca_file"`          // CA certificate to verify server cert chain
	ServerCertFile string `yaml:"server_cert_file"` // Trusted server certificate (for self-signed certs)
	CertFile       string `yaml:"cert_file"`        // Client certificate
	KeyFile        string `yaml:"key_file"`         // Client private key
	SkipVerify     bool   `yaml:"skip_verify"`      // Skip server certificate verification (insecure)
}

// ATGConfig bounds the default Automatic Transaction Generator applied to
// every station the pool loads; templates have no setting to opt out.
type ATGConfig struct {
	Enabled         bool    `yaml:"enabled"`
	MinDurationSec  int     `yaml:"min_duration_seconds"`
	MaxDurationSec  int     `yaml:"max_duration_seconds"`
	MinEnergyWh     int     `yaml:"min_energy_wh"`
	MaxEnergyWh     int     `yaml:"max_energy_wh"`
	IdTag           string  `yaml:"id_tag"`
	TickIntervalSec float64 `yaml:"tick_interval_seconds"`
}

// Config is the simulator process's own configuration (spec §9 CLI
// bootstrap): where to find station templates/configurations, shared
// transport settings, and ambient logging/metrics knobs.
type Config struct {
	TemplateDir string     `yaml:"template_dir"`
	ConfigDir   string     `yaml:"config_dir"`
	TLS         *TLSConfig `yaml:"tls"`

	LogLevel      string `yaml:"log_level"`
	MetricsAddr   string `yaml:"metrics_addr"`
	CacheCapacity int    `yaml:"cache_capacity"`

	ATG ATGConfig `yaml:"atg"`
}

// Load reads and parses the simulator's own configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{
		TemplateDir:   "templates",
		ConfigDir:     "configs",
		LogLevel:      "info",
		MetricsAddr:   ":9000",
		CacheCapacity: 64,
		ATG: ATGConfig{
			MinDurationSec:  300,
			MaxDurationSec:  3600,
			MinEnergyWh:     1000,
			MaxEnergyWh:     20000,
			IdTag:           "SIMULATOR",
			TickIntervalSec: 10,
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.TemplateDir == "" {
		return fmt.Errorf("template_dir is required")
	}
	if c.ConfigDir == "" {
		return fmt.Errorf("config_dir is required")
	}
	if c.CacheCapacity <= 0 {
		return fmt.Errorf("cache_capacity must be positive")
	}
	if c.ATG.Enabled {
		if c.ATG.MinDurationSec <= 0 || c.ATG.MaxDurationSec < c.ATG.MinDurationSec {
			return fmt.Errorf("atg: min_duration_seconds/max_duration_seconds must be positive and ordered")
		}
		if c.ATG.MinEnergyWh < 0 || c.ATG.MaxEnergyWh < c.ATG.MinEnergyWh {
			return fmt.Errorf("atg: min_energy_wh/max_energy_wh must be non-negative and ordered")
		}
	}
	return nil
}

// GetTLSConfig returns the tls.Config if TLS is configured.
func (c *Config) GetTLSConfig() (*tls.Config, error) {
	if c.TLS == nil {
		return nil, nil
	}

	tlsConfig := &tls.Config{}

	if c.TLS.SkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}

	certPool := x509.NewCertPool()
	hasCerts := false

	if c.TLS.CAFile != "" {
		caCert, err := os.ReadFile(c.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		hasCerts = true
	}

	if c.TLS.ServerCertFile != "" {
		serverCert, err := os.ReadFile(c.TLS.ServerCertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read server certificate: %w", err)
		}
		if !certPool.AppendCertsFromPEM(serverCert) {
			return nil, fmt.Errorf("failed to parse server certificate")
		}
		hasCerts = true
	}

	if hasCerts {
		tlsConfig.RootCAs = certPool
	}

	if c.TLS.CertFile != "" && c.TLS.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.TLS.CertFile, c.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// AtgDurationBounds converts the yaml-friendly second counts to
// time.Durations for atg.Config.
func (c *ATGConfig) AtgDurationBounds() (min, max, tick time.Duration) {
	min = time.Duration(c.MinDurationSec) * time.Second
	max = time.Duration(c.MaxDurationSec) * time.Second
	tick = time.Duration(c.TickIntervalSec * float64(time.Second))
	return
}
