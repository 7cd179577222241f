// Package config loads the receiver's plain-struct configuration from an
// optional YAML file, with CLI flags layered on top as overrides (spec
// §10). Grounded on doismellburning-samoyed's device-config loading
// (struct decoded straight from YAML, no env-var layer) and the pack's
// pflag-based CLI stack (davidkohl-gobelix, doismellburning-samoyed).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/regentag/go1090/internal/convert"
)

// Config is the full set of tunables for one receiver run. Every field has
// a sane zero-value-safe default applied by Default(); a YAML file only
// needs to specify what it wants to override.
type Config struct {
	Source SourceConfig `yaml:"source"`
	FIFO   FIFOConfig   `yaml:"fifo"`
	Demod  DemodConfig  `yaml:"demod"`
	Home   HomeConfig   `yaml:"home"`
	Net    NetConfig    `yaml:"net"`
	Log    LogConfig    `yaml:"log"`
}

// SourceConfig describes where I/Q samples come from and how to convert
// them (spec §4.2).
type SourceConfig struct {
	Kind       string `yaml:"kind"`        // "file", "stdin", "csvreplay"; no network (rtltcp) source
	Path       string `yaml:"path"`        // file path for "file" and "csvreplay"
	Format     string `yaml:"format"`      // "uc8", "sc16", "sc16q11"
	SampleRate int    `yaml:"sample_rate"` // 2000000, 2400000, or 8000000
}

// ConvertFormat maps the configured format name to internal/convert.Format.
func (s SourceConfig) ConvertFormat() (convert.Format, error) {
	switch s.Format {
	case "uc8":
		return convert.FormatUC8, nil
	case "sc16":
		return convert.FormatSC16, nil
	case "sc16q11":
		return convert.FormatSC16Q11, nil
	default:
		return 0, fmt.Errorf("config: unknown source format %q", s.Format)
	}
}

// FIFOConfig sizes the magnitude-buffer pool (spec §4.3).
type FIFOConfig struct {
	PoolSize   int `yaml:"pool_size"`
	BufferSize int `yaml:"buffer_size"`
	Overlap    int `yaml:"overlap"`
}

// DemodConfig controls the demodulator's error tolerance (spec §4.4).
type DemodConfig struct {
	FixErrors    bool `yaml:"fix_errors"`
	Aggressive   bool `yaml:"aggressive"` // allow two-bit CRC correction
	MaxErrorBits int  `yaml:"max_error_bits"`
}

// HomeConfig is the receiver's own position, used for CPR local decode
// fallback and range filtering (spec §4.6).
type HomeConfig struct {
	Have      bool    `yaml:"have"`
	Lat       float64 `yaml:"lat"`
	Lon       float64 `yaml:"lon"`
	MaxDistNM float64 `yaml:"max_dist_nm"`
}

// NetConfig controls the optional output sinks (SPEC_FULL.md §12).
type NetConfig struct {
	SBSListenAddr   string `yaml:"sbs_listen_addr"`
	BeastListenAddr string `yaml:"beast_listen_addr"`
	NATSURL         string `yaml:"nats_url"`
	NATSSubject     string `yaml:"nats_subject"`
}

// LogConfig controls the ambient structured logger.
type LogConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
}

// Default returns a Config with the spec's stated defaults: 2.0 MS/s
// UC8 input, a 16-buffer pool of 131072-sample buffers with a 1920-sample
// overlap (960us of look-behind at 2.0 MS/s, several long Mode S messages'
// worth), and one-bit
// CRC correction enabled.
func Default() Config {
	return Config{
		Source: SourceConfig{
			Kind:       "stdin",
			Format:     "uc8",
			SampleRate: 2000000,
		},
		FIFO: FIFOConfig{
			PoolSize:   16,
			BufferSize: 131072,
			Overlap:    1920,
		},
		Demod: DemodConfig{
			FixErrors:    true,
			Aggressive:   false,
			MaxErrorBits: 5,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads and decodes a YAML config file on top of Default(); a missing
// path is not an error (Default() alone is returned).
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
