package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Source kinds.
const (
	SourceGenerator = "generator"
	SourceTrace     = "trace"
)

// PipelineConfig is the on-disk pipeline layout.
type PipelineConfig struct {
	Name         string         `toml:"name"`
	RunID        string         `toml:"run_id"`
	Policy       string         `toml:"policy"`
	Trigger      bool           `toml:"trigger"`
	AllowOverlap bool           `toml:"allow_overlap"`
	Clock        ClockConfig    `toml:"clock"`
	Crossing     CrossingConfig `toml:"crossing"`
	Fields       FieldsConfig   `toml:"fields"`
	Source       SourceConfig   `toml:"source"`
}

// ClockConfig durations use time.ParseDuration syntax.
type ClockConfig struct {
	ProducerPeriod string `toml:"producer_period"`
	ConsumerPeriod string `toml:"consumer_period"`
	ProducerPhase  string `toml:"producer_phase"`
	ConsumerPhase  string `toml:"consumer_phase"`
}

type CrossingConfig struct {
	SyncStages            int  `toml:"sync_stages"`
	SameClockDomainUnsafe bool `toml:"same_clock_domain_unsafe"`
}

type FieldsConfig struct {
	PulseID     FieldConfig `toml:"pulse_id"`
	Seconds     FieldConfig `toml:"seconds"`
	Nanoseconds FieldConfig `toml:"nanoseconds"`
}

type FieldConfig struct {
	Offset         uint32 `toml:"offset"`
	Length         int    `toml:"length"`
	BigEndian      bool   `toml:"big_endian"`
	SequenceCheck  bool   `toml:"sequence_check"`
	WatchdogPeriod uint32 `toml:"watchdog_period"`
}

type SourceConfig struct {
	Kind      string          `toml:"kind"`
	TracePath string          `toml:"trace_path"`
	Loop      bool            `toml:"loop"`
	Generator GeneratorConfig `toml:"generator"`
}

// GeneratorConfig places fields where the extractors look for them.
type GeneratorConfig struct {
	FrameLength  int     `toml:"frame_length"`
	HoldTicks    int     `toml:"hold_ticks"`
	GapTicks     int     `toml:"gap_ticks"`
	StartPulseID uint64  `toml:"start_pulse_id"`
	Start        string  `toml:"start"`
	FramePeriod  string  `toml:"frame_period"`
	DropRate     float64 `toml:"drop_rate"`
	SkipRate     float64 `toml:"skip_rate"`
	Seed         int64   `toml:"seed"`
}

// Default returns the layout of the reference receiver: a 32 byte frame
// with pulse id at 4, seconds at 12 and nanoseconds at 16.
func Default() PipelineConfig {
	return PipelineConfig{
		Name:    "evr0",
		Policy:  "last",
		Trigger: true,
		Clock: ClockConfig{
			ProducerPeriod: "8ns",
			ConsumerPeriod: "10ns",
			ProducerPhase:  "0s",
			ConsumerPhase:  "0s",
		},
		Crossing: CrossingConfig{SyncStages: 2},
		Fields: FieldsConfig{
			PulseID:     FieldConfig{Offset: 4, Length: 8, BigEndian: true, SequenceCheck: true, WatchdogPeriod: 10_000},
			Seconds:     FieldConfig{Offset: 12, Length: 4, BigEndian: true},
			Nanoseconds: FieldConfig{Offset: 16, Length: 4, BigEndian: true},
		},
		Source: SourceConfig{
			Kind: SourceGenerator,
			Generator: GeneratorConfig{
				FrameLength:  32,
				HoldTicks:    2,
				GapTicks:     8,
				StartPulseID: 1,
				Start:        "2023-11-14T22:13:20Z",
				FramePeriod:  "10ms",
			},
		},
	}
}

// Load reads path over Default, so omitted tables keep their defaults.
func Load(path string) (PipelineConfig, error) {
	cfg := Default()
	if err := loadToml(path, &cfg); err != nil {
		return PipelineConfig{}, err
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "evr0"
	}
	if err := Validate(cfg); err != nil {
		return PipelineConfig{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

// Validate checks everything that can be checked without building the
// pipeline; the pipeline repeats its own structural checks.
func Validate(cfg PipelineConfig) error {
	if _, err := cfg.Pipeline(); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Source.Kind)) {
	case SourceGenerator:
		if _, err := cfg.Generator(); err != nil {
			return err
		}
	case SourceTrace:
		if strings.TrimSpace(cfg.Source.TracePath) == "" {
			return fmt.Errorf("source trace_path is required for kind=%s", SourceTrace)
		}
	default:
		return fmt.Errorf("unknown source kind: %q", cfg.Source.Kind)
	}
	return nil
}

// Encode renders cfg as TOML.
func Encode(cfg PipelineConfig) ([]byte, error) {
	return toml.Marshal(cfg)
}

func parseDuration(name, raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}
