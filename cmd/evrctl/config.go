package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// serviceConfig is the runtime half of evrctl's configuration; the
// pipeline layout lives in its own file.
type serviceConfig struct {
	ID                string
	Addr              string
	CorsOrigins       []string
	PipelinePath      string
	PaceInterval      time.Duration
	TicksPerPace      uint64
	HeartbeatInterval time.Duration
	HealthLogBurst    uint32
	HealthLogPeriod   time.Duration
}

type fileConfig struct {
	ID                string   `toml:"id"`
	Addr              string   `toml:"addr"`
	CorsOrigins       []string `toml:"cors_origins"`
	Pipeline          string   `toml:"pipeline"`
	PaceInterval      string   `toml:"pace_interval"`
	TicksPerPace      int64    `toml:"ticks_per_pace"`
	HeartbeatInterval string   `toml:"heartbeat_interval"`
	HealthLogBurst    int64    `toml:"health_log_burst"`
	HealthLogPeriod   string   `toml:"health_log_period"`
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		ID:                "evrctl",
		Addr:              ":9200",
		CorsOrigins:       []string{},
		PaceInterval:      time.Millisecond,
		TicksPerPace:      1000,
		HeartbeatInterval: 5 * time.Second,
		HealthLogBurst:    10,
		HealthLogPeriod:   time.Second,
	}
}

func loadServiceConfig(path string) (serviceConfig, error) {
	cfg := defaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serviceConfig{}, fmt.Errorf("load evrctl config: %w", err)
	}

	if meta.IsDefined("id") {
		if id := strings.TrimSpace(raw.ID); id != "" {
			cfg.ID = id
		}
	}
	if meta.IsDefined("addr") {
		if addr := strings.TrimSpace(raw.Addr); addr != "" {
			cfg.Addr = addr
		}
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}
	if meta.IsDefined("pipeline") {
		cfg.PipelinePath = strings.TrimSpace(raw.Pipeline)
	}
	if meta.IsDefined("pace_interval") {
		d, err := parsePositive("pace_interval", raw.PaceInterval)
		if err != nil {
			return serviceConfig{}, err
		}
		cfg.PaceInterval = d
	}
	if meta.IsDefined("ticks_per_pace") {
		if raw.TicksPerPace <= 0 {
			return serviceConfig{}, fmt.Errorf("ticks_per_pace must be positive: %d", raw.TicksPerPace)
		}
		cfg.TicksPerPace = uint64(raw.TicksPerPace)
	}
	if meta.IsDefined("heartbeat_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.HeartbeatInterval))
		if err != nil {
			return serviceConfig{}, fmt.Errorf("parse heartbeat_interval: %w", err)
		}
		cfg.HeartbeatInterval = d
	}
	if meta.IsDefined("health_log_burst") {
		if raw.HealthLogBurst < 0 {
			return serviceConfig{}, fmt.Errorf("health_log_burst must not be negative: %d", raw.HealthLogBurst)
		}
		cfg.HealthLogBurst = uint32(raw.HealthLogBurst)
	}
	if meta.IsDefined("health_log_period") {
		d, err := parsePositive("health_log_period", raw.HealthLogPeriod)
		if err != nil {
			return serviceConfig{}, err
		}
		cfg.HealthLogPeriod = d
	}

	return cfg, nil
}

func parsePositive(name, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive: %v", name, d)
	}
	return d, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
