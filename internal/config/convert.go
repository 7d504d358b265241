package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/evrstamp/internal/clock"
	"github.com/danmuck/evrstamp/internal/crossing"
	"github.com/danmuck/evrstamp/internal/extract"
	"github.com/danmuck/evrstamp/internal/pipeline"
	"github.com/danmuck/evrstamp/internal/protocol/trace"
	"github.com/danmuck/evrstamp/internal/stream"
	"github.com/danmuck/evrstamp/internal/triple"
	"github.com/google/uuid"
)

var ErrInvalidRunID = errors.New("config: invalid run_id")

func (f FieldConfig) pipeline() pipeline.FieldConfig {
	return pipeline.FieldConfig{
		Extract: extract.Config{
			Offset:        f.Offset,
			Length:        f.Length,
			BigEndian:     f.BigEndian,
			SequenceCheck: f.SequenceCheck,
		},
		WatchdogPeriod: f.WatchdogPeriod,
	}
}

func (f FieldConfig) placement() stream.Placement {
	return stream.Placement{Offset: f.Offset, Length: f.Length, BigEndian: f.BigEndian}
}

// Pipeline converts the file layout into a validated pipeline.Config. Pace
// and heartbeat stay at their defaults; the service file owns them.
func (c PipelineConfig) Pipeline() (pipeline.Config, error) {
	out := pipeline.DefaultConfig()
	out.Name = c.Name
	if c.RunID != "" {
		id, err := uuid.Parse(c.RunID)
		if err != nil {
			return pipeline.Config{}, fmt.Errorf("%w: %v", ErrInvalidRunID, err)
		}
		out.RunID = id
	}

	policy, err := triple.ParsePolicy(c.Policy)
	if err != nil {
		return pipeline.Config{}, err
	}
	out.Policy = policy
	out.Trigger = c.Trigger
	out.AllowOverlap = c.AllowOverlap

	def := clock.DefaultConfig()
	if out.Clock.ProducerPeriod, err = parseDuration("clock.producer_period", c.Clock.ProducerPeriod, def.ProducerPeriod); err != nil {
		return pipeline.Config{}, err
	}
	if out.Clock.ConsumerPeriod, err = parseDuration("clock.consumer_period", c.Clock.ConsumerPeriod, def.ConsumerPeriod); err != nil {
		return pipeline.Config{}, err
	}
	if out.Clock.ProducerPhase, err = parseDuration("clock.producer_phase", c.Clock.ProducerPhase, 0); err != nil {
		return pipeline.Config{}, err
	}
	if out.Clock.ConsumerPhase, err = parseDuration("clock.consumer_phase", c.Clock.ConsumerPhase, 0); err != nil {
		return pipeline.Config{}, err
	}

	out.Crossing = crossing.Config{
		SyncStages:            c.Crossing.SyncStages,
		SameClockDomainUnsafe: c.Crossing.SameClockDomainUnsafe,
	}
	out.Fields[triple.PulseID] = c.Fields.PulseID.pipeline()
	out.Fields[triple.Seconds] = c.Fields.Seconds.pipeline()
	out.Fields[triple.Nanoseconds] = c.Fields.Nanoseconds.pipeline()

	if err := out.Validate(); err != nil {
		return pipeline.Config{}, err
	}
	return out, nil
}

// Generator builds the synthetic stream config with fields placed where the
// extractors expect them.
func (c PipelineConfig) Generator() (stream.GeneratorConfig, error) {
	g := c.Source.Generator
	out := stream.DefaultGeneratorConfig()
	out.FrameLength = g.FrameLength
	out.HoldTicks = g.HoldTicks
	out.GapTicks = g.GapTicks
	out.StartPulseID = g.StartPulseID
	out.DropRate = g.DropRate
	out.SkipRate = g.SkipRate
	out.Seed = g.Seed
	out.PulseID = c.Fields.PulseID.placement()
	out.Seconds = c.Fields.Seconds.placement()
	out.Nanoseconds = c.Fields.Nanoseconds.placement()

	if s := strings.TrimSpace(g.Start); s != "" {
		start, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return stream.GeneratorConfig{}, fmt.Errorf("source.generator.start: %w", err)
		}
		out.Start = start
	}
	var err error
	if out.FramePeriod, err = parseDuration("source.generator.frame_period", g.FramePeriod, out.FramePeriod); err != nil {
		return stream.GeneratorConfig{}, err
	}
	if _, err := stream.NewGenerator(out); err != nil {
		return stream.GeneratorConfig{}, err
	}
	return out, nil
}

// OpenSource builds the configured stream source.
func (c PipelineConfig) OpenSource() (stream.Source, error) {
	switch strings.ToLower(strings.TrimSpace(c.Source.Kind)) {
	case SourceGenerator:
		g, err := c.Generator()
		if err != nil {
			return nil, err
		}
		return stream.NewGenerator(g)
	case SourceTrace:
		return trace.LoadSource(c.Source.TracePath, c.Source.Loop)
	default:
		return nil, fmt.Errorf("unknown source kind: %q", c.Source.Kind)
	}
}
