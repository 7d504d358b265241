package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/evrstamp/internal/clock"
	"github.com/danmuck/evrstamp/internal/crossing"
	"github.com/danmuck/evrstamp/internal/extract"
	"github.com/danmuck/evrstamp/internal/regfile"
	"github.com/danmuck/evrstamp/internal/stream"
	"github.com/danmuck/evrstamp/internal/triple"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrNilSource      = errors.New("pipeline: nil source")
	ErrInvalidPace    = errors.New("pipeline: invalid pace")
	ErrFieldOverlap   = errors.New("pipeline: field ranges overlap")
	ErrAlreadyRunning = errors.New("pipeline: already running")
)

// FieldConfig configures one extractor and its consumer-side watchdog.
type FieldConfig struct {
	Extract        extract.Config
	WatchdogPeriod uint32
}

// Config is fixed at construction time.
type Config struct {
	Name     string
	Clock    clock.Config
	Crossing crossing.Config
	Fields   [triple.NumFields]FieldConfig
	Policy   triple.Policy
	// Trigger is the initial level of the external trigger input.
	Trigger bool
	// AllowOverlap accepts field ranges that share addresses.
	AllowOverlap bool
	// RunID tags logs, traces and snapshots; zero picks a random id.
	RunID uuid.UUID

	PaceInterval      time.Duration
	TicksPerPace      uint64
	HeartbeatInterval time.Duration
}

// DefaultConfig matches the default generator layout.
func DefaultConfig() Config {
	return Config{
		Name:     "evr0",
		Clock:    clock.DefaultConfig(),
		Crossing: crossing.DefaultConfig(),
		Fields: [triple.NumFields]FieldConfig{
			triple.PulseID: {
				Extract:        extract.Config{Offset: 4, Length: 8, BigEndian: true, SequenceCheck: true},
				WatchdogPeriod: 10_000,
			},
			triple.Seconds:     {Extract: extract.Config{Offset: 12, Length: 4, BigEndian: true}},
			triple.Nanoseconds: {Extract: extract.Config{Offset: 16, Length: 4, BigEndian: true}},
		},
		Policy:            triple.LatchLast,
		Trigger:           true,
		PaceInterval:      time.Millisecond,
		TicksPerPace:      1000,
		HeartbeatInterval: 5 * time.Second,
	}
}

func (c Config) Validate() error {
	if err := c.Clock.Validate(); err != nil {
		return err
	}
	if err := c.Crossing.Validate(); err != nil {
		return err
	}
	for i, f := range c.Fields {
		if err := f.Extract.Validate(); err != nil {
			return fmt.Errorf("field %s: %w", triple.Field(i), err)
		}
	}
	if !c.AllowOverlap {
		for i := 0; i < len(c.Fields); i++ {
			for j := i + 1; j < len(c.Fields); j++ {
				a, b := c.Fields[i].Extract, c.Fields[j].Extract
				if a.Offset <= b.Last() && b.Offset <= a.Last() {
					return fmt.Errorf("%w: %s and %s", ErrFieldOverlap, triple.Field(i), triple.Field(j))
				}
			}
		}
	}
	return nil
}

// FieldStats are lifetime totals for one field; they ignore counter resets.
type FieldStats struct {
	Updates          uint64 `json:"updates"`
	SequenceErrors   uint64 `json:"sequence_errors"`
	SyncErrors       uint64 `json:"sync_errors"`
	WatchdogTimeouts uint64 `json:"watchdog_timeouts"`
}

func (s *FieldStats) add(kind EventKind) {
	switch kind {
	case EventUpdate:
		s.Updates++
	case EventSequenceError:
		s.SequenceErrors++
	case EventSyncError:
		s.SyncErrors++
	case EventWatchdogTimeout:
		s.WatchdogTimeouts++
	}
}

// Status is a point-in-time view of the pipeline.
type Status struct {
	Name          string                `json:"name"`
	RunID         string                `json:"run_id"`
	ProducerTicks uint64                `json:"producer_ticks"`
	ConsumerTicks uint64                `json:"consumer_ticks"`
	VirtualTime   time.Duration         `json:"virtual_time"`
	Trigger       bool                  `json:"trigger"`
	LastField     string                `json:"last_field"`
	Fields        map[string]FieldStats `json:"fields"`
	Registers     regfile.Snapshot      `json:"registers"`
}

type channel struct {
	field    triple.Field
	x        *extract.Extractor
	update   *crossing.Handoff[uint64]
	seq      *crossing.Publisher
	sync     *crossing.Publisher
	watchdog *extract.Watchdog
	stats    FieldStats
}

func newChannel(field triple.Field, cfg FieldConfig, cross crossing.Config) (*channel, error) {
	x, err := extract.New(cfg.Extract)
	if err != nil {
		return nil, err
	}
	update, err := crossing.NewHandoff[uint64](cross)
	if err != nil {
		return nil, err
	}
	seq, err := crossing.NewPublisher(cross)
	if err != nil {
		return nil, err
	}
	syncPub, err := crossing.NewPublisher(cross)
	if err != nil {
		return nil, err
	}
	return &channel{
		field:    field,
		x:        x,
		update:   update,
		seq:      seq,
		sync:     syncPub,
		watchdog: extract.NewWatchdog(cfg.WatchdogPeriod),
	}, nil
}

// Pipeline owns every component of one timing receiver.
type Pipeline struct {
	cfg    Config
	runID  uuid.UUID
	src    stream.Source
	logger zerolog.Logger

	chans  [triple.NumFields]*channel
	triple *triple.Triple
	regs   *regfile.RegisterFile
	sched  *clock.Scheduler
	bus    *Bus

	trigger    atomic.Bool
	running    atomic.Bool
	observers  []Observer
	lastFreeze int8

	mu sync.Mutex
}

func New(cfg Config, src stream.Source, observers ...Observer) (*Pipeline, error) {
	if src == nil {
		return nil, ErrNilSource
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := cfg.RunID
	if runID == uuid.Nil {
		runID = uuid.New()
	}
	p := &Pipeline{
		cfg:       cfg,
		runID:     runID,
		src:       src,
		regs:      regfile.New(),
		bus:       newBus(),
		observers: observers,
	}
	var offsets [triple.NumFields]uint32
	for i, f := range cfg.Fields {
		ch, err := newChannel(triple.Field(i), f, cfg.Crossing)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", triple.Field(i), err)
		}
		p.chans[i] = ch
		offsets[i] = f.Extract.Offset
	}
	p.triple = triple.New(triple.Config{Offsets: offsets, Policy: cfg.Policy})
	p.trigger.Store(cfg.Trigger)

	sched, err := clock.New(cfg.Clock, p.producerTick, p.consumerTick)
	if err != nil {
		return nil, err
	}
	p.sched = sched
	p.logger = log.With().
		Str("pipeline", cfg.Name).
		Str("run_id", p.runID.String()).
		Logger()
	return p, nil
}

func (p *Pipeline) Name() string {
	return p.cfg.Name
}

func (p *Pipeline) RunID() uuid.UUID {
	return p.runID
}

func (p *Pipeline) Bus() *Bus {
	return p.bus
}

// SetTrigger drives the external trigger level.
func (p *Pipeline) SetTrigger(level bool) {
	p.trigger.Store(level)
}

func (p *Pipeline) Trigger() bool {
	return p.trigger.Load()
}

// Step runs a single clock edge.
func (p *Pipeline) Step() clock.Domain {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sched.Step()
}

// RunTicks runs n consumer ticks plus every producer tick in between.
func (p *Pipeline) RunTicks(n uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sched.RunTicks(clock.Consumer, n)
}

// Slots returns committed register contents without a bus cycle.
func (p *Pipeline) Slots() [regfile.NumSlots]uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.regs.Slots()
}

func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	fields := make(map[string]FieldStats, len(p.chans))
	for _, ch := range p.chans {
		fields[ch.field.String()] = ch.stats
	}
	return Status{
		Name:          p.cfg.Name,
		RunID:         p.runID.String(),
		ProducerTicks: p.sched.Ticks(clock.Producer),
		ConsumerTicks: p.sched.Ticks(clock.Consumer),
		VirtualTime:   p.sched.Now(),
		Trigger:       p.trigger.Load(),
		LastField:     p.triple.Last().String(),
		Fields:        fields,
		Registers:     regfile.Decode(p.regs.Slots()),
	}
}

// Run paces the clock against wall time until ctx is done.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.cfg.PaceInterval <= 0 || p.cfg.TicksPerPace == 0 {
		return ErrInvalidPace
	}
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer p.running.Store(false)
	defer p.bus.Close()

	pace := time.NewTicker(p.cfg.PaceInterval)
	defer pace.Stop()
	var heartbeat <-chan time.Time
	if p.cfg.HeartbeatInterval > 0 {
		hb := time.NewTicker(p.cfg.HeartbeatInterval)
		defer hb.Stop()
		heartbeat = hb.C
	}

	p.logger.Info().
		Dur("pace", p.cfg.PaceInterval).
		Uint64("ticks_per_pace", p.cfg.TicksPerPace).
		Str("last_field", p.triple.Last().String()).
		Str("policy", p.cfg.Policy.String()).
		Msg("pipeline running")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("pipeline shutdown")
			return nil
		case <-pace.C:
			p.RunTicks(p.cfg.TicksPerPace)
		case <-heartbeat:
			st := p.Status()
			p.logger.Info().
				Uint64("consumer_ticks", st.ConsumerTicks).
				Uint64("pulse_id", st.Registers.PulseID).
				Uint32("updates", st.Registers.Updates).
				Uint32("sync_errors", st.Registers.SyncErrors).
				Uint32("sequence_errors", st.Registers.SequenceErrors).
				Uint32("watchdog_timeouts", st.Registers.WatchdogTimeouts).
				Msg("pipeline heartbeat")
		}
	}
}

func (p *Pipeline) producerTick(uint64) {
	ev := p.src.Next()
	for _, ch := range p.chans {
		ch.x.Step(ev)
	}
}

func (p *Pipeline) consumerTick(uint64) {
	var in triple.Inputs
	var events regfile.Events
	for i, ch := range p.chans {
		out := ch.x.Outputs()
		_, updated := ch.update.Step(out.UpdateToggle, out.Value)
		seqEdge := ch.seq.Step(out.SeqToggle)
		syncEdge := ch.sync.Step(out.SyncToggle)
		timeout := ch.watchdog.Step(updated)

		in.Edges[i] = updated
		if seqEdge {
			events.SeqErrors++
			p.emit(ch, EventSequenceError)
		}
		if syncEdge {
			events.SyncErrors++
			p.emit(ch, EventSyncError)
		}
		if timeout {
			events.WatchdogTimeouts++
			p.emit(ch, EventWatchdogTimeout)
		}
		if updated {
			p.emit(ch, EventUpdate)
		}
	}
	in.Values = triple.Values{
		PulseID:     p.chans[triple.PulseID].update.Value(),
		Seconds:     p.chans[triple.Seconds].update.Value(),
		Nanoseconds: p.chans[triple.Nanoseconds].update.Value(),
	}
	in.Freeze = p.regs.Frozen()
	in.Capture = p.trigger.Load() || p.regs.Override()
	if p.triple.Edge(in.Edges) {
		events.Updates++
	}
	events.Triple = p.triple.Step(in)
	if events.Triple.Fresh {
		for _, o := range p.observers {
			o.TripleUpdated(events.Triple.Values)
		}
	}

	req := p.bus.serve(p.regs.ReadData())
	p.regs.Step(events, req)

	if c := p.regs.FreezeCount(); c != p.lastFreeze {
		p.lastFreeze = c
		for _, o := range p.observers {
			o.FreezeChanged(c)
		}
	}
}

func (p *Pipeline) emit(ch *channel, kind EventKind) {
	ch.stats.add(kind)
	for _, o := range p.observers {
		o.FieldEvent(ch.field, kind)
	}
}
