package stream

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

var (
	ErrInvalidFrameLength = errors.New("stream: invalid frame length")
	ErrPlacementOverflow  = errors.New("stream: field placement exceeds frame")
	ErrInvalidRate        = errors.New("stream: fault rate out of range")
)

// Placement locates one multi-byte field inside a frame.
type Placement struct {
	Offset    uint32
	Length    int
	BigEndian bool
}

// Put writes v into frame at p, truncated to p.Length bytes.
func (p Placement) Put(frame []byte, v uint64) {
	for i := 0; i < p.Length; i++ {
		shift := uint(8 * i)
		if p.BigEndian {
			shift = uint(8 * (p.Length - 1 - i))
		}
		frame[int(p.Offset)+i] = byte(v >> shift)
	}
}

func (p Placement) end() uint64 {
	return uint64(p.Offset) + uint64(p.Length)
}

// GeneratorConfig describes a synthetic timing stream.
type GeneratorConfig struct {
	FrameLength  int
	HoldTicks    int
	GapTicks     int
	StartPulseID uint64
	Start        time.Time
	FramePeriod  time.Duration

	PulseID     Placement
	Seconds     Placement
	Nanoseconds Placement

	// DropRate is the probability that a single address is not presented.
	DropRate float64
	// SkipRate is the probability that the pulse id advances by two.
	SkipRate float64
	Seed     int64
}

func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		FrameLength:  32,
		HoldTicks:    2,
		GapTicks:     8,
		StartPulseID: 1,
		Start:        time.Unix(1700000000, 0),
		FramePeriod:  10 * time.Millisecond,
		PulseID:      Placement{Offset: 4, Length: 8, BigEndian: true},
		Seconds:      Placement{Offset: 12, Length: 4, BigEndian: true},
		Nanoseconds:  Placement{Offset: 16, Length: 4, BigEndian: true},
	}
}

// Generator synthesises frames carrying an incrementing pulse id and the
// matching seconds/nanoseconds timestamp.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand

	frame   []byte
	present []bool
	index   int
	hold    int
	gap     int

	frames  uint64
	pulseID uint64
}

func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.FrameLength <= 0 {
		return nil, ErrInvalidFrameLength
	}
	for _, p := range []Placement{cfg.PulseID, cfg.Seconds, cfg.Nanoseconds} {
		if p.Length < 1 || p.Length > 8 || p.end() > uint64(cfg.FrameLength) {
			return nil, fmt.Errorf("%w: offset=%d length=%d frame=%d", ErrPlacementOverflow, p.Offset, p.Length, cfg.FrameLength)
		}
	}
	if cfg.DropRate < 0 || cfg.DropRate > 1 || cfg.SkipRate < 0 || cfg.SkipRate > 1 {
		return nil, ErrInvalidRate
	}
	if cfg.HoldTicks < 1 {
		cfg.HoldTicks = 1
	}
	if cfg.GapTicks < 0 {
		cfg.GapTicks = 0
	}
	g := &Generator{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		frame:   make([]byte, cfg.FrameLength),
		present: make([]bool, cfg.FrameLength),
		pulseID: cfg.StartPulseID,
	}
	g.buildFrame()
	return g, nil
}

// Frames reports how many frames have been fully emitted.
func (g *Generator) Frames() uint64 {
	return g.frames
}

func (g *Generator) Next() Event {
	if g.gap > 0 {
		g.gap--
		if g.gap == 0 {
			g.buildFrame()
		}
		return Event{}
	}
	for g.index < len(g.frame) && !g.present[g.index] {
		g.index++
	}
	if g.index >= len(g.frame) {
		return g.endFrame()
	}

	ev := Event{
		Address: uint32(g.index),
		Data:    g.frame[g.index],
		Valid:   g.hold == g.cfg.HoldTicks-1,
	}
	g.hold++
	if g.hold >= g.cfg.HoldTicks {
		g.hold = 0
		g.index++
		if g.index >= len(g.frame) {
			g.endFrame()
		}
	}
	return ev
}

func (g *Generator) endFrame() Event {
	g.frames++
	g.index = 0
	g.hold = 0
	g.pulseID++
	if g.cfg.SkipRate > 0 && g.rng.Float64() < g.cfg.SkipRate {
		g.pulseID++
	}
	if g.cfg.GapTicks > 0 {
		g.gap = g.cfg.GapTicks
	} else {
		g.buildFrame()
	}
	return Event{}
}

func (g *Generator) buildFrame() {
	for i := range g.frame {
		g.frame[i] = byte(i)
		g.present[i] = true
		if g.cfg.DropRate > 0 && g.rng.Float64() < g.cfg.DropRate {
			g.present[i] = false
		}
	}
	ts := g.cfg.Start.Add(time.Duration(g.pulseID-g.cfg.StartPulseID) * g.cfg.FramePeriod)
	g.cfg.PulseID.Put(g.frame, g.pulseID)
	g.cfg.Seconds.Put(g.frame, uint64(ts.Unix()))
	g.cfg.Nanoseconds.Put(g.frame, uint64(ts.Nanosecond()))
}
