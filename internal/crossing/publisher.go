package crossing

import (
	"errors"
	"fmt"
)

// MaxSyncStages bounds the synchroniser chain.
const MaxSyncStages = 2

// DefaultSyncStages is used for independent clock domains.
const DefaultSyncStages = 2

var ErrInvalidStages = errors.New("crossing: invalid synchronisation stages")

// Config selects the synchroniser depth.
type Config struct {
	SyncStages int
	// SameClockDomainUnsafe must be set to allow SyncStages == 0. Without
	// synchronisation the consumer reads the producer bit combinationally.
	SameClockDomainUnsafe bool
}

func DefaultConfig() Config {
	return Config{SyncStages: DefaultSyncStages}
}

func (c Config) Validate() error {
	if c.SyncStages < 0 || c.SyncStages > MaxSyncStages {
		return fmt.Errorf("%w: %d (want 0..%d)", ErrInvalidStages, c.SyncStages, MaxSyncStages)
	}
	if c.SyncStages == 0 && !c.SameClockDomainUnsafe {
		return fmt.Errorf("%w: zero stages requires same_clock_domain_unsafe", ErrInvalidStages)
	}
	return nil
}

// Latency is the number of consumer ticks from first observation to edge.
func (c Config) Latency() int {
	return c.SyncStages + 1
}

// Publisher turns a toggling source bit into one-shot edges.
type Publisher struct {
	stages int
	// hist[i] is the source bit sampled i+1 ticks ago.
	hist [MaxSyncStages + 1]bool
}

func NewPublisher(cfg Config) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Publisher{stages: cfg.SyncStages}, nil
}

// Step samples src for one consumer tick and reports an edge.
func (p *Publisher) Step(src bool) bool {
	cur := src
	if p.stages > 0 {
		cur = p.hist[p.stages-1]
	}
	edge := cur != p.hist[p.stages]
	for i := p.stages; i > 0; i-- {
		p.hist[i] = p.hist[i-1]
	}
	p.hist[0] = src
	return edge
}

// Level is the synchronised toggle level as seen after the latest step.
func (p *Publisher) Level() bool {
	return p.hist[p.stages]
}
