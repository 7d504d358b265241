// Package clock drives two free-running clock domains on a shared virtual
// timeline.
//
// Each domain has a period and a phase. Step advances to the next edge and
// calls that domain's TickFunc exactly once. Coincident edges run producer
// first. Everything happens on the caller's goroutine: plain function calls
// keep the per-tick cost small compared to a goroutine per domain.
package clock

import (
	"errors"
	"fmt"
	"time"
)

// Domain names one of the two clock domains.
type Domain int

const (
	Producer Domain = iota
	Consumer
	numDomains
)

func (d Domain) String() string {
	switch d {
	case Producer:
		return "producer"
	case Consumer:
		return "consumer"
	default:
		return "unknown"
	}
}

var ErrInvalidPeriod = errors.New("clock: invalid period")

// TickFunc runs one tick; n counts from zero per domain.
type TickFunc func(n uint64)

type Config struct {
	ProducerPeriod time.Duration
	ConsumerPeriod time.Duration
	ProducerPhase  time.Duration
	ConsumerPhase  time.Duration
}

// DefaultConfig models a 125 MHz stream clock read by a 100 MHz bus clock.
func DefaultConfig() Config {
	return Config{
		ProducerPeriod: 8 * time.Nanosecond,
		ConsumerPeriod: 10 * time.Nanosecond,
	}
}

func (c Config) Validate() error {
	if c.ProducerPeriod <= 0 {
		return fmt.Errorf("%w: producer=%v", ErrInvalidPeriod, c.ProducerPeriod)
	}
	if c.ConsumerPeriod <= 0 {
		return fmt.Errorf("%w: consumer=%v", ErrInvalidPeriod, c.ConsumerPeriod)
	}
	if c.ProducerPhase < 0 || c.ConsumerPhase < 0 {
		return fmt.Errorf("%w: negative phase", ErrInvalidPeriod)
	}
	return nil
}

type Scheduler struct {
	period [numDomains]time.Duration
	next   [numDomains]time.Duration
	ticks  [numDomains]uint64
	funcs  [numDomains]TickFunc
	now    time.Duration
}

func New(cfg Config, producer, consumer TickFunc) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{
		period: [numDomains]time.Duration{cfg.ProducerPeriod, cfg.ConsumerPeriod},
		next:   [numDomains]time.Duration{cfg.ProducerPhase, cfg.ConsumerPhase},
		funcs:  [numDomains]TickFunc{producer, consumer},
	}, nil
}

// Step runs the next pending edge and reports its domain.
func (s *Scheduler) Step() Domain {
	d := Producer
	if s.next[Consumer] < s.next[Producer] {
		d = Consumer
	}
	s.now = s.next[d]
	n := s.ticks[d]
	s.ticks[d]++
	s.next[d] += s.period[d]
	if f := s.funcs[d]; f != nil {
		f(n)
	}
	return d
}

// RunTicks steps until domain d has ticked n more times.
func (s *Scheduler) RunTicks(d Domain, n uint64) {
	target := s.ticks[d] + n
	for s.ticks[d] < target {
		s.Step()
	}
}

// Now is the virtual time of the most recent edge.
func (s *Scheduler) Now() time.Duration {
	return s.now
}

func (s *Scheduler) Ticks(d Domain) uint64 {
	return s.ticks[d]
}
