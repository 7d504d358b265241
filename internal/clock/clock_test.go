package clock

import (
	"errors"
	"testing"
	"time"

	"github.com/danmuck/evrstamp/internal/testutil/testlog"
)

func TestStepOrderProducerFirstOnTies(t *testing.T) {
	testlog.Start(t)
	var order []Domain
	var s *Scheduler
	var err error
	record := func(d Domain) TickFunc {
		return func(uint64) { order = append(order, d) }
	}
	s, err = New(DefaultConfig(), record(Producer), record(Consumer))
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	s.RunTicks(Consumer, 5)

	want := []Domain{Producer, Consumer, Producer, Consumer, Producer, Consumer, Producer, Consumer, Producer, Producer, Consumer}
	if len(order) != len(want) {
		t.Fatalf("edge count=%d want=%d order=%v", len(order), len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("edge %d=%s want=%s order=%v", i, order[i], want[i], order)
		}
	}
	if s.Ticks(Producer) != 6 || s.Ticks(Consumer) != 5 {
		t.Fatalf("ticks producer=%d consumer=%d", s.Ticks(Producer), s.Ticks(Consumer))
	}
	if s.Now() != 40*time.Nanosecond {
		t.Fatalf("now=%v want=40ns", s.Now())
	}
}

func TestTickNumbersAndPhase(t *testing.T) {
	testlog.Start(t)
	var consumerAt []uint64
	cfg := Config{ProducerPeriod: 4 * time.Nanosecond, ConsumerPeriod: 4 * time.Nanosecond, ConsumerPhase: 2 * time.Nanosecond}
	var s *Scheduler
	s, err := New(cfg, nil, func(n uint64) {
		if uint64(s.Now()) != uint64(2+4*n) {
			t.Errorf("consumer tick %d at %v", n, s.Now())
		}
		consumerAt = append(consumerAt, n)
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if d := s.Step(); d != Producer {
		t.Fatalf("first edge=%s want producer", d)
	}
	if d := s.Step(); d != Consumer {
		t.Fatalf("second edge=%s want consumer", d)
	}
	s.RunTicks(Consumer, 3)
	if len(consumerAt) != 4 || consumerAt[3] != 3 {
		t.Fatalf("consumer ticks=%v", consumerAt)
	}
}

func TestInvalidConfig(t *testing.T) {
	testlog.Start(t)
	cases := []Config{
		{ProducerPeriod: 0, ConsumerPeriod: time.Nanosecond},
		{ProducerPeriod: time.Nanosecond, ConsumerPeriod: -time.Nanosecond},
		{ProducerPeriod: time.Nanosecond, ConsumerPeriod: time.Nanosecond, ProducerPhase: -1},
	}
	for i, cfg := range cases {
		if _, err := New(cfg, nil, nil); !errors.Is(err, ErrInvalidPeriod) {
			t.Fatalf("case %d: expected ErrInvalidPeriod, got %v", i, err)
		}
	}
}
