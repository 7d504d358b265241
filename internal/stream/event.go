package stream

import "fmt"

// Event is one producer-tick sample of the timing stream.
type Event struct {
	Address uint32
	Data    byte
	Valid   bool
}

func (e Event) String() string {
	if !e.Valid {
		return fmt.Sprintf("[%04x:--]", e.Address)
	}
	return fmt.Sprintf("[%04x:%02x]", e.Address, e.Data)
}

// Source yields one Event per producer tick.
type Source interface {
	Next() Event
}

// SliceSource replays a fixed event list and then idles.
type SliceSource struct {
	events []Event
	pos    int
}

func NewSliceSource(events []Event) *SliceSource {
	buf := make([]Event, len(events))
	copy(buf, events)
	return &SliceSource{events: buf}
}

func (s *SliceSource) Next() Event {
	if s.pos >= len(s.events) {
		return Event{}
	}
	ev := s.events[s.pos]
	s.pos++
	return ev
}

// Remaining reports how many events have not been replayed yet.
func (s *SliceSource) Remaining() int {
	return len(s.events) - s.pos
}

// Held expands frame bytes into events where each address is held for
// hold ticks and valid is asserted only on the last tick of the hold.
// With hold=2 this reproduces a stream whose valid strobe is high on odd
// tick counts.
func Held(base uint32, data []byte, hold int) []Event {
	if hold < 1 {
		hold = 1
	}
	out := make([]Event, 0, len(data)*hold)
	for i, b := range data {
		addr := base + uint32(i)
		for h := 0; h < hold; h++ {
			out = append(out, Event{Address: addr, Data: b, Valid: h == hold-1})
		}
	}
	return out
}
