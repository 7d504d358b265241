package trace

import (
	"fmt"
	"os"

	"github.com/danmuck/evrstamp/internal/stream"
	"github.com/google/uuid"
)

// Source replays a recorded trace, optionally looping.
type Source struct {
	events []stream.Event
	pos    int
	loop   bool
	runID  uuid.UUID
}

func NewSource(events []stream.Event, loop bool) *Source {
	return &Source{events: events, loop: loop}
}

// LoadSource reads a whole trace file into memory.
func LoadSource(path string, loop bool) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trace load failed (%s): %w", path, err)
	}
	defer f.Close()
	events, runID, err := ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("trace parse failed (%s): %w", path, err)
	}
	src := NewSource(events, loop)
	src.runID = runID
	return src, nil
}

// RunID is the id of the run that recorded the trace.
func (s *Source) RunID() uuid.UUID {
	return s.runID
}

func (s *Source) Len() int {
	return len(s.events)
}

func (s *Source) Next() stream.Event {
	if s.pos >= len(s.events) {
		if !s.loop || len(s.events) == 0 {
			return stream.Event{}
		}
		s.pos = 0
	}
	ev := s.events[s.pos]
	s.pos++
	return ev
}

// Recorder tees a source into a trace writer. Source.Next cannot fail, so
// the first write error is kept and recording stops.
type Recorder struct {
	src stream.Source
	w   *Writer
	err error
}

func NewRecorder(src stream.Source, w *Writer) *Recorder {
	return &Recorder{src: src, w: w}
}

func (r *Recorder) Next() stream.Event {
	ev := r.src.Next()
	if r.err == nil {
		r.err = r.w.Write(ev)
	}
	return ev
}

// Close flushes pending events and reports the first error.
func (r *Recorder) Close() error {
	if r.err != nil {
		return r.err
	}
	return r.w.Flush()
}
