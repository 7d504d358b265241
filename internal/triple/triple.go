// Package triple latches pulse id, seconds, and nanoseconds as one unit.
//
// The Triple runs in the consumer domain. Values captured on the same update
// edge reach the output latch together, never piecewise. While frozen the
// output latch holds and the newest triple waits in the input latch; the
// tick after release promotes it.
package triple

import (
	"errors"
	"fmt"
	"strings"
)

// Field indexes the three published fields.
type Field int

const (
	PulseID Field = iota
	Seconds
	Nanoseconds
	NumFields
)

func (f Field) String() string {
	switch f {
	case PulseID:
		return "pulse_id"
	case Seconds:
		return "seconds"
	case Nanoseconds:
		return "nanoseconds"
	default:
		return "unknown"
	}
}

// Policy selects which update edge latches a new triple.
type Policy int

const (
	// LatchLast latches on the edge of the field that completes last in a
	// frame.
	LatchLast Policy = iota
	// LatchAny latches on any field edge.
	LatchAny
)

var ErrUnknownPolicy = errors.New("triple: unknown latch policy")

func ParsePolicy(raw string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "last":
		return LatchLast, nil
	case "any":
		return LatchAny, nil
	default:
		return LatchLast, fmt.Errorf("%w: %q", ErrUnknownPolicy, raw)
	}
}

func (p Policy) String() string {
	if p == LatchAny {
		return "any"
	}
	return "last"
}

// Values is one coherent triple.
type Values struct {
	PulseID     uint64
	Seconds     uint64
	Nanoseconds uint64
}

// Config is fixed at construction time.
type Config struct {
	Offsets [NumFields]uint32
	Policy  Policy
}

// LastField picks the field with the highest offset. Equal offsets resolve
// in comparison order: pulse id, then seconds, then nanoseconds.
func LastField(offsets [NumFields]uint32) Field {
	switch {
	case offsets[PulseID] >= offsets[Seconds] && offsets[PulseID] >= offsets[Nanoseconds]:
		return PulseID
	case offsets[Seconds] >= offsets[Nanoseconds]:
		return Seconds
	default:
		return Nanoseconds
	}
}

// Inputs are sampled once per consumer tick.
type Inputs struct {
	Values Values
	Edges  [NumFields]bool
	Freeze bool
	// Capture gates the input latch (trigger or override).
	Capture bool
}

// Outputs are the externally visible latch. Updated is raised on every
// promotion, including a release with nothing pending; Fresh only when the
// promoted triple is a capture the output has not shown yet.
type Outputs struct {
	Values  Values
	Updated bool
	Fresh   bool
}

type Triple struct {
	policy Policy
	last   Field

	in      Values
	pending bool

	out       Values
	updated   bool
	fresh     bool
	wasFrozen bool
}

func New(cfg Config) *Triple {
	return &Triple{
		policy: cfg.Policy,
		last:   LastField(cfg.Offsets),
	}
}

// Last is the field whose edge latches under LatchLast.
func (t *Triple) Last() Field {
	return t.last
}

// Step advances one consumer tick.
func (t *Triple) Step(in Inputs) Outputs {
	t.updated = false
	t.fresh = false
	if t.updateEdge(in) {
		t.in = in.Values
		if in.Freeze {
			t.pending = true
		} else {
			t.promote(true)
		}
	} else if t.wasFrozen && !in.Freeze {
		t.promote(t.pending)
	}
	t.wasFrozen = in.Freeze
	return t.Outputs()
}

func (t *Triple) updateEdge(in Inputs) bool {
	return in.Capture && t.Edge(in.Edges)
}

// Edge reports whether the field edges announce a new triple under the
// configured policy, ignoring capture gating.
func (t *Triple) Edge(edges [NumFields]bool) bool {
	if t.policy == LatchAny {
		return edges[PulseID] || edges[Seconds] || edges[Nanoseconds]
	}
	return edges[t.last]
}

func (t *Triple) promote(fresh bool) {
	t.out = t.in
	t.pending = false
	t.updated = true
	t.fresh = fresh
}

func (t *Triple) Outputs() Outputs {
	return Outputs{Values: t.out, Updated: t.updated, Fresh: t.fresh}
}

// Pending reports an update held back by freeze.
func (t *Triple) Pending() bool {
	return t.pending
}

// Input is the most recently captured triple, frozen or not.
func (t *Triple) Input() Values {
	return t.in
}
