package extract

import (
	"errors"
	"fmt"

	"github.com/danmuck/evrstamp/internal/stream"
)

// MaxLength is the widest field an Extractor can assemble.
const MaxLength = 8

var ErrInvalidLength = errors.New("extract: invalid field length")

// Config is fixed at construction time.
type Config struct {
	Offset    uint32
	Length    int
	BigEndian bool
	// SequenceCheck flags captures that do not follow the previous value by one.
	SequenceCheck bool
}

func (c Config) Validate() error {
	if c.Length < 1 || c.Length > MaxLength {
		return fmt.Errorf("%w: %d (want 1..%d)", ErrInvalidLength, c.Length, MaxLength)
	}
	return nil
}

// Last is the address of the terminal byte.
func (c Config) Last() uint32 {
	return c.Offset + uint32(c.Length) - 1
}

// Outputs is the producer-domain register set an Extractor publishes.
// Toggles flip once per occurrence; Value only changes together with
// UpdateToggle.
type Outputs struct {
	Value        uint64
	UpdateToggle bool
	SeqToggle    bool
	SyncToggle   bool
}

// Extractor owns the decode state for one field.
type Extractor struct {
	cfg Config

	buf      [MaxLength - 1]byte
	seen     uint8
	complete uint8

	lastAddr uint32
	haveAddr bool

	haveValue bool
	out       Outputs
}

func New(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{
		cfg:      cfg,
		complete: uint8(1<<uint(cfg.Length-1)) - 1,
	}, nil
}

func (x *Extractor) Config() Config {
	return x.cfg
}

// Outputs returns the current producer-domain registers.
func (x *Extractor) Outputs() Outputs {
	return x.out
}

// Step consumes one producer tick.
func (x *Extractor) Step(ev stream.Event) {
	if !ev.Valid {
		return
	}
	if x.haveAddr && ev.Address == x.lastAddr {
		return
	}
	x.lastAddr = ev.Address
	x.haveAddr = true

	rel := int64(ev.Address) - int64(x.cfg.Offset)
	last := int64(x.cfg.Length - 1)
	if rel < 0 || rel > last {
		return
	}
	if rel < last {
		x.store(int(rel), ev.Data)
		return
	}
	x.finish(ev.Data)
}

// store places a non-terminal byte. A position that is already filled means
// the frame restarted: the partial field is dropped, a sync error is
// flagged, and the byte opens the next attempt.
func (x *Extractor) store(rel int, b byte) {
	pos := rel
	if x.cfg.BigEndian {
		pos = x.cfg.Length - 2 - rel
	}
	bit := uint8(1) << uint(pos)
	if x.seen&bit != 0 {
		x.seen = 0
		x.out.SyncToggle = !x.out.SyncToggle
	}
	x.buf[pos] = b
	x.seen |= bit
}

func (x *Extractor) finish(b byte) {
	if x.seen != x.complete {
		x.seen = 0
		x.out.SyncToggle = !x.out.SyncToggle
		return
	}
	x.seen = 0

	v := x.assemble(b)
	if x.cfg.SequenceCheck && x.haveValue && (x.out.Value+1)&x.mask() != v {
		x.out.SeqToggle = !x.out.SeqToggle
	}
	x.out.Value = v
	x.haveValue = true
	x.out.UpdateToggle = !x.out.UpdateToggle
}

func (x *Extractor) mask() uint64 {
	if x.cfg.Length >= MaxLength {
		return ^uint64(0)
	}
	return uint64(1)<<uint(8*x.cfg.Length) - 1
}

// assemble combines the stored bytes with the terminal byte. Position i of
// the buffer lands in byte lane i for little-endian fields; for big-endian
// fields the terminal byte is the least significant and position i sits in
// lane i+1.
func (x *Extractor) assemble(final byte) uint64 {
	n := x.cfg.Length - 1
	var v uint64
	if x.cfg.BigEndian {
		v = uint64(final)
		for i := 0; i < n; i++ {
			v |= uint64(x.buf[i]) << uint(8*(i+1))
		}
		return v
	}
	for i := 0; i < n; i++ {
		v |= uint64(x.buf[i]) << uint(8*i)
	}
	return v | uint64(final)<<uint(8*n)
}
