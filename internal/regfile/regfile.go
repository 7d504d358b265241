// Package regfile exposes the latched triple and health counters as 64-bit
// register slots.
//
// Slot map:
//
//	0  pulse id
//	1  seconds[63:32] | nanoseconds[31:0]
//	2  control: [7:0] freeze counter, [32] reset counters, [34] trigger override
//	3  sequence errors[63:32] | updates[31:0]
//	4  watchdog timeouts[63:32] | sync errors[31:0]
//
// Reads are pipelined: the data for a request presented on tick n is the
// committed state at the start of tick n and becomes visible on tick n+1.
// Writes to the control slot are byte-lane qualified. Writing v to the
// freeze lane subtracts v from the signed freeze counter; the triple is
// frozen while the counter is negative, so cooperating readers nest by
// writing +1 to lock and -1 to unlock.
package regfile

import (
	"errors"
	"fmt"

	"github.com/danmuck/evrstamp/internal/triple"
)

const (
	SlotPulseID = iota
	SlotTime
	SlotControl
	SlotSeqUpdates
	SlotWatchdogSync
	NumSlots
)

const (
	FreezeMask         uint64 = 0xff
	BitResetCounters          = 32
	BitTriggerOverride        = 34

	// LaneFreeze and LaneControl are byte-enable bits for slot 2.
	LaneFreeze  uint8 = 1 << 0
	LaneControl uint8 = 1 << 4
	LaneAll     uint8 = 0xff
)

var (
	ErrUnknownSlot = errors.New("regfile: unknown slot")
	ErrReadOnly    = errors.New("regfile: slot is read-only")
)

// CheckSlot validates a slot index for the requested access.
func CheckSlot(slot int, write bool) error {
	if slot < 0 || slot >= NumSlots {
		return fmt.Errorf("%w: %d", ErrUnknownSlot, slot)
	}
	if write && slot != SlotControl {
		return fmt.Errorf("%w: %d", ErrReadOnly, slot)
	}
	return nil
}

// Request is one bus cycle. A zero Request is idle.
type Request struct {
	Valid      bool
	Slot       int
	Write      bool
	Data       uint64
	ByteEnable uint8
}

// Response is the pipelined read data for the previous request.
type Response struct {
	Valid bool
	Slot  int
	Data  uint64
}

// Events are this tick's consumer-domain inputs.
type Events struct {
	Triple           triple.Outputs
	Updates          uint32
	SeqErrors        uint32
	SyncErrors       uint32
	WatchdogTimeouts uint32
}

type RegisterFile struct {
	freeze   int8
	reset    bool
	override bool

	updates  uint32
	seq      uint32
	sync     uint32
	watchdog uint32

	values triple.Values

	rdata Response
}

func New() *RegisterFile {
	return &RegisterFile{}
}

// Frozen reports the freeze counter sign bit.
func (r *RegisterFile) Frozen() bool {
	return r.freeze < 0
}

func (r *RegisterFile) FreezeCount() int8 {
	return r.freeze
}

func (r *RegisterFile) Override() bool {
	return r.override
}

func (r *RegisterFile) ResetAsserted() bool {
	return r.reset
}

// ReadData returns the read latched by the previous Step.
func (r *RegisterFile) ReadData() Response {
	return r.rdata
}

// Step advances one consumer tick.
func (r *RegisterFile) Step(ev Events, req Request) {
	resetting := r.reset

	r.rdata = Response{}
	if req.Valid && req.Slot >= 0 && req.Slot < NumSlots {
		r.rdata = Response{Valid: true, Slot: req.Slot, Data: r.slot(req.Slot)}
	}
	if req.Valid && req.Write && req.Slot == SlotControl {
		r.writeControl(req.Data, req.ByteEnable)
	}

	if resetting {
		r.updates, r.seq, r.sync, r.watchdog = 0, 0, 0, 0
	} else {
		r.updates += ev.Updates
		r.seq += ev.SeqErrors
		r.sync += ev.SyncErrors
		r.watchdog += ev.WatchdogTimeouts
	}
	r.values = ev.Triple.Values
}

func (r *RegisterFile) writeControl(data uint64, be uint8) {
	if be&LaneFreeze != 0 {
		r.freeze -= int8(uint8(data & FreezeMask))
	}
	if be&LaneControl != 0 {
		r.reset = data&(1<<BitResetCounters) != 0
		r.override = data&(1<<BitTriggerOverride) != 0
	}
}

func (r *RegisterFile) slot(i int) uint64 {
	switch i {
	case SlotPulseID:
		return r.values.PulseID
	case SlotTime:
		return r.values.Seconds<<32 | r.values.Nanoseconds&0xffffffff
	case SlotControl:
		v := uint64(uint8(r.freeze))
		if r.reset {
			v |= 1 << BitResetCounters
		}
		if r.override {
			v |= 1 << BitTriggerOverride
		}
		return v
	case SlotSeqUpdates:
		return uint64(r.seq)<<32 | uint64(r.updates)
	case SlotWatchdogSync:
		return uint64(r.watchdog)<<32 | uint64(r.sync)
	default:
		return 0
	}
}

// Slots returns the committed contents of every slot without a bus cycle.
func (r *RegisterFile) Slots() [NumSlots]uint64 {
	var out [NumSlots]uint64
	for i := range out {
		out[i] = r.slot(i)
	}
	return out
}
