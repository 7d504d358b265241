package regfile

import (
	"errors"
	"testing"

	"github.com/danmuck/evrstamp/internal/testutil/testlog"
	"github.com/danmuck/evrstamp/internal/triple"
)

func withValues(v triple.Values) Events {
	return Events{Triple: triple.Outputs{Values: v}}
}

func write(r *RegisterFile, ev Events, data uint64, be uint8) {
	r.Step(ev, Request{Valid: true, Slot: SlotControl, Write: true, Data: data, ByteEnable: be})
}

func TestReadIsPipelined(t *testing.T) {
	testlog.Start(t)
	r := New()
	a := triple.Values{PulseID: 0x01a002b003c004d0, Seconds: 1, Nanoseconds: 2}
	b := triple.Values{PulseID: 7}

	r.Step(withValues(a), Request{})
	if got := r.ReadData(); got.Valid {
		t.Fatalf("idle cycle produced read data: %+v", got)
	}

	r.Step(withValues(b), Request{Valid: true, Slot: SlotPulseID})
	got := r.ReadData()
	if !got.Valid || got.Slot != SlotPulseID || got.Data != a.PulseID {
		t.Fatalf("read returned %+v, want committed pulse id 0x%x", got, a.PulseID)
	}
	if r.Slots()[SlotPulseID] != b.PulseID {
		t.Fatalf("new value not committed after step")
	}

	r.Step(withValues(b), Request{})
	if r.ReadData().Valid {
		t.Fatalf("read data should last one cycle")
	}
}

func TestTimeSlotPacking(t *testing.T) {
	testlog.Start(t)
	r := New()
	r.Step(withValues(triple.Values{Seconds: 0x11223344, Nanoseconds: 0x1_55667788}), Request{})
	if got := r.Slots()[SlotTime]; got != 0x1122334455667788 {
		t.Fatalf("slot 1=0x%016x", got)
	}
}

func TestWriteReturnsPreWriteValue(t *testing.T) {
	testlog.Start(t)
	r := New()
	data, be := LockWord()
	write(r, Events{}, data, be)
	if got := r.ReadData(); !got.Valid || got.Data != 0 {
		t.Fatalf("write read back %+v, want pre-write 0", got)
	}
	if r.Slots()[SlotControl] != 0xff || !r.Frozen() {
		t.Fatalf("lock not applied: control=0x%x", r.Slots()[SlotControl])
	}
	write(r, Events{}, data, be)
	if got := r.ReadData(); got.Data != 0xff {
		t.Fatalf("second lock read back 0x%x want 0xff", got.Data)
	}
}

func TestFreezeNesting(t *testing.T) {
	testlog.Start(t)
	r := New()
	lock, lockBE := LockWord()
	unlock, unlockBE := UnlockWord()

	write(r, Events{}, lock, lockBE)
	write(r, Events{}, lock, lockBE)
	if r.FreezeCount() != -2 || !r.Frozen() {
		t.Fatalf("two locks: count=%d", r.FreezeCount())
	}
	write(r, Events{}, unlock, unlockBE)
	if r.FreezeCount() != -1 || !r.Frozen() {
		t.Fatalf("one unlock of two: count=%d", r.FreezeCount())
	}
	write(r, Events{}, unlock, unlockBE)
	if r.FreezeCount() != 0 || r.Frozen() {
		t.Fatalf("balanced: count=%d", r.FreezeCount())
	}
	if snap := Decode(r.Slots()); snap.Frozen || snap.FreezeCount != 0 {
		t.Fatalf("decoded control: %+v", snap)
	}
}

func TestByteEnables(t *testing.T) {
	testlog.Start(t)
	r := New()
	all := uint64(1)<<BitTriggerOverride | uint64(1)<<BitResetCounters | 0x01

	write(r, Events{}, all, LaneFreeze)
	if r.FreezeCount() != -1 || r.Override() || r.ResetAsserted() {
		t.Fatalf("freeze lane leaked into control: freeze=%d override=%v reset=%v", r.FreezeCount(), r.Override(), r.ResetAsserted())
	}

	data, be := ControlWord(false, true)
	write(r, Events{}, data|0x01, be)
	if r.FreezeCount() != -1 || !r.Override() || r.ResetAsserted() {
		t.Fatalf("control lane touched freeze: freeze=%d override=%v", r.FreezeCount(), r.Override())
	}

	write(r, Events{}, 0, 0)
	if r.FreezeCount() != -1 || !r.Override() {
		t.Fatalf("zero byte enable changed state")
	}
	r.Step(Events{}, Request{Valid: true, Slot: SlotPulseID, Write: true, Data: 5, ByteEnable: LaneAll})
	if r.Slots()[SlotPulseID] != 0 {
		t.Fatalf("write to read-only slot applied")
	}
}

func TestCountersAndResetLevel(t *testing.T) {
	testlog.Start(t)
	r := New()
	ev := Events{Updates: 1, SeqErrors: 2, SyncErrors: 3, WatchdogTimeouts: 4}

	r.Step(ev, Request{})
	r.Step(ev, Request{})
	snap := Decode(r.Slots())
	if snap.Updates != 2 || snap.SequenceErrors != 4 || snap.SyncErrors != 6 || snap.WatchdogTimeouts != 8 {
		t.Fatalf("counters: %+v", snap)
	}

	// the write tick still counts; reset takes effect from the next tick
	set, be := ControlWord(true, false)
	write(r, ev, set, be)
	if got := Decode(r.Slots()).Updates; got != 3 {
		t.Fatalf("updates on assert tick=%d want=3", got)
	}
	for i := 0; i < 3; i++ {
		r.Step(ev, Request{})
		if snap := Decode(r.Slots()); snap.Updates != 0 || snap.SyncErrors != 0 || !snap.ResetCounters {
			t.Fatalf("counters while reset held: %+v", snap)
		}
	}

	release, be := ControlWord(false, false)
	write(r, ev, release, be)
	if got := Decode(r.Slots()).Updates; got != 0 {
		t.Fatalf("updates on release tick=%d want=0", got)
	}
	r.Step(ev, Request{})
	if got := Decode(r.Slots()).Updates; got != 1 {
		t.Fatalf("updates after release=%d want=1", got)
	}
}

func TestCheckSlot(t *testing.T) {
	testlog.Start(t)
	if err := CheckSlot(NumSlots, false); !errors.Is(err, ErrUnknownSlot) {
		t.Fatalf("expected ErrUnknownSlot, got %v", err)
	}
	if err := CheckSlot(-1, false); !errors.Is(err, ErrUnknownSlot) {
		t.Fatalf("expected ErrUnknownSlot, got %v", err)
	}
	if err := CheckSlot(SlotSeqUpdates, true); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if err := CheckSlot(SlotControl, true); err != nil {
		t.Fatalf("control slot write rejected: %v", err)
	}
}
