package extract

import (
	"errors"
	"testing"

	"github.com/danmuck/evrstamp/internal/stream"
	"github.com/danmuck/evrstamp/internal/testutil/testlog"
)

var pulseBytes = []byte{0x01, 0xa0, 0x02, 0xb0, 0x03, 0xc0, 0x04, 0xd0}

func feed(x *Extractor, events []stream.Event) {
	for _, ev := range events {
		x.Step(ev)
	}
}

func mustNew(t *testing.T, cfg Config) *Extractor {
	t.Helper()
	x, err := New(cfg)
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	return x
}

func TestByteOrder(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		bigEndian bool
		want      uint64
	}{
		{bigEndian: true, want: 0x01a002b003c004d0},
		{bigEndian: false, want: 0xd004c003b002a001},
	}
	for _, tc := range cases {
		x := mustNew(t, Config{Offset: 4, Length: 8, BigEndian: tc.bigEndian})
		feed(x, stream.Held(4, pulseBytes, 2))
		out := x.Outputs()
		if out.Value != tc.want {
			t.Fatalf("big_endian=%v value=0x%016x want=0x%016x", tc.bigEndian, out.Value, tc.want)
		}
		if !out.UpdateToggle || out.SyncToggle || out.SeqToggle {
			t.Fatalf("big_endian=%v unexpected toggles: %+v", tc.bigEndian, out)
		}
	}
}

func TestShortFields(t *testing.T) {
	testlog.Start(t)
	x := mustNew(t, Config{Offset: 0, Length: 1})
	feed(x, []stream.Event{{Address: 0, Data: 0x5a, Valid: true}})
	if out := x.Outputs(); out.Value != 0x5a || !out.UpdateToggle {
		t.Fatalf("single byte field: %+v", out)
	}

	x = mustNew(t, Config{Offset: 2, Length: 3, BigEndian: true})
	feed(x, stream.Held(0, []byte{0xee, 0xee, 0x12, 0x34, 0x56, 0xee}, 1))
	if out := x.Outputs(); out.Value != 0x123456 {
		t.Fatalf("three byte field value=0x%x", out.Value)
	}

	if _, err := New(Config{Length: 0}); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
	if _, err := New(Config{Length: MaxLength + 1}); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
}

func TestMissingBytesRaiseSyncError(t *testing.T) {
	testlog.Start(t)
	x := mustNew(t, Config{Offset: 4, Length: 8, BigEndian: true})
	for i := 0; i < len(pulseBytes)-1; i += 2 {
		x.Step(stream.Event{Address: uint32(4 + i), Data: pulseBytes[i], Valid: true})
	}
	x.Step(stream.Event{Address: 11, Data: pulseBytes[7], Valid: true})

	out := x.Outputs()
	if !out.SyncToggle {
		t.Fatalf("expected one sync error")
	}
	if out.UpdateToggle || out.Value != 0 {
		t.Fatalf("incomplete field must not publish: %+v", out)
	}

	// the next complete frame publishes normally
	feed(x, stream.Held(4, pulseBytes, 1))
	out = x.Outputs()
	if !out.SyncToggle || !out.UpdateToggle || out.Value != 0x01a002b003c004d0 {
		t.Fatalf("recovery frame: %+v", out)
	}
}

func TestRestartedFrameRaisesSyncError(t *testing.T) {
	testlog.Start(t)
	x := mustNew(t, Config{Offset: 4, Length: 8, BigEndian: true})
	feed(x, stream.Held(4, pulseBytes[:4], 1))
	feed(x, stream.Held(4, pulseBytes, 1))

	out := x.Outputs()
	if !out.SyncToggle {
		t.Fatalf("expected sync error on restarted frame")
	}
	if !out.UpdateToggle || out.Value != 0x01a002b003c004d0 {
		t.Fatalf("restarted frame should still publish: %+v", out)
	}
}

func TestDuplicatesAndInvalidIgnored(t *testing.T) {
	testlog.Start(t)
	x := mustNew(t, Config{Offset: 4, Length: 2, BigEndian: true})
	x.Step(stream.Event{Address: 4, Data: 0x12, Valid: true})
	x.Step(stream.Event{Address: 4, Data: 0x99, Valid: true})
	x.Step(stream.Event{Address: 5, Data: 0x77, Valid: false})
	x.Step(stream.Event{Address: 5, Data: 0x34, Valid: true})
	x.Step(stream.Event{Address: 5, Data: 0x56, Valid: true})

	out := x.Outputs()
	if out.Value != 0x1234 || out.SyncToggle {
		t.Fatalf("duplicate handling: %+v", out)
	}
	if !out.UpdateToggle {
		t.Fatalf("expected exactly one update")
	}
}

func frameFor(v uint64) []stream.Event {
	b := make([]byte, 2)
	b[0] = byte(v >> 8)
	b[1] = byte(v)
	return stream.Held(0, b, 1)
}

func TestSequenceCheck(t *testing.T) {
	testlog.Start(t)
	x := mustNew(t, Config{Offset: 0, Length: 2, BigEndian: true, SequenceCheck: true})

	seqErrors := 0
	updates := 0
	prev := x.Outputs()
	for _, v := range []uint64{7, 8, 9, 11, 12, 0xffff, 0, 0} {
		feed(x, frameFor(v))
		out := x.Outputs()
		if out.SeqToggle != prev.SeqToggle {
			seqErrors++
		}
		if out.UpdateToggle != prev.UpdateToggle {
			updates++
		}
		prev = out
	}
	// 9->11, 12->0xffff, 0->0
	if seqErrors != 3 {
		t.Fatalf("sequence errors=%d want=3", seqErrors)
	}
	if updates != 8 {
		t.Fatalf("updates=%d want=8", updates)
	}

	nocheck := mustNew(t, Config{Offset: 0, Length: 2, BigEndian: true})
	feed(nocheck, frameFor(1))
	feed(nocheck, frameFor(5))
	if nocheck.Outputs().SeqToggle {
		t.Fatalf("sequence error raised with check disabled")
	}
}
