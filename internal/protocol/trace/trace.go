// Package trace records and replays producer-domain event streams and
// register snapshots using the frame and tlv wire primitives.
//
// An event trace is a sequence of KindEvents frames. Each payload packs
// six-byte records: address (u32 big-endian), data, flags (bit 0 valid).
// Every frame carries the recording run id as meta.
package trace

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/evrstamp/internal/protocol/frame"
	"github.com/danmuck/evrstamp/internal/stream"
	"github.com/google/uuid"
)

const (
	recordLen        = 6
	flagValid   byte = 0x01
	DefaultBatch     = 4096
)

var (
	ErrBadRecordLength = errors.New("trace: payload is not a whole number of records")
	ErrUnexpectedKind  = errors.New("trace: unexpected frame kind")
	ErrBadRunID        = errors.New("trace: invalid run id meta")
	ErrMissingField    = errors.New("trace: snapshot field missing")
)

func EncodeEvents(events []stream.Event) []byte {
	buf := make([]byte, len(events)*recordLen)
	for i, ev := range events {
		rec := buf[i*recordLen : (i+1)*recordLen]
		binary.BigEndian.PutUint32(rec[0:4], ev.Address)
		rec[4] = ev.Data
		if ev.Valid {
			rec[5] = flagValid
		}
	}
	return buf
}

func DecodeEvents(payload []byte) ([]stream.Event, error) {
	if len(payload)%recordLen != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadRecordLength, len(payload))
	}
	out := make([]stream.Event, 0, len(payload)/recordLen)
	for i := 0; i < len(payload); i += recordLen {
		out = append(out, stream.Event{
			Address: binary.BigEndian.Uint32(payload[i : i+4]),
			Data:    payload[i+4],
			Valid:   payload[i+5]&flagValid != 0,
		})
	}
	return out, nil
}

// Writer batches events into frames.
type Writer struct {
	w      io.Writer
	runID  uuid.UUID
	batch  int
	seq    uint64
	buf    []stream.Event
	limits frame.Limits
}

func NewWriter(w io.Writer, runID uuid.UUID, batch int) *Writer {
	if batch <= 0 {
		batch = DefaultBatch
	}
	return &Writer{
		w:      w,
		runID:  runID,
		batch:  batch,
		buf:    make([]stream.Event, 0, batch),
		limits: frame.DefaultLimits(),
	}
}

func (t *Writer) Write(ev stream.Event) error {
	t.buf = append(t.buf, ev)
	if len(t.buf) >= t.batch {
		return t.Flush()
	}
	return nil
}

// Flush writes buffered events as one frame.
func (t *Writer) Flush() error {
	if len(t.buf) == 0 {
		return nil
	}
	f := frame.Frame{
		Header:  frame.Header{Sequence: t.seq, Kind: frame.KindEvents},
		Meta:    t.runID[:],
		Payload: EncodeEvents(t.buf),
	}
	if err := frame.WriteFrame(t.w, f, t.limits); err != nil {
		return fmt.Errorf("trace: write frame seq=%d: %w", t.seq, err)
	}
	t.seq++
	t.buf = t.buf[:0]
	return nil
}

// Reader iterates events across frames.
type Reader struct {
	r      io.Reader
	runID  uuid.UUID
	events []stream.Event
	pos    int
	limits frame.Limits
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, limits: frame.DefaultLimits()}
}

// RunID is the id of the recording, known after the first frame.
func (t *Reader) RunID() uuid.UUID {
	return t.runID
}

// Next returns io.EOF at the end of the trace.
func (t *Reader) Next() (stream.Event, error) {
	for t.pos >= len(t.events) {
		f, err := frame.ReadFrame(t.r, t.limits)
		if err != nil {
			return stream.Event{}, err
		}
		if f.Header.Kind != frame.KindEvents {
			return stream.Event{}, fmt.Errorf("%w: %d", ErrUnexpectedKind, f.Header.Kind)
		}
		if len(f.Meta) > 0 {
			id, err := uuid.FromBytes(f.Meta)
			if err != nil {
				return stream.Event{}, fmt.Errorf("%w: %v", ErrBadRunID, err)
			}
			t.runID = id
		}
		events, err := DecodeEvents(f.Payload)
		if err != nil {
			return stream.Event{}, err
		}
		t.events = events
		t.pos = 0
	}
	ev := t.events[t.pos]
	t.pos++
	return ev, nil
}

// ReadAll drains r.
func ReadAll(r io.Reader) ([]stream.Event, uuid.UUID, error) {
	tr := NewReader(r)
	out := make([]stream.Event, 0)
	for {
		ev, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return out, tr.RunID(), nil
		}
		if err != nil {
			return nil, uuid.Nil, err
		}
		out = append(out, ev)
	}
}
