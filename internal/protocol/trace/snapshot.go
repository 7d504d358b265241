package trace

import (
	"fmt"
	"io"

	"github.com/danmuck/evrstamp/internal/protocol/frame"
	"github.com/danmuck/evrstamp/internal/protocol/tlv"
	"github.com/danmuck/evrstamp/internal/regfile"
	"github.com/google/uuid"
)

// Snapshot field ids; ids below NumSlots are register slots.
const (
	FieldConsumerTick uint16 = 100
	FieldName         uint16 = 101
)

// SnapshotRecord is one register dump.
type SnapshotRecord struct {
	RunID        uuid.UUID
	Name         string
	ConsumerTick uint64
	Slots        [regfile.NumSlots]uint64
}

func EncodeSnapshot(rec SnapshotRecord) frame.Frame {
	fields := make([]tlv.Field, 0, regfile.NumSlots+2)
	for i, v := range rec.Slots {
		fields = append(fields, tlv.U64Field(uint16(i), v))
	}
	fields = append(fields,
		tlv.U64Field(FieldConsumerTick, rec.ConsumerTick),
		tlv.StringField(FieldName, rec.Name),
	)
	return frame.Frame{
		Header:  frame.Header{Sequence: rec.ConsumerTick, Kind: frame.KindSnapshot, Flags: frame.FlagLast},
		Meta:    rec.RunID[:],
		Payload: tlv.EncodeFields(fields),
	}
}

func DecodeSnapshot(f frame.Frame) (SnapshotRecord, error) {
	if f.Header.Kind != frame.KindSnapshot {
		return SnapshotRecord{}, fmt.Errorf("%w: %d", ErrUnexpectedKind, f.Header.Kind)
	}
	var rec SnapshotRecord
	if len(f.Meta) > 0 {
		id, err := uuid.FromBytes(f.Meta)
		if err != nil {
			return SnapshotRecord{}, fmt.Errorf("%w: %v", ErrBadRunID, err)
		}
		rec.RunID = id
	}
	fields, err := tlv.DecodeFields(f.Payload)
	if err != nil {
		return SnapshotRecord{}, err
	}
	for i := range rec.Slots {
		v, err := u64Field(fields, uint16(i))
		if err != nil {
			return SnapshotRecord{}, err
		}
		rec.Slots[i] = v
	}
	if rec.ConsumerTick, err = u64Field(fields, FieldConsumerTick); err != nil {
		return SnapshotRecord{}, err
	}
	if fld, ok := tlv.GetField(fields, FieldName); ok {
		if err := tlv.MustType(fld, tlv.TypeString); err != nil {
			return SnapshotRecord{}, err
		}
		rec.Name = string(fld.Value)
	}
	return rec, nil
}

func u64Field(fields []tlv.Field, id uint16) (uint64, error) {
	fld, ok := tlv.GetField(fields, id)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrMissingField, id)
	}
	return fld.U64()
}

func WriteSnapshot(w io.Writer, rec SnapshotRecord) error {
	return frame.WriteFrame(w, EncodeSnapshot(rec), frame.DefaultLimits())
}

func ReadSnapshot(r io.Reader) (SnapshotRecord, error) {
	f, err := frame.ReadFrame(r, frame.DefaultLimits())
	if err != nil {
		return SnapshotRecord{}, err
	}
	return DecodeSnapshot(f)
}
