package frame

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/danmuck/evrstamp/internal/protocol/tlv"
	"github.com/danmuck/evrstamp/internal/testutil/testlog"
)

func TestReadWriteFrameRoundTrip(t *testing.T) {
	testlog.Start(t)
	payload := tlv.EncodeFields([]tlv.Field{tlv.U64Field(3, 0x01a002b003c004d0)})
	in := Frame{
		Header:  Header{Sequence: 42, Kind: KindSnapshot, Flags: FlagLast},
		Meta:    []byte("run-a"),
		Payload: payload,
	}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, in, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	out, err := ReadFrame(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if out.Header.Magic != Magic || out.Header.Kind != KindSnapshot || out.Header.Sequence != 42 {
		t.Fatalf("header mismatch: got=%+v", out.Header)
	}
	if out.Header.Flags&FlagHasMeta == 0 || out.Header.Flags&FlagLast == 0 {
		t.Fatalf("flags not preserved: 0x%x", out.Header.Flags)
	}
	if string(out.Meta) != "run-a" {
		t.Fatalf("meta mismatch: %q", string(out.Meta))
	}
	if !bytes.Equal(out.Payload, payload) {
		t.Fatalf("payload mismatch")
	}
	if _, err := ReadFrame(&buf, DefaultLimits()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after last frame, got %v", err)
	}
}

func TestReadFrameMalformedHeaderIsDeterministic(t *testing.T) {
	testlog.Start(t)
	_, err := ReadFrame(bytes.NewReader([]byte{1, 2, 3}), DefaultLimits())
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestReadFrameRejectsForeignMagic(t *testing.T) {
	testlog.Start(t)
	buf := EncodeHeader(Header{Magic: 0xEDCE1001, Version: Version, HeaderLen: FixedHeaderLen})
	_, err := ReadFrame(bytes.NewReader(buf), DefaultLimits())
	if !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestReadFrameHeaderLenTooSmall(t *testing.T) {
	testlog.Start(t)
	buf := EncodeHeader(Header{Magic: Magic, Version: Version, HeaderLen: 8, Kind: KindEvents})
	_, err := ReadFrame(bytes.NewReader(buf), DefaultLimits())
	if !errors.Is(err, ErrHeaderLenTooSmall) {
		t.Fatalf("expected ErrHeaderLenTooSmall, got %v", err)
	}
}

func TestReadFrameMetaFlagWithoutMetaBytes(t *testing.T) {
	testlog.Start(t)
	buf := EncodeHeader(Header{Magic: Magic, Version: Version, HeaderLen: FixedHeaderLen, Kind: KindEvents, Flags: FlagHasMeta})
	_, err := ReadFrame(bytes.NewReader(buf), DefaultLimits())
	if !errors.Is(err, ErrHeaderLenMismatch) {
		t.Fatalf("expected ErrHeaderLenMismatch, got %v", err)
	}
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	testlog.Start(t)
	buf := EncodeHeader(Header{Magic: Magic, Version: Version, HeaderLen: FixedHeaderLen, Kind: KindEvents, PayloadLen: 12})
	buf = append(buf, 1, 2, 3)
	_, err := ReadFrame(bytes.NewReader(buf), DefaultLimits())
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestWriteFrameEnforcesPayloadLimit(t *testing.T) {
	testlog.Start(t)
	limits := Limits{MaxMetaBytes: 16, MaxPayloadBytes: 4}
	err := WriteFrame(io.Discard, Frame{Header: Header{Kind: KindEvents}, Payload: make([]byte, 5)}, limits)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}
