package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	Magic          uint32 = 0x45565254 // "EVRT"
	Version        uint16 = 1
	FixedHeaderLen uint16 = 32

	FlagHasMeta uint32 = 0x01
	FlagLast    uint32 = 0x02
)

// Frame kinds.
const (
	KindEvents   uint32 = 1
	KindSnapshot uint32 = 2
)

var (
	ErrShortHeader        = errors.New("frame: short fixed header")
	ErrInvalidMagic       = errors.New("frame: invalid magic")
	ErrUnsupportedVersion = errors.New("frame: unsupported version")
	ErrHeaderLenTooSmall  = errors.New("frame: header_len smaller than fixed header")
	ErrHeaderLenMismatch  = errors.New("frame: meta flag set but header_len has no meta bytes")
	ErrPayloadTooLarge    = errors.New("frame: payload too large")
	ErrMetaTooLarge       = errors.New("frame: meta too large")
	ErrTruncated          = errors.New("frame: truncated body")
)

// Header is the fixed wire header.
type Header struct {
	Magic      uint32
	Version    uint16
	HeaderLen  uint16
	Sequence   uint64
	Kind       uint32
	Flags      uint32
	PayloadLen uint64
}

// Frame is one record of a trace or snapshot stream. Meta carries
// per-stream identity (the run id) and rides between header and payload.
type Frame struct {
	Header  Header
	Meta    []byte
	Payload []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxMetaBytes    uint64
	MaxPayloadBytes uint64
}

func DefaultLimits() Limits {
	return Limits{
		MaxMetaBytes:    1024,
		MaxPayloadBytes: 4 * 1024 * 1024,
	}
}

// ReadFrame reads one frame. A clean end of stream before any header byte
// returns io.EOF.
func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var fixed [FixedHeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrShortHeader
		}
		return Frame{}, err
	}

	h, err := DecodeHeader(fixed[:])
	if err != nil {
		return Frame{}, err
	}
	if h.Magic != Magic {
		return Frame{}, fmt.Errorf("%w: 0x%08x", ErrInvalidMagic, h.Magic)
	}
	if h.Version != Version {
		return Frame{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if h.HeaderLen < FixedHeaderLen {
		return Frame{}, ErrHeaderLenTooSmall
	}

	metaLen := uint64(h.HeaderLen - FixedHeaderLen)
	if h.Flags&FlagHasMeta != 0 && metaLen == 0 {
		return Frame{}, ErrHeaderLenMismatch
	}
	if metaLen > limits.MaxMetaBytes {
		return Frame{}, ErrMetaTooLarge
	}
	if h.PayloadLen > limits.MaxPayloadBytes {
		return Frame{}, ErrPayloadTooLarge
	}

	meta := make([]byte, metaLen)
	if metaLen > 0 {
		if _, err := io.ReadFull(r, meta); err != nil {
			return Frame{}, ErrTruncated
		}
	}

	payload := make([]byte, h.PayloadLen)
	if h.PayloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, ErrTruncated
		}
	}

	return Frame{Header: h, Meta: meta, Payload: payload}, nil
}

// WriteFrame stamps magic, version, and lengths before writing.
func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	metaLen := uint64(len(f.Meta))
	payloadLen := uint64(len(f.Payload))
	if metaLen > limits.MaxMetaBytes || metaLen > uint64(^uint16(0)-FixedHeaderLen) {
		return ErrMetaTooLarge
	}
	if payloadLen > limits.MaxPayloadBytes {
		return ErrPayloadTooLarge
	}

	h := f.Header
	h.Magic = Magic
	h.Version = Version
	h.HeaderLen = FixedHeaderLen + uint16(metaLen)
	h.PayloadLen = payloadLen
	if metaLen > 0 {
		h.Flags |= FlagHasMeta
	} else {
		h.Flags &^= FlagHasMeta
	}

	if _, err := w.Write(EncodeHeader(h)); err != nil {
		return err
	}
	if metaLen > 0 {
		if _, err := w.Write(f.Meta); err != nil {
			return err
		}
	}
	if payloadLen > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return err
		}
	}
	return nil
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, FixedHeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	binary.BigEndian.PutUint16(buf[4:6], h.Version)
	binary.BigEndian.PutUint16(buf[6:8], h.HeaderLen)
	binary.BigEndian.PutUint64(buf[8:16], h.Sequence)
	binary.BigEndian.PutUint32(buf[16:20], h.Kind)
	binary.BigEndian.PutUint32(buf[20:24], h.Flags)
	binary.BigEndian.PutUint64(buf[24:32], h.PayloadLen)
	return buf
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) != int(FixedHeaderLen) {
		return Header{}, fmt.Errorf("frame: invalid fixed header length: %d", len(b))
	}
	return Header{
		Magic:      binary.BigEndian.Uint32(b[0:4]),
		Version:    binary.BigEndian.Uint16(b[4:6]),
		HeaderLen:  binary.BigEndian.Uint16(b[6:8]),
		Sequence:   binary.BigEndian.Uint64(b[8:16]),
		Kind:       binary.BigEndian.Uint32(b[16:20]),
		Flags:      binary.BigEndian.Uint32(b[20:24]),
		PayloadLen: binary.BigEndian.Uint64(b[24:32]),
	}, nil
}
