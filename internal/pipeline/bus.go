package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/danmuck/evrstamp/internal/regfile"
)

var ErrBusClosed = errors.New("pipeline: register bus closed")

type busCall struct {
	req  regfile.Request
	done chan regfile.Response
}

// Bus is the software port onto the register file. It is safe for
// concurrent use; the consumer domain accepts one request per tick and
// answers it on the following tick.
type Bus struct {
	calls  chan *busCall
	closed chan struct{}
	once   sync.Once

	inflight *busCall
}

func newBus() *Bus {
	return &Bus{
		calls:  make(chan *busCall),
		closed: make(chan struct{}),
	}
}

// Close fails pending and future calls.
func (b *Bus) Close() {
	b.once.Do(func() { close(b.closed) })
}

// Read returns the committed contents of slot.
func (b *Bus) Read(ctx context.Context, slot int) (uint64, error) {
	if err := regfile.CheckSlot(slot, false); err != nil {
		return 0, err
	}
	return b.do(ctx, regfile.Request{Valid: true, Slot: slot})
}

// Write applies data under the byte enables and returns the slot contents
// as they were before the write.
func (b *Bus) Write(ctx context.Context, slot int, data uint64, byteEnable uint8) (uint64, error) {
	if err := regfile.CheckSlot(slot, true); err != nil {
		return 0, err
	}
	return b.do(ctx, regfile.Request{Valid: true, Slot: slot, Write: true, Data: data, ByteEnable: byteEnable})
}

// Lock nests one freeze level.
func (b *Bus) Lock(ctx context.Context) error {
	data, be := regfile.LockWord()
	_, err := b.Write(ctx, regfile.SlotControl, data, be)
	return err
}

// Unlock releases one freeze level.
func (b *Bus) Unlock(ctx context.Context) error {
	data, be := regfile.UnlockWord()
	_, err := b.Write(ctx, regfile.SlotControl, data, be)
	return err
}

// ReadTriple reads slots 0 and 1 under a freeze lock so both come from the
// same latch.
func (b *Bus) ReadTriple(ctx context.Context) (regfile.Snapshot, error) {
	var slots [regfile.NumSlots]uint64
	if err := b.readLocked(ctx, &slots); err != nil {
		return regfile.Snapshot{}, err
	}
	return regfile.Decode(slots), nil
}

// ReadSlots reads every slot. The triple is read under a freeze lock; the
// control and counter slots are read after the lock is released so the
// freeze count does not include this reader.
func (b *Bus) ReadSlots(ctx context.Context) ([regfile.NumSlots]uint64, error) {
	var slots [regfile.NumSlots]uint64
	if err := b.readLocked(ctx, &slots); err != nil {
		return slots, err
	}
	for _, slot := range []int{regfile.SlotControl, regfile.SlotSeqUpdates, regfile.SlotWatchdogSync} {
		v, err := b.Read(ctx, slot)
		if err != nil {
			return slots, err
		}
		slots[slot] = v
	}
	return slots, nil
}

func (b *Bus) readLocked(ctx context.Context, slots *[regfile.NumSlots]uint64) error {
	if err := b.Lock(ctx); err != nil {
		return err
	}
	var readErr error
	for _, slot := range []int{regfile.SlotPulseID, regfile.SlotTime} {
		v, err := b.Read(ctx, slot)
		if err != nil {
			readErr = err
			break
		}
		slots[slot] = v
	}
	if err := b.Unlock(context.WithoutCancel(ctx)); err != nil && readErr == nil {
		readErr = err
	}
	return readErr
}

func (b *Bus) do(ctx context.Context, req regfile.Request) (uint64, error) {
	call := &busCall{req: req, done: make(chan regfile.Response, 1)}
	select {
	case b.calls <- call:
	case <-b.closed:
		return 0, ErrBusClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	// An accepted request has already been applied; wait for its response
	// even if ctx ends so a lock is never applied without being reported.
	select {
	case resp := <-call.done:
		return resp.Data, nil
	case <-b.closed:
		return 0, ErrBusClosed
	}
}

// serve runs on the consumer domain: it answers the request accepted on the
// previous tick with resp and accepts at most one new request.
func (b *Bus) serve(resp regfile.Response) regfile.Request {
	if b.inflight != nil {
		b.inflight.done <- resp
		b.inflight = nil
	}
	select {
	case call := <-b.calls:
		b.inflight = call
		return call.req
	default:
		return regfile.Request{}
	}
}
