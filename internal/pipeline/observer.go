package pipeline

import (
	"github.com/danmuck/evrstamp/internal/triple"
	"github.com/rs/zerolog"
)

// EventKind classifies per-field health events.
type EventKind int

const (
	EventUpdate EventKind = iota
	EventSequenceError
	EventSyncError
	EventWatchdogTimeout
	NumEventKinds
)

func (k EventKind) String() string {
	switch k {
	case EventUpdate:
		return "update"
	case EventSequenceError:
		return "sequence_error"
	case EventSyncError:
		return "sync_error"
	case EventWatchdogTimeout:
		return "watchdog_timeout"
	default:
		return "unknown"
	}
}

// Observer receives consumer-domain events. Calls happen on the stepping
// goroutine and must not block.
type Observer interface {
	FieldEvent(field triple.Field, kind EventKind)
	TripleUpdated(v triple.Values)
	FreezeChanged(count int8)
}

// LogObserver reports health events through a sampled logger.
type LogObserver struct {
	logger zerolog.Logger
}

// NewLogObserver samples at most burst health events per period window.
func NewLogObserver(logger zerolog.Logger, sampler zerolog.Sampler) *LogObserver {
	if sampler != nil {
		logger = logger.Sample(sampler)
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) FieldEvent(field triple.Field, kind EventKind) {
	if kind == EventUpdate {
		return
	}
	o.logger.Debug().
		Str("field", field.String()).
		Str("event", kind.String()).
		Msg("field health event")
}

func (o *LogObserver) TripleUpdated(triple.Values) {}

func (o *LogObserver) FreezeChanged(count int8) {
	o.logger.Debug().Int8("freeze_count", count).Bool("frozen", count < 0).Msg("freeze counter changed")
}
