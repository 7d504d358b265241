package regfile

// Snapshot is the decoded register map.
type Snapshot struct {
	PulseID          uint64 `json:"pulse_id"`
	Seconds          uint32 `json:"seconds"`
	Nanoseconds      uint32 `json:"nanoseconds"`
	FreezeCount      int8   `json:"freeze_count"`
	Frozen           bool   `json:"frozen"`
	ResetCounters    bool   `json:"reset_counters"`
	TriggerOverride  bool   `json:"trigger_override"`
	SequenceErrors   uint32 `json:"sequence_errors"`
	Updates          uint32 `json:"updates"`
	WatchdogTimeouts uint32 `json:"watchdog_timeouts"`
	SyncErrors       uint32 `json:"sync_errors"`
}

func Decode(slots [NumSlots]uint64) Snapshot {
	ctl := slots[SlotControl]
	freeze := int8(uint8(ctl & FreezeMask))
	return Snapshot{
		PulseID:          slots[SlotPulseID],
		Seconds:          uint32(slots[SlotTime] >> 32),
		Nanoseconds:      uint32(slots[SlotTime]),
		FreezeCount:      freeze,
		Frozen:           freeze < 0,
		ResetCounters:    ctl&(1<<BitResetCounters) != 0,
		TriggerOverride:  ctl&(1<<BitTriggerOverride) != 0,
		SequenceErrors:   uint32(slots[SlotSeqUpdates] >> 32),
		Updates:          uint32(slots[SlotSeqUpdates]),
		WatchdogTimeouts: uint32(slots[SlotWatchdogSync] >> 32),
		SyncErrors:       uint32(slots[SlotWatchdogSync]),
	}
}

// LockWord is the control write that nests one freeze level.
func LockWord() (uint64, uint8) {
	return 1, LaneFreeze
}

// UnlockWord releases one freeze level.
func UnlockWord() (uint64, uint8) {
	return uint64(0xff), LaneFreeze
}

// ControlWord builds a control-lane write for the reset and override levels.
func ControlWord(reset, override bool) (uint64, uint8) {
	var v uint64
	if reset {
		v |= 1 << BitResetCounters
	}
	if override {
		v |= 1 << BitTriggerOverride
	}
	return v, LaneControl
}
