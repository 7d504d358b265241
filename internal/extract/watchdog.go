package extract

// Watchdog counts consumer ticks since the last captured value. A zero
// period disables it.
type Watchdog struct {
	period uint32
	remain uint32
}

func NewWatchdog(period uint32) *Watchdog {
	w := &Watchdog{period: period}
	w.rearm()
	return w
}

func (w *Watchdog) Enabled() bool {
	return w.period > 0
}

func (w *Watchdog) Period() uint32 {
	return w.period
}

// Step advances one consumer tick and reports a timeout. A captured value
// rearms the countdown; starving for period ticks fires once and rearms.
func (w *Watchdog) Step(captured bool) bool {
	if w.period == 0 {
		return false
	}
	if captured {
		w.rearm()
		return false
	}
	if w.remain == 0 {
		w.rearm()
		return true
	}
	w.remain--
	return false
}

func (w *Watchdog) rearm() {
	if w.period > 0 {
		w.remain = w.period - 1
	}
}
