// Package crossing carries toggle-coded events from a producer clock domain
// into a consumer clock domain.
//
// The producer flips a bit once per event. The consumer samples that bit once
// per tick through a chain of synchronisation stages and reports an edge
// whenever two consecutive delayed samples differ. Each toggle therefore
// yields exactly one edge, SyncStages+1 consumer ticks after the first tick
// that can observe it, as long as the producer does not toggle twice within
// one consumer tick.
//
// Zero stages compares the live source bit against the previous sample. That
// is only sound when both sides share one clock and has to be requested via
// Config.SameClockDomainUnsafe.
package crossing
