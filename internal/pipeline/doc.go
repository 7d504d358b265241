// Package pipeline wires the stream, the three field extractors, the domain
// crossing, the atomic triple, and the register file onto one two-domain
// clock.
//
// Ownership boundary:
// - producer domain: source sampling and extractor steps
// - consumer domain: synchronisers, watchdogs, triple latch, register file
// - software access: the register Bus, one request per consumer tick
//
// Lifecycle order:
// - New -> Step/RunTicks (deterministic) or Run (paced, until ctx done)
//
// - Run closes the Bus on exit; later bus calls fail with ErrBusClosed.
package pipeline
