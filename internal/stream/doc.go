// Package stream owns the producer-domain event contract.
//
// Ownership boundary:
// - address-tagged byte events, one per producer tick
// - sources that synthesise, replay, or tee event streams
//
// A source never blocks; it yields exactly one Event per call, idle ticks
// carrying Valid=false.
package stream
