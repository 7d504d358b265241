// Package extract reassembles multi-byte fields from an address-tagged byte
// stream.
//
// An Extractor is stepped once per producer tick. It never fails: corrupted
// or incomplete frames are reported by flipping toggle bits (see Outputs)
// which the crossing package turns into one-shot edges in the consumer
// domain. The Watchdog lives on the consumer side and counts ticks without
// a captured value.
package extract
