// Package frame owns the fixed-header record used by trace and snapshot
// files.
//
// Ownership boundary:
// - header encode/decode and limits
// - meta and payload framing
//
// Payload contents belong to protocol/trace (event batches) and
// protocol/tlv (snapshot fields).
package frame
