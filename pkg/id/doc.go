// Package id generates 128-bit, byte-wise sortable record keys.
//
// A Key is 16 bytes big-endian: 8 bytes of millisecond timestamp followed
// by 8 bytes of per-process sequence. Byte comparison therefore preserves
// generation order, which lets a store use Keys directly as suffixes in an
// ordered keyspace: iterating key-ascending is iterating oldest-first.
//
// The Generator is safe for concurrent use. It pins to the last observed
// millisecond if the clock regresses and rolls over to the next millisecond
// if the sequence would overflow, so Keys from one process never repeat or
// sort out of generation order.
package id
