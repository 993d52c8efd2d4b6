// Package store implements the capacity-bounded record collections backing
// the trace API. One Store holds one record kind. When an insert would push
// occupancy past the configured capacity, the oldest records by ordering
// field are evicted first, a chunk at a time; eviction and insert commit as
// one backend batch so each call is all-or-nothing.
//
// Retention is independent per collection. The store never cascades deletes
// and never checks parent references, so a step or snapshot can outlive the
// transaction it names; readers get whatever is resident.
//
// The capacity bound is best-effort under concurrency: two racing inserts
// can both observe occupancy at capacity and both evict. No global lock is
// taken to prevent that.
//
// Keyspace (byte-wise sortable): col/{name}/e/{key16}, where key16 is a
// 16-byte timestamp+sequence key, so iteration order over the prefix equals
// insertion order. Values carry a small binary header (ordering value and
// logical id) ahead of the JSON document, letting eviction and id lookups
// scan without decoding bodies.
package store
