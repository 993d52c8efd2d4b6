// Package pebblestore wraps a Pebble database as the process-wide trace
// backend. It owns the fsync policy and exposes the small surface the
// collection stores need: point get/set/delete, atomic batches and ordered
// iterators. The handle is constructed once at startup and passed by
// reference; tests open one against t.TempDir.
package pebblestore
