// Package record defines the four trace record kinds and their wire shapes:
// transactions, steps, snapshots and logs. Field names follow the pipeline's
// emitter format (including the underscore-prefixed message fields), so a
// stored document round-trips byte-identical through the API.
//
// Records are validated once at the transport boundary; past that point the
// stores deal in plain documents (map[string]any) and enforce nothing about
// shape. Parent references (Step.Transaction, Snapshot.Transaction) are weak:
// the referenced transaction may have been evicted, and no code here or
// downstream treats that as an error.
package record
