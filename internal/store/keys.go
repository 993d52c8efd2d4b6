package store

import (
	"github.com/nigoertz/demo-cosmos-api/pkg/id"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - col/{collection}/e/{key16}

var (
	colPrefix = []byte("col/")
	entrySeg  = []byte("/e/")
)

// keyEntry builds the key for one record of a collection.
func keyEntry(collection string, k id.Key) []byte {
	out := make([]byte, 0, len(colPrefix)+len(collection)+len(entrySeg)+id.Size)
	out = append(out, colPrefix...)
	out = append(out, collection...)
	out = append(out, entrySeg...)
	out = append(out, k[:]...)
	return out
}

// keyEntryPrefix returns the common prefix of all entry keys of a collection.
func keyEntryPrefix(collection string) []byte {
	out := make([]byte, 0, len(colPrefix)+len(collection)+len(entrySeg))
	out = append(out, colPrefix...)
	out = append(out, collection...)
	out = append(out, entrySeg...)
	return out
}

// prefixEnd returns the smallest key greater than every key with the given
// prefix, for use as an iterator upper bound.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
