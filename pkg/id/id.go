package id

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"
	"time"
)

// Size is the length of a Key in bytes.
const Size = 16

// Key is a 16-byte big-endian [ms_timestamp|sequence] identifier.
// Keys compare byte-wise in generation order.
type Key [Size]byte

// Bytes returns a copy of the raw 16-byte representation.
func (k Key) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, k[:])
	return b
}

// String returns the lowercase hex form.
func (k Key) String() string { return hex.EncodeToString(k[:]) }

// Compare returns -1, 0 or 1 ordering k against other byte-wise.
func (k Key) Compare(other Key) int {
	for i := 0; i < Size; i++ {
		switch {
		case k[i] < other[i]:
			return -1
		case k[i] > other[i]:
			return 1
		}
	}
	return 0
}

// NowMs reports the current wall clock in Unix milliseconds. Overridable in tests.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// Generator hands out strictly increasing Keys for one process.
type Generator struct {
	mu     sync.Mutex
	lastMs int64
	seq    uint64
}

// NewGenerator returns a ready Generator.
func NewGenerator() *Generator { return &Generator{} }

// Next returns the next Key. A regressing clock is pinned to the last seen
// millisecond; sequence exhaustion within one millisecond waits for the next.
func (g *Generator) Next() Key {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := NowMs()
	if ms < g.lastMs {
		ms = g.lastMs
	}

	switch {
	case ms > g.lastMs:
		g.seq = 0
	case g.seq < math.MaxUint64:
		g.seq++
	default:
		for ms <= g.lastMs {
			time.Sleep(125 * time.Microsecond)
			ms = NowMs()
		}
		g.seq = 0
	}
	g.lastMs = ms

	var k Key
	binary.BigEndian.PutUint64(k[0:8], uint64(ms))
	binary.BigEndian.PutUint64(k[8:16], g.seq)
	return k
}
