package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog"

	pebblestore "github.com/nigoertz/demo-cosmos-api/internal/storage/pebble"
	"github.com/nigoertz/demo-cosmos-api/pkg/id"
)

var (
	// ErrNotFound reports a lookup that matched no resident record.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidArgument reports a caller contract violation.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Options configures one bounded collection.
type Options struct {
	// Name is the collection name, used in the keyspace and in logs.
	Name string
	// Capacity is the maximum number of resident records.
	Capacity int
	// EvictionChunkSize is how many oldest records one eviction removes.
	// Must be in [1, Capacity].
	EvictionChunkSize int
	// OrderField names the numeric document field that ranks records from
	// oldest to newest for eviction. Empty means backend insertion order.
	OrderField string
}

// Store is one capacity-bounded record collection.
type Store struct {
	db         *pebblestore.DB
	gen        *id.Generator
	logger     zerolog.Logger
	name       string
	capacity   int
	chunk      int
	orderField string
}

// New builds a Store over the shared backend handle.
func New(db *pebblestore.DB, logger zerolog.Logger, opts Options) (*Store, error) {
	if opts.Name == "" {
		return nil, errors.New("store: Options.Name is required")
	}
	if opts.Capacity <= 0 {
		return nil, fmt.Errorf("store %s: capacity must be positive, got %d", opts.Name, opts.Capacity)
	}
	if opts.EvictionChunkSize < 1 || opts.EvictionChunkSize > opts.Capacity {
		return nil, fmt.Errorf("store %s: eviction chunk size %d outside [1, %d]",
			opts.Name, opts.EvictionChunkSize, opts.Capacity)
	}
	return &Store{
		db:         db,
		gen:        id.NewGenerator(),
		logger:     logger.With().Str("collection", opts.Name).Logger(),
		name:       opts.Name,
		capacity:   opts.Capacity,
		chunk:      opts.EvictionChunkSize,
		orderField: opts.OrderField,
	}, nil
}

// Name returns the collection name.
func (s *Store) Name() string { return s.name }

type scannedEntry struct {
	key   []byte
	order uint64
	id    string
	value []byte
}

// scan visits every resident record in key (insertion) order. fn returning
// false stops the scan early.
func (s *Store) scan(fn func(e scannedEntry) (bool, error)) error {
	lower := keyEntryPrefix(s.name)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: prefixEnd(lower)})
	if err != nil {
		return err
	}
	defer iter.Close()

	for ok := iter.First(); ok; ok = iter.Next() {
		env, err := decodeEnvelope(iter.Value())
		if err != nil {
			return fmt.Errorf("collection %s key %x: %w", s.name, iter.Key(), err)
		}
		key := append([]byte(nil), iter.Key()...)
		cont, err := fn(scannedEntry{key: key, order: env.order, id: env.id, value: env.payload})
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return iter.Error()
}

// Count returns the current occupancy.
func (s *Store) Count(ctx context.Context) (int, error) {
	n := 0
	err := s.scan(func(scannedEntry) (bool, error) { n++; return true, nil })
	return n, err
}

// oldest returns the keys of the n oldest resident records, ranked by
// ordering value with ties broken by insertion order.
func (s *Store) oldest(n int) ([][]byte, error) {
	var entries []scannedEntry
	err := s.scan(func(e scannedEntry) (bool, error) {
		entries = append(entries, scannedEntry{key: e.key, order: e.order})
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	// Scan order is insertion order, so a stable sort keeps ties stable.
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].order < entries[j].order })
	if n > len(entries) {
		n = len(entries)
	}
	keys := make([][]byte, 0, n)
	for _, e := range entries[:n] {
		keys = append(keys, e.key)
	}
	return keys, nil
}

// Insert stores doc, evicting the oldest chunk first when the collection is
// at capacity. The eviction deletes and the insert commit as one batch.
// Returns the stored document unchanged. Duplicate logical ids are allowed.
func (s *Store) Insert(ctx context.Context, doc map[string]any) (map[string]any, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var order uint64
	if s.orderField != "" {
		order = orderValue(doc[s.orderField])
	}
	logicalID, _ := doc["id"].(string)

	occupancy, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}

	b := s.db.NewBatch()
	defer b.Close()

	if occupancy >= s.capacity {
		victims, err := s.oldest(s.chunk)
		if err != nil {
			return nil, err
		}
		for _, k := range victims {
			if err := b.Delete(k, nil); err != nil {
				return nil, err
			}
		}
		s.logger.Debug().Int("evicted", len(victims)).Int("occupancy", occupancy).Msg("evicting oldest records")
	}

	key := keyEntry(s.name, s.gen.Next())
	if err := b.Set(key, encodeEnvelope(order, logicalID, payload), nil); err != nil {
		return nil, err
	}
	if err := s.db.CommitBatch(b); err != nil {
		return nil, err
	}
	return doc, nil
}

// FindByID returns the record whose logical id equals the argument, or
// ErrNotFound. With duplicate ids the first match in insertion order wins.
func (s *Store) FindByID(ctx context.Context, logicalID string) (map[string]any, error) {
	var found map[string]any
	err := s.scan(func(e scannedEntry) (bool, error) {
		if e.id != logicalID {
			return true, nil
		}
		var doc map[string]any
		if err := json.Unmarshal(e.value, &doc); err != nil {
			return false, err
		}
		found = doc
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("%s record %q: %w", s.name, logicalID, ErrNotFound)
	}
	return found, nil
}

// ListAll returns every resident record in backend order.
func (s *Store) ListAll(ctx context.Context) ([]map[string]any, error) {
	return s.ListPaged(ctx, 0, 0)
}

// ListPaged returns up to count records after skipping offset, in backend
// order. count zero means no limit. Negative arguments are a contract
// violation.
func (s *Store) ListPaged(ctx context.Context, offset, count int) ([]map[string]any, error) {
	if offset < 0 || count < 0 {
		return nil, fmt.Errorf("offset %d, count %d: %w", offset, count, ErrInvalidArgument)
	}
	docs := []map[string]any{}
	skipped := 0
	err := s.scan(func(e scannedEntry) (bool, error) {
		if skipped < offset {
			skipped++
			return true, nil
		}
		if count > 0 && len(docs) == count {
			return false, nil
		}
		var doc map[string]any
		if err := json.Unmarshal(e.value, &doc); err != nil {
			return false, err
		}
		docs = append(docs, doc)
		return count == 0 || len(docs) < count, nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// ListByField returns the records whose named field equals value. limit zero
// means no limit. An empty result is a successful, empty sequence.
func (s *Store) ListByField(ctx context.Context, field, value string, limit int) ([]map[string]any, error) {
	docs := []map[string]any{}
	err := s.scan(func(e scannedEntry) (bool, error) {
		var doc map[string]any
		if err := json.Unmarshal(e.value, &doc); err != nil {
			return false, err
		}
		if sv, ok := doc[field].(string); !ok || sv != value {
			return true, nil
		}
		docs = append(docs, doc)
		return limit == 0 || len(docs) < limit, nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// DeleteMany removes up to n resident records, backend's choice of which,
// and returns the count actually removed. The whole batch commits or none
// of it does.
func (s *Store) DeleteMany(ctx context.Context, n int) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("delete count %d: %w", n, ErrInvalidArgument)
	}
	if n == 0 {
		return 0, nil
	}

	b := s.db.NewBatch()
	defer b.Close()

	deleted := 0
	err := s.scan(func(e scannedEntry) (bool, error) {
		if err := b.Delete(e.key, nil); err != nil {
			return false, err
		}
		deleted++
		return deleted < n, nil
	})
	if err != nil {
		return 0, err
	}
	if deleted == 0 {
		return 0, nil
	}
	if err := s.db.CommitBatch(b); err != nil {
		return 0, err
	}
	return deleted, nil
}

// orderValue coerces a document field into the uint64 eviction rank.
// JSON-decoded numbers arrive as float64; anything else ranks oldest.
func orderValue(v any) uint64 {
	switch t := v.(type) {
	case float64:
		if t <= 0 {
			return 0
		}
		return uint64(t)
	case int64:
		if t <= 0 {
			return 0
		}
		return uint64(t)
	case int:
		if t <= 0 {
			return 0
		}
		return uint64(t)
	default:
		return 0
	}
}
