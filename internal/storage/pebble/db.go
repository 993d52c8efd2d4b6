package pebblestore

import (
	"errors"
	"time"

	"github.com/cockroachdb/pebble"
)

// ErrNotFound reports a missing key.
var ErrNotFound = pebble.ErrNotFound

// FsyncMode defines durability behavior for write operations.
type FsyncMode int

const (
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways requests a WAL fsync on every committed batch.
	FsyncModeAlways
	// FsyncModeInterval lets Pebble coalesce WAL syncs for writes arriving
	// within the configured interval (group commit).
	FsyncModeInterval
	// FsyncModeNever never forces a WAL sync from the application. Pebble may
	// still sync on its own schedule. Trades durability for throughput.
	FsyncModeNever
)

// ParseFsyncMode maps the config/flag strings to an FsyncMode.
func ParseFsyncMode(s string) (FsyncMode, error) {
	switch s {
	case "", "always":
		return FsyncModeAlways, nil
	case "interval":
		return FsyncModeInterval, nil
	case "never":
		return FsyncModeNever, nil
	}
	return FsyncModeUnspecified, errors.New("pebble: invalid fsync mode; use always|interval|never")
}

// Options configures the backend handle.
type Options struct {
	// DataDir is the Pebble database directory. Required.
	DataDir string
	// Fsync selects when the WAL is synced.
	Fsync FsyncMode
	// FsyncInterval is the group-commit window when Fsync=FsyncModeInterval.
	FsyncInterval time.Duration
	// PebbleOptions allows advanced tuning. Nil means defaults.
	PebbleOptions *pebble.Options
}

// DB is the process-wide backend handle.
type DB struct {
	inner     *pebble.DB
	writeSync bool
}

// Open creates or opens the database. An error here is fatal to the caller:
// the service fails to start rather than degrade without a backend.
func Open(opts Options) (*DB, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebble: Options.DataDir is required")
	}

	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}

	switch opts.Fsync {
	case FsyncModeAlways:
		// Sync is requested per commit; no WALMinSyncInterval needed.
	case FsyncModeNever:
	case FsyncModeInterval:
		if opts.FsyncInterval <= 0 {
			opts.FsyncInterval = 5 * time.Millisecond
		}
		interval := opts.FsyncInterval
		po.WALMinSyncInterval = func() time.Duration { return interval }
	default:
		po.WALMinSyncInterval = func() time.Duration { return 5 * time.Millisecond }
	}

	inner, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, err
	}
	return &DB{inner: inner, writeSync: opts.Fsync == FsyncModeAlways}, nil
}

// Close closes the database.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

// NewBatch creates a batch for atomic multi-key updates.
func (db *DB) NewBatch() *pebble.Batch {
	return db.inner.NewBatch()
}

// CommitBatch commits b under the configured fsync policy.
func (db *DB) CommitBatch(b *pebble.Batch) error {
	if b == nil {
		return errors.New("pebble: nil batch")
	}
	syncMode := pebble.NoSync
	if db.writeSync {
		syncMode = pebble.Sync
	}
	return b.Commit(syncMode)
}

// Set writes a single key through a small batch so the fsync policy applies.
func (db *DB) Set(key, value []byte) error {
	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.Set(key, value, nil); err != nil {
		return err
	}
	return db.CommitBatch(b)
}

// Delete removes a single key through a small batch.
func (db *DB) Delete(key []byte) error {
	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.Delete(key, nil); err != nil {
		return err
	}
	return db.CommitBatch(b)
}

// Get returns a copy of the value for key, or ErrNotFound.
func (db *DB) Get(key []byte) ([]byte, error) {
	val, closer, err := db.inner.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

// NewIter creates a raw iterator over the given bounds.
func (db *DB) NewIter(opts *pebble.IterOptions) (*pebble.Iterator, error) {
	return db.inner.NewIter(opts)
}
