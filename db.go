// Package weaver implements an embedded, crash-resilient, single-writer
// key-value store: an append-only write-ahead log with segment rotation,
// background compaction, and a full in-memory index mirroring live on-disk
// state. DB is the facade described in spec §4.6; it owns the single
// mutual-exclusion region spec §5 requires across put/delete/rewrite, and
// defers to internal/store for everything durable and internal/index for
// everything in memory.
package weaver

import (
	"fmt"
	"sync"
	"time"

	"github.com/aboosoyeed/weaver/internal/config"
	"github.com/aboosoyeed/weaver/internal/index"
	"github.com/aboosoyeed/weaver/internal/logger"
	"github.com/aboosoyeed/weaver/internal/metrics"
	"github.com/aboosoyeed/weaver/internal/record"
	"github.com/aboosoyeed/weaver/internal/store"

	"github.com/prometheus/client_golang/prometheus"
)

// DB is the embedded key-value store facade. The zero value is not usable;
// construct with Open.
type DB struct {
	mu sync.RWMutex

	st  *store.Store
	idx *index.Index
	cfg config.Config
	log *logger.Logger
	mx  *metrics.Metrics

	compactor *Compactor
}

// Option configures a DB at Open time.
type Option func(*options)

type options struct {
	logger   *logger.Logger
	registry prometheus.Registerer
	configure func(*config.Config)
}

// WithLogger overrides the default stderr logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetricsRegistry registers the store's Prometheus metrics against reg
// instead of leaving them unregistered (the no-op default).
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// WithFsyncOnAppend enables an fsync after every append, trading throughput
// for power-loss durability (spec §4.4).
func WithFsyncOnAppend(enabled bool) Option {
	return func(o *options) {
		o.configure = chain(o.configure, func(c *config.Config) { c.FsyncOnAppend = enabled })
	}
}

// WithMaxWALSize overrides the rotation threshold.
func WithMaxWALSize(bytes uint64) Option {
	return func(o *options) {
		o.configure = chain(o.configure, func(c *config.Config) { c.MaxWALSize = bytes })
	}
}

// WithCompactionEnabled overrides whether the periodic compactor starts at
// Open. Manual compaction via RunCompaction is always available regardless.
func WithCompactionEnabled(enabled bool) Option {
	return func(o *options) {
		o.configure = chain(o.configure, func(c *config.Config) { c.Compaction.Enabled = enabled })
	}
}

// WithCompactionInterval overrides the periodic compactor's tick period.
func WithCompactionInterval(interval time.Duration) Option {
	return func(o *options) {
		o.configure = chain(o.configure, func(c *config.Config) { c.Compaction.Interval = interval })
	}
}

func chain(existing, next func(*config.Config)) func(*config.Config) {
	if existing == nil {
		return next
	}
	return func(c *config.Config) {
		existing(c)
		next(c)
	}
}

// Open constructs a store over dir (failing if the path exists and is not a
// directory), replays its full log into a fresh index, and starts the
// background compactor if enabled (spec §4.6, §4.7).
func Open(dir string, opts ...Option) (*DB, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	log := o.logger
	if log == nil {
		log = logger.Default()
	}

	cfg := config.DefaultConfig(dir)
	if o.configure != nil {
		o.configure(&cfg)
	}

	mx := metrics.New(o.registry)

	st, idx, err := store.Open(cfg, log, mx)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	db := &DB{
		st:  st,
		idx: idx,
		cfg: cfg,
		log: log,
		mx:  mx,
	}

	if cfg.Compaction.Enabled {
		db.compactor = newCompactor(db, cfg.Compaction.Interval, log, mx)
		db.compactor.Start()
	}

	return db, nil
}

// Put writes key=value: the record is appended to the WAL first, and the
// index is only updated once the append has succeeded (spec §4.6 data
// flow). The frame is fsynced only when FsyncOnAppend is enabled.
func (db *DB) Put(key, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.st.Append(record.Record{Action: record.Set, Key: key, Value: value}); err != nil {
		return err
	}
	db.idx.Set(key, value)
	if db.mx != nil {
		db.mx.SetLiveKeys(db.idx.Len())
	}
	return nil
}

// Delete appends a tombstone for key and removes it from the index, if
// present.
func (db *DB) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.st.Append(record.Record{Action: record.Delete, Key: key}); err != nil {
		return err
	}
	db.idx.Delete(key)
	if db.mx != nil {
		db.mx.SetLiveKeys(db.idx.Len())
	}
	return nil
}

// Get looks up key in the in-memory index; it never touches disk (spec
// §4.6 data flow).
func (db *DB) Get(key []byte) ([]byte, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.idx.Get(key)
}

// Keys returns every live key, in no particular order. It exists mainly to
// let a layer built on top of DB (e.g. the typed package's TTL sweep) walk
// the live key set without reaching into internal/index directly.
func (db *DB) Keys() [][]byte {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.idx.Keys()
}

// RunCompaction snapshots the index and asks the store to rewrite the log
// to hold exactly that snapshot, synchronously. It is the same operation the
// periodic compactor invokes on each tick (spec §4.7) and is always
// available as a manual trigger regardless of whether that ticker is
// running.
func (db *DB) RunCompaction() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	snapshot := db.idx.Snapshot()
	err := db.st.Rewrite(snapshot)
	if db.mx != nil {
		db.mx.ObserveCompaction(err == nil)
	}
	if err != nil {
		db.log.Error("compaction failed: %v", err)
		return err
	}
	return nil
}

// Close stops the background compactor, if running, and releases the
// active WAL's file handle.
func (db *DB) Close() error {
	if db.compactor != nil {
		db.compactor.Stop()
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	return db.st.Close()
}
