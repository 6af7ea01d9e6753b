// Package typed layers a generic, optionally-expiring key-value facade over
// a plain weaver.DB. The underlying store only ever sees opaque byte keys
// and a gob-encoded envelope; it never ages out a tombstone or reaps expired
// entries itself (spec's core Non-goals explicitly exclude a "typed facade
// with a TTL envelope" from the persistence engine). The envelope's shape,
// a value alongside an optional expiry, is grounded on original_source's
// Entry<V> { data, expires_at }.
//
// Encoding uses encoding/gob rather than a pack library: no dependency in
// the retrieved examples offers generic, type-parametric serialization, and
// gob is the standard library's own answer to exactly this problem (see
// DESIGN.md).
package typed

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	weaver "github.com/aboosoyeed/weaver"
)

// entry is the on-disk envelope for one value: the caller's data plus an
// optional absolute expiry (Unix milliseconds). A nil ExpiresAt never
// expires.
type entry[V any] struct {
	Data      V
	ExpiresAt *int64
}

// DB is a generic key-value facade over a weaver.DB. K and V may be any gob-
// encodable type. The zero value is not usable; construct with Open.
type DB[K any, V any] struct {
	inner *weaver.DB
	now   func() time.Time
}

// Open opens a typed store over dir, forwarding opts to weaver.Open.
func Open[K any, V any](dir string, opts ...weaver.Option) (*DB[K, V], error) {
	inner, err := weaver.Open(dir, opts...)
	if err != nil {
		return nil, err
	}
	return &DB[K, V]{inner: inner, now: time.Now}, nil
}

// Put stores value under key with no expiry.
func (db *DB[K, V]) Put(key K, value V) error {
	return db.put(key, value, nil)
}

// PutWithTTL stores value under key, expiring ttl after now.
func (db *DB[K, V]) PutWithTTL(key K, value V, ttl time.Duration) error {
	exp := db.now().Add(ttl).UnixMilli()
	return db.put(key, value, &exp)
}

func (db *DB[K, V]) put(key K, value V, expiresAt *int64) error {
	kb, err := encode(key)
	if err != nil {
		return fmt.Errorf("typed: encode key: %w", err)
	}
	vb, err := encode(entry[V]{Data: value, ExpiresAt: expiresAt})
	if err != nil {
		return fmt.Errorf("typed: encode value: %w", err)
	}
	return db.inner.Put(kb, vb)
}

// Get looks up key. A present but expired entry is reported as absent, and
// the entry is proactively deleted so it cannot resurface from a later
// compaction snapshot taken before the deletion lands.
func (db *DB[K, V]) Get(key K) (V, bool, error) {
	var zero V

	kb, err := encode(key)
	if err != nil {
		return zero, false, fmt.Errorf("typed: encode key: %w", err)
	}

	vb, ok := db.inner.Get(kb)
	if !ok {
		return zero, false, nil
	}

	var e entry[V]
	if err := decode(vb, &e); err != nil {
		return zero, false, fmt.Errorf("typed: decode value: %w", err)
	}

	if e.ExpiresAt != nil && db.now().UnixMilli() >= *e.ExpiresAt {
		_ = db.inner.Delete(kb)
		return zero, false, nil
	}

	return e.Data, true, nil
}

// Delete removes key, if present.
func (db *DB[K, V]) Delete(key K) error {
	kb, err := encode(key)
	if err != nil {
		return fmt.Errorf("typed: encode key: %w", err)
	}
	return db.inner.Delete(kb)
}

// RunCompaction forwards to the underlying store's manual compaction
// trigger (spec §4.7).
func (db *DB[K, V]) RunCompaction() error {
	return db.inner.RunCompaction()
}

// defaultSweepConcurrency bounds how many keys Sweep inspects at once.
const defaultSweepConcurrency = 8

// Sweep walks every live key and deletes the ones whose TTL has elapsed,
// reclaiming entries that would otherwise sit untouched until a caller
// happens to Get them. It fans the scan out across a bounded pool of
// goroutines via errgroup, since the underlying store's entries are
// independent and a corrupt envelope on one key must not abort the scan of
// the rest; errgroup.Group surfaces the first decode error once the scan
// finishes rather than letting one bad key crash the sweep.
func (db *DB[K, V]) Sweep(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(defaultSweepConcurrency)

	for _, key := range db.inner.Keys() {
		key := key
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			raw, ok := db.inner.Get(key)
			if !ok {
				return nil
			}
			var e entry[V]
			if err := decode(raw, &e); err != nil {
				return fmt.Errorf("typed: sweep: decode value for key: %w", err)
			}
			if e.ExpiresAt != nil && db.now().UnixMilli() >= *e.ExpiresAt {
				return db.inner.Delete(key)
			}
			return nil
		})
	}

	return g.Wait()
}

// Close releases the underlying store.
func (db *DB[K, V]) Close() error {
	return db.inner.Close()
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte, out any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(out)
}
