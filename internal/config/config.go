// Package config carries the tunables for the store and the compactor. It
// mirrors the shape of the teacher's DefaultConfig(): a single struct with
// a package-level constructor for its zero-config defaults, generalized
// from document-database tuning knobs (WAL segment size, checkpoint
// interval, compaction thresholds) down to the handful a single-writer
// Bitcask-style log actually needs.
package config

import "time"

// MaxRecordSize is the hard cap on a single WAL frame's declared length
// (spec §4.1). A frame claiming a larger total_len is corruption, not a
// large-value request.
const MaxRecordSize = 100 * 1024 * 1024

// DefaultMaxWALSize is the rotation threshold: once the active WAL would
// reach or exceed this many bytes after the next append, it is rotated into
// a segment first (spec §4.4).
const DefaultMaxWALSize = 10 * 1024 * 1024

// DefaultCompactionInterval is how often the background compactor ticks
// (spec §4.7).
const DefaultCompactionInterval = 10 * time.Second

// Config holds the tunables for opening a store.
type Config struct {
	// Dir is the directory owning the WAL and its segments. store.Open
	// creates it if absent, before any write.
	Dir string

	// MaxRecordSize caps a single frame's declared body length. A frame
	// read with a larger total_len is treated as corruption.
	MaxRecordSize uint32

	// MaxWALSize is the rotation threshold for the active WAL, in bytes.
	MaxWALSize uint64

	// FsyncOnAppend forces an fsync after every append, trading throughput
	// for power-loss durability. Off by default: the store otherwise only
	// promises process-crash durability (spec §4.4).
	FsyncOnAppend bool

	Compaction CompactionConfig
}

// CompactionConfig tunes the background compaction task.
type CompactionConfig struct {
	// Enabled starts the periodic compactor when true. Manual compaction
	// via DB.RunCompaction is always available regardless.
	Enabled bool

	// Interval is the tick period between compaction attempts.
	Interval time.Duration
}

// DefaultConfig returns the zero-config tuning: 10 MiB WAL rotation, no
// forced fsync, compaction enabled on a 10s tick.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:           dir,
		MaxRecordSize: MaxRecordSize,
		MaxWALSize:    DefaultMaxWALSize,
		FsyncOnAppend: false,
		Compaction: CompactionConfig{
			Enabled:  true,
			Interval: DefaultCompactionInterval,
		},
	}
}
