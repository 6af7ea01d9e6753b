// Package store implements the on-disk persistence engine described in spec
// §4.4: the active WAL, its rotation into frozen segments, and the atomic
// rewrite used by compaction. It is adapted from the teacher's internal/wal
// Writer/Rotator/Recovery trio (format.go, rotator.go, recovery.go), with the
// teacher's multi-version frame sniffing and per-record CRC dropped in favor
// of the single frame format in internal/record, and with one correctness
// fix the spec calls out explicitly: a successful rewrite now unlinks the
// segments it superseded, where the teacher's compaction.go left them behind
// (spec §9, §"Background compaction safety").
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aboosoyeed/weaver/internal/config"
	"github.com/aboosoyeed/weaver/internal/dberrors"
	"github.com/aboosoyeed/weaver/internal/index"
	"github.com/aboosoyeed/weaver/internal/logger"
	"github.com/aboosoyeed/weaver/internal/metrics"
	"github.com/aboosoyeed/weaver/internal/record"
	"github.com/aboosoyeed/weaver/internal/segment"
)

const (
	walName       = "wal.log"
	walNewName    = "wal.log.new"
	segmentPrefix = "segment_"
	segmentSuffix = ".log"
	// segmentTsWidth is the zero-padded width of a segment's timestamp
	// suffix, chosen wide enough that lexicographic and numeric order
	// agree (spec §3, §4.4) for as long as UnixMilli fits in decimal.
	segmentTsWidth = 20
)

// Store owns one database directory: the active WAL, zero or more frozen
// segments, and the rename-based rewrite compaction uses. It is not
// concurrency-safe on its own; spec §5 places the single mutual-exclusion
// region at the facade, and Store assumes its caller serializes calls.
type Store struct {
	dir   string
	cfg   config.Config
	log   *logger.Logger
	mx    *metrics.Metrics
	retry *dberrors.RetryController
	class *dberrors.Classifier

	active     *os.File
	activeSize uint64
	lastSegTs  int64
}

// Open validates dir, replays its full log into a fresh index, seeds the
// active WAL's size counter from its metadata (0 if absent), and returns a
// Store ready for Append/Rewrite/RotateWAL plus the rebuilt index.
func Open(cfg config.Config, log *logger.Logger, mx *metrics.Metrics) (*Store, *index.Index, error) {
	if log == nil {
		log = logger.Default()
	}
	log = log.Component("store")

	info, err := os.Stat(cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(cfg.Dir, 0o755); mkErr != nil {
				return nil, nil, dberrors.IO(mkErr)
			}
		} else {
			return nil, nil, dberrors.IO(err)
		}
	} else if !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s is not a directory", dberrors.ErrInvalidPath, cfg.Dir)
	}

	s := &Store{
		dir:   cfg.Dir,
		cfg:   cfg,
		log:   log,
		mx:    mx,
		retry: dberrors.NewRetryController(),
		class: dberrors.NewClassifier(),
	}

	segPaths, err := s.listSegments()
	if err != nil {
		return nil, nil, err
	}
	s.seedLastSegTs(segPaths)

	idx := index.New()
	walPath := s.walPath()
	paths := append(append([]string{}, segPaths...), walPath)
	mi := segment.NewMultiIterator(paths, cfg.MaxRecordSize)
	defer mi.Close()

	for {
		rec, _, ok, err := mi.Next()
		if err != nil {
			if mx != nil {
				mx.ObserveCorruption()
			}
			return nil, nil, err
		}
		if !ok {
			break
		}
		switch rec.Action {
		case record.Set:
			idx.Set(rec.Key, rec.Value)
		case record.Delete:
			idx.Delete(rec.Key)
		}
	}
	if mx != nil {
		mx.SetLiveKeys(idx.Len())
	}

	if walInfo, statErr := os.Stat(walPath); statErr == nil {
		s.activeSize = uint64(walInfo.Size())
	} else if !os.IsNotExist(statErr) {
		return nil, nil, dberrors.IO(statErr)
	}
	if mx != nil {
		mx.SetWALSize(s.activeSize)
	}

	return s, idx, nil
}

func (s *Store) walPath() string {
	return filepath.Join(s.dir, walName)
}

func (s *Store) walNewPath() string {
	return filepath.Join(s.dir, walNewName)
}

// listSegments returns every segment_*.log path in the directory, sorted so
// that creation order and slice order agree (spec §4.3).
func (s *Store) listSegments() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, segmentPrefix+"*"+segmentSuffix))
	if err != nil {
		return nil, dberrors.IO(err)
	}
	sort.Strings(matches)
	return matches, nil
}

// seedLastSegTs recovers the highest timestamp suffix already on disk so
// that rotations in this process remain strictly increasing across a
// restart, not just within it.
func (s *Store) seedLastSegTs(segPaths []string) {
	for _, p := range segPaths {
		base := filepath.Base(p)
		base = strings.TrimPrefix(base, segmentPrefix)
		base = strings.TrimSuffix(base, segmentSuffix)
		var ts int64
		if _, err := fmt.Sscanf(base, "%d", &ts); err == nil && ts > s.lastSegTs {
			s.lastSegTs = ts
		}
	}
}

func (s *Store) ensureActiveOpen() error {
	if s.active != nil {
		return nil
	}
	f, err := os.OpenFile(s.walPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return dberrors.IO(err)
	}
	s.active = f
	return nil
}

// Append encodes rec and appends its frame to the active WAL, rotating
// first if the frame would bring the active WAL to or past its configured
// cap (spec §4.4). On success it returns the frame's on-disk length.
func (s *Store) Append(rec record.Record) (int, error) {
	maxSize := s.cfg.MaxWALSize
	if maxSize == 0 {
		maxSize = config.DefaultMaxWALSize
	}

	frame := record.Encode(rec)
	frameLen := len(frame)

	if s.activeSize+uint64(frameLen) >= maxSize {
		if err := s.RotateWAL(); err != nil {
			return 0, err
		}
	}

	err := s.retry.Retry(func() error {
		if err := s.ensureActiveOpen(); err != nil {
			return err
		}
		if _, err := s.active.Write(frame); err != nil {
			return dberrors.IO(err)
		}
		if s.cfg.FsyncOnAppend {
			if err := s.active.Sync(); err != nil {
				return dberrors.IO(err)
			}
		}
		return nil
	}, s.class)
	if err != nil {
		return 0, err
	}

	s.activeSize += uint64(frameLen)
	if s.mx != nil {
		s.mx.ObserveAppend(frameLen)
		s.mx.SetWALSize(s.activeSize)
	}
	return frameLen, nil
}

// IterAll returns a multi-file iterator over every segment (age order) then
// the active WAL, the same order Open uses to rebuild the index (spec §4.3).
func (s *Store) IterAll() (*segment.MultiIterator, error) {
	segPaths, err := s.listSegments()
	if err != nil {
		return nil, err
	}
	paths := append(append([]string{}, segPaths...), s.walPath())
	return segment.NewMultiIterator(paths, s.cfg.MaxRecordSize), nil
}

// RotateWAL renames the active WAL into a new frozen segment and resets the
// size counter. The next Append creates a fresh wal.log (spec §4.4).
func (s *Store) RotateWAL() error {
	if s.active != nil {
		if err := s.active.Close(); err != nil {
			return dberrors.IO(err)
		}
		s.active = nil
	}

	walPath := s.walPath()
	if _, err := os.Stat(walPath); err != nil {
		if os.IsNotExist(err) {
			s.activeSize = 0
			return nil
		}
		return dberrors.IO(err)
	}

	ts := time.Now().UnixMilli()
	if ts <= s.lastSegTs {
		ts = s.lastSegTs + 1
	}
	s.lastSegTs = ts

	segPath := filepath.Join(s.dir, fmt.Sprintf("%s%0*d%s", segmentPrefix, segmentTsWidth, ts, segmentSuffix))
	if err := os.Rename(walPath, segPath); err != nil {
		return dberrors.IO(err)
	}

	s.activeSize = 0
	if s.mx != nil {
		s.mx.ObserveRotation()
		s.mx.SetWALSize(0)
	}
	s.log.Info("rotated wal into segment %s", segPath)
	return nil
}

// Rewrite atomically replaces all on-disk state with a single file holding
// one Set record per (key, value) in snapshot (spec §4.4): write
// wal.log.new, fsync, rename over wal.log, then unlink the segments it
// superseded. A failure before the rename leaves on-disk state untouched;
// the rename is the only observable mutation.
func (s *Store) Rewrite(snapshot map[string][]byte) (err error) {
	segPaths, err := s.listSegments()
	if err != nil {
		return err
	}

	newPath := s.walNewPath()
	f, err := os.OpenFile(newPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return dberrors.IO(err)
	}
	defer func() {
		if f != nil {
			_ = f.Close()
		}
	}()

	// Map iteration order is randomized per range, not just unspecified, so
	// writing snapshot in map order would make two rewrites of an unchanged
	// snapshot produce different files. Sort first: spec §4.7 requires
	// byte-identical output from repeated rewrites of the same snapshot.
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		frame := record.Encode(record.Record{Action: record.Set, Key: []byte(k), Value: snapshot[k]})
		if _, werr := f.Write(frame); werr != nil {
			return dberrors.IO(werr)
		}
	}
	if err := f.Sync(); err != nil {
		return dberrors.IO(err)
	}

	newSize, err := f.Stat()
	if err != nil {
		return dberrors.IO(err)
	}
	if err := f.Close(); err != nil {
		return dberrors.IO(err)
	}
	f = nil

	if s.active != nil {
		_ = s.active.Close()
		s.active = nil
	}

	if err := os.Rename(newPath, s.walPath()); err != nil {
		return dberrors.IO(err)
	}

	// The rename above is the only observable mutation; everything past
	// this point is cleanup of now-superseded files and is best-effort.
	for _, p := range segPaths {
		if rmErr := os.Remove(p); rmErr != nil && !os.IsNotExist(rmErr) {
			s.log.Warn("failed to remove superseded segment %s: %v", p, rmErr)
		}
	}

	s.activeSize = uint64(newSize.Size())
	if s.mx != nil {
		s.mx.SetWALSize(s.activeSize)
		s.mx.SetLiveKeys(len(snapshot))
	}
	return nil
}

// Close releases the active WAL's file handle, if open.
func (s *Store) Close() error {
	if s.active == nil {
		return nil
	}
	f := s.active
	s.active = nil
	return f.Close()
}
