package segment

import (
	"errors"

	"github.com/aboosoyeed/weaver/internal/dberrors"
	"github.com/aboosoyeed/weaver/internal/record"
)

// MultiIterator concatenates an ordered list of per-file iterators,
// advancing to the next file at each one's end, adapted from the teacher's
// Rotator.GetAllWALPaths + Recovery.Replay (which walks segments then the
// active WAL in the same order). Per spec §4.3, a failure to *open* one of
// the files (e.g. deleted between listing and opening) is swallowed as an
// empty contribution from that file rather than surfaced as an error;
// per-record corruption/decode errors are still yielded to the caller.
type MultiIterator struct {
	paths         []string
	maxRecordSize uint32
	idx           int
	cur           *Iterator
	started       bool
}

// NewMultiIterator builds an iterator over paths in the given order. Typical
// order (spec §3, §4.4): frozen segments oldest-first, then the active WAL.
// maxRecordSize is forwarded to every per-file Iterator it constructs; a
// zero value falls back to record.MaxRecordSize.
func NewMultiIterator(paths []string, maxRecordSize uint32) *MultiIterator {
	cp := make([]string, len(paths))
	copy(cp, paths)
	return &MultiIterator{paths: cp, maxRecordSize: maxRecordSize}
}

// Next returns the next record across the concatenated files, in order. The
// returned frameLen is the on-disk byte length of the frame it came from.
// ok is false with a nil error once every file is exhausted.
func (m *MultiIterator) Next() (rec record.Record, frameLen int, ok bool, err error) {
	for {
		if m.cur == nil {
			if m.idx >= len(m.paths) {
				return record.Record{}, 0, false, nil
			}
			m.cur = NewIterator(m.paths[m.idx], m.maxRecordSize)
			m.idx++
		}

		rec, frameLen, ok, err = m.cur.Next()
		if ok {
			return rec, frameLen, true, nil
		}
		if err != nil {
			if isOpenFailure(err) {
				// Treat as an empty contribution from this file and move on.
				_ = m.cur.Close()
				m.cur = nil
				continue
			}
			return record.Record{}, 0, false, err
		}

		// Clean end of this file; advance to the next one.
		_ = m.cur.Close()
		m.cur = nil
	}
}

// isOpenFailure reports whether err came from failing to open a file (as
// opposed to a corruption/decode error encountered mid-stream), which spec
// §4.3 says a multi-file iterator should tolerate by skipping the file.
func isOpenFailure(err error) bool {
	return errors.Is(err, dberrors.ErrIO) && !errors.Is(err, dberrors.ErrCorruptedFile)
}

// Close releases any open underlying file handle.
func (m *MultiIterator) Close() error {
	if m.cur == nil {
		return nil
	}
	return m.cur.Close()
}
