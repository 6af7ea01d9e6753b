// Package segment implements the lazy, forward-only reader over one WAL or
// segment file (spec §4.2) and the multi-file iterator that concatenates
// several of them in age order (spec §4.3). Both are adapted from the
// teacher's internal/wal Reader and Rotator.GetAllWALPaths/Recovery.Replay:
// same "read length, read body, stop at the first problem" shape, minus the
// teacher's CRC32 validation (the core frame carries no per-record checksum,
// spec §9) and minus its v0.1/v0.2/v0.4 format sniffing (one frame format
// here, spec §6).
package segment

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aboosoyeed/weaver/internal/dberrors"
	"github.com/aboosoyeed/weaver/internal/record"
)

// Iterator reads records from one file, in append order. It opens the file
// lazily on the first call to Next(); a file that does not exist at that
// point yields a clean, immediate end of iteration rather than an error,
// matching spec §4.2 ("a missing file yields an empty iterator, not an
// error").
type Iterator struct {
	path          string
	maxRecordSize uint32
	file          *os.File
	opened        bool
	stopped       bool
}

// NewIterator constructs an iterator over path without touching the
// filesystem. maxRecordSize caps a frame's declared total_len (spec §4.1);
// a zero value falls back to record.MaxRecordSize. Callers must call Close
// when done.
func NewIterator(path string, maxRecordSize uint32) *Iterator {
	if maxRecordSize == 0 {
		maxRecordSize = record.MaxRecordSize
	}
	return &Iterator{path: path, maxRecordSize: maxRecordSize}
}

func (it *Iterator) ensureOpen() error {
	if it.opened {
		return nil
	}
	it.opened = true

	f, err := os.Open(it.path)
	if err != nil {
		if os.IsNotExist(err) {
			it.stopped = true
			return nil
		}
		return dberrors.IO(err)
	}
	it.file = f
	return nil
}

// Next returns the next record and the on-disk byte length of the frame it
// was read from (4 + total_len, spec §4.1). ok is false with a nil error at
// a clean end of stream; ok is false with a non-nil error on corruption, a
// decode failure, or an I/O error, in which case iteration must stop.
func (it *Iterator) Next() (rec record.Record, frameLen int, ok bool, err error) {
	if it.stopped {
		return record.Record{}, 0, false, nil
	}
	if err := it.ensureOpen(); err != nil {
		return record.Record{}, 0, false, err
	}
	if it.file == nil {
		// ensureOpen found no file; clean end of stream.
		return record.Record{}, 0, false, nil
	}

	lenBuf := make([]byte, 4)
	n, err := io.ReadFull(it.file, lenBuf)
	if err != nil {
		it.stopped = true
		if errors.Is(err, io.EOF) && n == 0 {
			// Clean EOF before any bytes of the length prefix.
			return record.Record{}, 0, false, nil
		}
		// Partial length prefix: a truncated tail.
		return record.Record{}, 0, false, dberrors.Corrupt(fmt.Errorf("truncated length prefix in %s: %w", it.path, err))
	}

	totalLen := binary.LittleEndian.Uint32(lenBuf)
	if totalLen > it.maxRecordSize {
		it.stopped = true
		return record.Record{}, 0, false, dberrors.Corrupt(fmt.Errorf("record length %d exceeds max %d in %s", totalLen, it.maxRecordSize, it.path))
	}

	body := make([]byte, totalLen)
	if _, err := io.ReadFull(it.file, body); err != nil {
		it.stopped = true
		return record.Record{}, 0, false, dberrors.Corrupt(fmt.Errorf("truncated record body in %s: %w", it.path, err))
	}

	rec, err = record.DecodeBody(body)
	if err != nil {
		it.stopped = true
		return record.Record{}, 0, false, err
	}

	return rec, 4 + int(totalLen), true, nil
}

// Close releases the underlying file handle, if one was opened.
func (it *Iterator) Close() error {
	if it.file == nil {
		return nil
	}
	f := it.file
	it.file = nil
	return f.Close()
}
