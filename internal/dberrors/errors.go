// Package dberrors carries the error taxonomy described in spec §7: Encode,
// Decode, Io, CorruptedFile, InvalidPath, and Other. The IO, Corrupt and
// Decode helpers pair a sentinel with its underlying cause in an error whose
// Unwrap returns both, so callers can use errors.Is against the sentinel
// while still seeing the original os/io error in the message, adapted from the teacher's internal/errors package (which
// does the same for its own WAL/data-file error set).
package dberrors

import "errors"

var (
	// ErrEncode is returned when a record could not be serialized.
	ErrEncode = errors.New("encode error")

	// ErrDecode is returned when a record body could not be deserialized.
	ErrDecode = errors.New("decode error")

	// ErrIO is returned when an underlying filesystem operation fails
	// (open/read/write/rename/fsync/metadata).
	ErrIO = errors.New("io error")

	// ErrCorruptedFile is returned when a structural invariant of the log
	// is violated: a declared frame length exceeds the cap, a frame is
	// truncated, or an action tag is unrecognized.
	ErrCorruptedFile = errors.New("corrupted file")

	// ErrInvalidPath is returned when the supplied directory path is not a
	// directory.
	ErrInvalidPath = errors.New("invalid path")

	// ErrOther covers infrastructural failures outside the other
	// categories (e.g. wall-clock acquisition).
	ErrOther = errors.New("other error")
)

// IO wraps err as an Io-category error, unless err is nil.
func IO(err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{kind: ErrIO, cause: err}
}

// Corrupt wraps err (or a bare message via errors.New) as a CorruptedFile
// error.
func Corrupt(err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{kind: ErrCorruptedFile, cause: err}
}

// Decode wraps err as a Decode-category error.
func Decode(err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{kind: ErrDecode, cause: err}
}

type wrapped struct {
	kind  error
	cause error
}

func (w *wrapped) Error() string {
	return w.kind.Error() + ": " + w.cause.Error()
}

func (w *wrapped) Unwrap() []error {
	return []error{w.kind, w.cause}
}
