// Package record implements the length-prefixed frame for a single log
// record, adapted from the teacher's internal/wal record codec
// (format.go/constants.go): a u32 total_len header, a deterministic binary
// body, nothing else. Where the teacher's v0.4 frame carries an LSN,
// collection name, and a CRC32 per field, this one carries only what spec
// §4.1/§6 asks for (action tag, key, value), since the core frame
// deliberately has no per-record checksum (spec §9, Non-goals).
package record

import (
	"encoding/binary"
	"fmt"

	"github.com/aboosoyeed/weaver/internal/dberrors"
)

// Action is the two-variant operation tag carried by every record.
type Action byte

const (
	// Set records a live key/value pair.
	Set Action = 0
	// Delete records a tombstone; its Value is always empty.
	Delete Action = 1
)

func (a Action) String() string {
	switch a {
	case Set:
		return "Set"
	case Delete:
		return "Delete"
	default:
		return fmt.Sprintf("Action(%d)", byte(a))
	}
}

// Record is the triple (action, key, value) that one frame encodes.
type Record struct {
	Action Action
	Key    []byte
	Value  []byte
}

const (
	lenPrefixSize = 4 // u32 LE total_len
	actionSize    = 1
	fieldLenSize  = 4 // u32 LE length prefix for key/value
	bodyMinSize   = actionSize + fieldLenSize + fieldLenSize
)

// MaxRecordSize is the hard cap on a frame's declared total_len (spec
// §4.1). Larger values are corruption, not large-value requests.
const MaxRecordSize = 100 * 1024 * 1024

// Encode produces the on-disk frame for rec: a 4-byte little-endian
// total_len followed by the body. It never fails for well-formed input; the
// only bound is available memory.
func Encode(rec Record) []byte {
	bodyLen := bodyMinSize + len(rec.Key) + len(rec.Value)
	buf := make([]byte, lenPrefixSize+bodyLen)

	binary.LittleEndian.PutUint32(buf[0:4], uint32(bodyLen))

	off := lenPrefixSize
	buf[off] = byte(rec.Action)
	off += actionSize

	binary.LittleEndian.PutUint32(buf[off:off+fieldLenSize], uint32(len(rec.Key)))
	off += fieldLenSize
	off += copy(buf[off:], rec.Key)

	binary.LittleEndian.PutUint32(buf[off:off+fieldLenSize], uint32(len(rec.Value)))
	off += fieldLenSize
	copy(buf[off:], rec.Value)

	return buf
}

// DecodeBody parses a frame's body (the bytes following the 4-byte
// total_len prefix) into a Record. An unrecognized action tag is reported
// as a dberrors-wrapped CorruptedFile error; any other malformed body
// (too short, a length field overrunning the body, trailing bytes) as a
// dberrors-wrapped Decode error.
func DecodeBody(body []byte) (Record, error) {
	if len(body) < bodyMinSize {
		return Record{}, dberrors.Decode(fmt.Errorf("body too short: %d bytes", len(body)))
	}

	off := 0
	action := Action(body[off])
	if action != Set && action != Delete {
		return Record{}, dberrors.Corrupt(fmt.Errorf("unrecognized action tag %d", body[off]))
	}
	off += actionSize

	keyLen := binary.LittleEndian.Uint32(body[off : off+fieldLenSize])
	off += fieldLenSize
	if off+int(keyLen) > len(body) {
		return Record{}, dberrors.Decode(fmt.Errorf("key length %d overruns body", keyLen))
	}
	key := make([]byte, keyLen)
	copy(key, body[off:off+int(keyLen)])
	off += int(keyLen)

	if off+fieldLenSize > len(body) {
		return Record{}, dberrors.Decode(fmt.Errorf("body truncated before value length"))
	}
	valLen := binary.LittleEndian.Uint32(body[off : off+fieldLenSize])
	off += fieldLenSize
	if off+int(valLen) > len(body) {
		return Record{}, dberrors.Decode(fmt.Errorf("value length %d overruns body", valLen))
	}
	value := make([]byte, valLen)
	copy(value, body[off:off+int(valLen)])
	off += int(valLen)

	if off != len(body) {
		return Record{}, dberrors.Decode(fmt.Errorf("trailing %d bytes after value", len(body)-off))
	}

	return Record{Action: action, Key: key, Value: value}, nil
}
