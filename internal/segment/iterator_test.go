package segment

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aboosoyeed/weaver/internal/dberrors"
	"github.com/aboosoyeed/weaver/internal/record"
)

func writeFrames(t *testing.T, path string, recs ...record.Record) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	for _, rec := range recs {
		if _, err := f.Write(record.Encode(rec)); err != nil {
			t.Fatalf("write frame: %v", err)
		}
	}
}

func TestIteratorMissingFileIsEmpty(t *testing.T) {
	it := NewIterator(filepath.Join(t.TempDir(), "does-not-exist.log"), 0)
	defer it.Close()

	_, _, ok, err := it.Next()
	if err != nil || ok {
		t.Fatalf("Next() = (_, _, %v, %v), want (_, false, nil)", ok, err)
	}
}

func TestIteratorReadsRecordsInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	want := []record.Record{
		{Action: record.Set, Key: []byte("a"), Value: []byte("1")},
		{Action: record.Set, Key: []byte("b"), Value: []byte("2")},
		{Action: record.Delete, Key: []byte("a")},
	}
	writeFrames(t, path, want...)

	it := NewIterator(path, 0)
	defer it.Close()

	for i, w := range want {
		rec, frameLen, ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next() #%d: %v", i, err)
		}
		if !ok {
			t.Fatalf("Next() #%d: ok = false, want true", i)
		}
		if rec.Action != w.Action || string(rec.Key) != string(w.Key) || string(rec.Value) != string(w.Value) {
			t.Errorf("Next() #%d = %+v, want %+v", i, rec, w)
		}
		if frameLen != 4+1+4+len(w.Key)+4+len(w.Value) {
			t.Errorf("Next() #%d frameLen = %d", i, frameLen)
		}
	}

	_, _, ok, err := it.Next()
	if err != nil || ok {
		t.Fatalf("trailing Next() = (_, _, %v, %v), want (_, false, nil)", ok, err)
	}
}

func TestIteratorTruncatedTailIsCorrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	writeFrames(t, path, record.Record{Action: record.Set, Key: []byte("a"), Value: []byte("1")})

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Truncate(path, info.Size()-2); err != nil {
		t.Fatal(err)
	}

	it := NewIterator(path, 0)
	defer it.Close()

	_, _, ok, err := it.Next()
	if ok || !errors.Is(err, dberrors.ErrCorruptedFile) {
		t.Fatalf("Next() = (_, _, %v, %v), want CorruptedFile error", ok, err)
	}
}

func TestIteratorGarbageBytesAreCorrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	if err := os.WriteFile(path, []byte("not a valid record"), 0o644); err != nil {
		t.Fatal(err)
	}

	it := NewIterator(path, 0)
	defer it.Close()

	_, _, ok, err := it.Next()
	if ok || !errors.Is(err, dberrors.ErrCorruptedFile) {
		t.Fatalf("Next() = (_, _, %v, %v), want CorruptedFile error", ok, err)
	}
}

func TestIteratorHonorsConfiguredMaxRecordSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	writeFrames(t, path, record.Record{Action: record.Set, Key: []byte("a"), Value: []byte("this value is several bytes long")})

	it := NewIterator(path, 8)
	defer it.Close()

	_, _, ok, err := it.Next()
	if ok || !errors.Is(err, dberrors.ErrCorruptedFile) {
		t.Fatalf("Next() = (_, _, %v, %v), want CorruptedFile error for a frame over the configured cap", ok, err)
	}
}

func TestMultiIteratorConcatenatesInOrder(t *testing.T) {
	dir := t.TempDir()
	seg1 := filepath.Join(dir, "segment_00000000000000000001.log")
	seg2 := filepath.Join(dir, "segment_00000000000000000002.log")
	wal := filepath.Join(dir, "wal.log")

	writeFrames(t, seg1, record.Record{Action: record.Set, Key: []byte("a"), Value: []byte("1")})
	writeFrames(t, seg2, record.Record{Action: record.Set, Key: []byte("b"), Value: []byte("2")})
	writeFrames(t, wal, record.Record{Action: record.Delete, Key: []byte("a")})

	mi := NewMultiIterator([]string{seg1, seg2, wal}, 0)
	defer mi.Close()

	var gotKeys []string
	for {
		rec, _, ok, err := mi.Next()
		if err != nil {
			t.Fatalf("Next(): %v", err)
		}
		if !ok {
			break
		}
		gotKeys = append(gotKeys, string(rec.Key))
	}

	want := []string{"a", "b", "a"}
	if len(gotKeys) != len(want) {
		t.Fatalf("got %v, want %v", gotKeys, want)
	}
	for i := range want {
		if gotKeys[i] != want[i] {
			t.Errorf("key[%d] = %q, want %q", i, gotKeys[i], want[i])
		}
	}
}

func TestMultiIteratorSkipsMissingIntermediateFile(t *testing.T) {
	dir := t.TempDir()
	seg1 := filepath.Join(dir, "segment_00000000000000000001.log")
	missing := filepath.Join(dir, "segment_00000000000000000002.log")
	wal := filepath.Join(dir, "wal.log")

	writeFrames(t, seg1, record.Record{Action: record.Set, Key: []byte("a"), Value: []byte("1")})
	writeFrames(t, wal, record.Record{Action: record.Set, Key: []byte("b"), Value: []byte("2")})

	mi := NewMultiIterator([]string{seg1, missing, wal}, 0)
	defer mi.Close()

	var gotKeys []string
	for {
		rec, _, ok, err := mi.Next()
		if err != nil {
			t.Fatalf("Next(): %v", err)
		}
		if !ok {
			break
		}
		gotKeys = append(gotKeys, string(rec.Key))
	}

	want := []string{"a", "b"}
	if len(gotKeys) != len(want) {
		t.Fatalf("got %v, want %v", gotKeys, want)
	}
}
