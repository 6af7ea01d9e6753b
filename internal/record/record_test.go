package record

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/aboosoyeed/weaver/internal/dberrors"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Record{
		{Action: Set, Key: []byte("k"), Value: []byte("v")},
		{Action: Delete, Key: []byte("tombstone")},
		{Action: Set, Key: []byte(""), Value: []byte("")},
		{Action: Set, Key: []byte("binary"), Value: []byte{0x00, 0xff, 0x10}},
	}

	for _, rec := range cases {
		frame := Encode(rec)

		totalLen := int(binary.LittleEndian.Uint32(frame[:4]))
		body := frame[4:]
		if len(body) != totalLen {
			t.Fatalf("frame length prefix mismatch: got body %d, want %d", len(body), totalLen)
		}

		got, err := DecodeBody(body)
		if err != nil {
			t.Fatalf("DecodeBody: %v", err)
		}
		if got.Action != rec.Action {
			t.Errorf("Action = %v, want %v", got.Action, rec.Action)
		}
		if !bytes.Equal(got.Key, rec.Key) {
			t.Errorf("Key = %q, want %q", got.Key, rec.Key)
		}
		if !bytes.Equal(got.Value, rec.Value) {
			t.Errorf("Value = %q, want %q", got.Value, rec.Value)
		}
	}
}

func TestDecodeBodyTooShort(t *testing.T) {
	_, err := DecodeBody([]byte{0x00, 0x01})
	if !errors.Is(err, dberrors.ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}

func TestDecodeBodyUnknownAction(t *testing.T) {
	body := Encode(Record{Action: Set, Key: []byte("k"), Value: []byte("v")})[4:]
	body[0] = 0x7f
	_, err := DecodeBody(body)
	if !errors.Is(err, dberrors.ErrCorruptedFile) {
		t.Fatalf("err = %v, want ErrCorruptedFile", err)
	}
}

func TestDecodeBodyKeyLengthOverrun(t *testing.T) {
	body := Encode(Record{Action: Set, Key: []byte("k"), Value: []byte("v")})[4:]
	// Corrupt the key length field to claim more bytes than are present.
	body[1] = 0xff
	body[2] = 0xff
	_, err := DecodeBody(body)
	if !errors.Is(err, dberrors.ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}

func TestDecodeBodyTrailingBytes(t *testing.T) {
	body := Encode(Record{Action: Set, Key: []byte("k"), Value: []byte("v")})[4:]
	body = append(body, 0x00)
	_, err := DecodeBody(body)
	if !errors.Is(err, dberrors.ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}

func TestActionString(t *testing.T) {
	if Set.String() != "Set" {
		t.Errorf("Set.String() = %q", Set.String())
	}
	if Delete.String() != "Delete" {
		t.Errorf("Delete.String() = %q", Delete.String())
	}
	if Action(9).String() != "Action(9)" {
		t.Errorf("Action(9).String() = %q", Action(9).String())
	}
}
