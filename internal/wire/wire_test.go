package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestRoundTripEmptyAndNonEmpty(t *testing.T) {
	cases := []struct {
		flags   byte
		payload []byte
	}{
		{0, nil},
		{1, []byte("hello")},
		{0xFF, []byte{0, 1, 2, 3, 4}},
	}
	for _, tc := range cases {
		enc := Encode(tc.flags, tc.payload)
		flags, p, err := Decode(enc)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if flags != tc.flags {
			t.Fatalf("flags mismatch: got %d want %d", flags, tc.flags)
		}
		if !bytes.Equal(p, tc.payload) {
			t.Fatalf("payload mismatch: got %x want %x", p, tc.payload)
		}
	}
}

func TestRejectsTrailingBytes(t *testing.T) {
	enc := Encode(1, []byte("x"))
	enc = append(enc, 0xDE, 0xAD)
	if _, _, err := Decode(enc); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt on trailing bytes, got %v", err)
	}
}

func TestCorruptHeadersAndLengths(t *testing.T) {
	enc := Encode(4, []byte("abc"))

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, _, err := Decode(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, _, err := Decode(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	badLen := append([]byte(nil), enc...)
	binary.BigEndian.PutUint32(badLen[6:10], 1000)
	if _, _, err := Decode(badLen); err == nil {
		t.Fatalf("expected error on oversized vlen")
	}

	if _, _, err := Decode(enc[:hdrLen-1]); err == nil {
		t.Fatalf("expected error on short header")
	}
}

func TestIsFramed(t *testing.T) {
	if IsFramed([]byte("42")) {
		t.Fatalf("plain decimal must not look framed")
	}
	if !IsFramed(Encode(0, nil)) {
		t.Fatalf("encoded entry must look framed")
	}
}
