package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version byte = 1
	hdrLen       = 4 + 1 + 1 + 4
)

var (
	ErrCorrupt = errors.New("cacheflow: corrupt entry")
	magic4     = [...]byte{'C', 'F', 'L', 'W'}
)

// IsFramed reports whether b starts with the cacheflow frame magic.
func IsFramed(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode frames payload with its flags byte.
//
//	magic(4) | ver(1) | flags(1) | vlen(u32 be) | payload(vlen)
func Encode(flags byte, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(flags)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// Decode returns the flags byte and payload of a framed entry.
// Trailing bytes after the declared payload are treated as corruption.
func Decode(b []byte) (flags byte, payload []byte, err error) {
	if len(b) < hdrLen || !IsFramed(b) || b[4] != version {
		return 0, nil, ErrCorrupt
	}
	flags = b[5]

	off := 6
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off {
		return 0, nil, ErrCorrupt
	}
	return flags, b[off : off+vlen], nil
}
