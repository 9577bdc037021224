package codec

import (
	"fmt"
	"strconv"
	"strings"
)

// Counter writes an int64 as a plain ASCII decimal with no framing, the
// representation backends expect for atomic increment/decrement.
type Counter struct{}

var _ Codec[int64] = Counter{}

func (Counter) Unframed() {}

func (Counter) Encode(n int64) ([]byte, error) {
	return strconv.AppendInt(nil, n, 10), nil
}

func (Counter) Decode(b []byte) (int64, error) {
	s := strings.TrimSpace(string(b))
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("counter: not a decimal value %q", s)
	}
	return n, nil
}

// IsDecimal reports whether b is an optionally signed run of ASCII digits.
func IsDecimal(b []byte) bool {
	if len(b) > 0 && b[0] == '-' {
		b = b[1:]
	}
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
