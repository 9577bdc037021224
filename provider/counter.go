package provider

import (
	"fmt"

	"github.com/unkn0wn-root/cacheflow/codec"
)

// Incr computes the next counter value for an in-process backend holding
// cur (found=false if absent). The caller serializes access to the key.
func Incr(cur []byte, found bool, delta, def int64) (int64, []byte, error) {
	n := def
	if found {
		v, err := codec.Counter{}.Decode(cur)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrNotCounter, err)
		}
		n = v + delta
	}
	b, _ := codec.Counter{}.Encode(n)
	return n, b, nil
}

// Decr is Incr's counterpart with memcached semantics: results floor at zero.
func Decr(cur []byte, delta int64) (int64, []byte, error) {
	v, err := codec.Counter{}.Decode(cur)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrNotCounter, err)
	}
	n := v - delta
	if n < 0 {
		n = 0
	}
	b, _ := codec.Counter{}.Encode(n)
	return n, b, nil
}
