package keyutil

import (
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Shorten returns key unchanged when it fits in max bytes. Longer keys keep
// as much of their head as fits and end with a 16 hex char xxhash digest of
// the full key, so distinct long keys stay distinct.
func Shorten(key string, max int) string {
	if max <= 0 || len(key) <= max {
		return key
	}
	sum := strconv.FormatUint(xxhash.Sum64String(key), 16)
	for len(sum) < 16 {
		sum = "0" + sum
	}
	head := max - len(sum) - 1
	if head < 0 {
		return sum[:max]
	}
	return key[:head] + "~" + sum
}

const stripes = 64

// Stripes is a fixed set of mutexes selected by key hash. It serializes
// read-modify-write sequences on the same key for in-process backends.
type Stripes struct {
	mu [stripes]sync.Mutex
}

// Lock locks the stripe owning key and returns its unlock func.
func (s *Stripes) Lock(key string) func() {
	m := &s.mu[xxhash.Sum64String(key)%stripes]
	m.Lock()
	return m.Unlock
}
