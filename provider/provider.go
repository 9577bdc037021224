// Package provider defines the cache backend capability consumed by cacheflow.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set/Add for a key. Counter entries
// are plain ASCII decimals; IncrWithDefault and Decr operate on that form and
// must be atomic with respect to each other for the same key.
//
// Every method may fail with a timeout (context deadline) or a backend error.
// cacheflow contains both; implementations should not retry on their own
// unless that is an explicit backend feature.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrNotStored is returned by Set when the store dropped the write
	// (admission policy, memory pressure, oversized item).
	ErrNotStored = errors.New("provider: value not stored")
	// ErrNotCounter is returned by counter ops on a non-decimal entry.
	ErrNotCounter = errors.New("provider: entry is not a counter")
	// ErrUnavailable is returned when the backend is known to be down.
	ErrUnavailable = errors.New("provider: backend unavailable")
)

// Backend is the minimal capability set of a memcached-like store.
// Must be safe for concurrent use.
type Backend interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// GetMulti fetches many keys in one round trip. Absent keys are simply
	// missing from the result.
	GetMulti(ctx context.Context, keys []string) (map[string][]byte, error)

	// Set stores value unconditionally. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Add stores value only if key is absent; stored=false if it exists.
	Add(ctx context.Context, key string, value []byte, ttl time.Duration) (stored bool, err error)

	// Delete removes key; deleted=false if it was absent.
	Delete(ctx context.Context, key string) (deleted bool, err error)

	// IncrWithDefault adds delta to the counter at key and returns the new
	// value. If key is absent it is created with def (delta is not applied).
	IncrWithDefault(ctx context.Context, key string, delta, def int64, ttl time.Duration) (int64, error)

	// Decr subtracts delta, flooring at zero. found=false if key is absent;
	// absent keys are not created.
	Decr(ctx context.Context, key string, delta int64) (n int64, found bool, err error)

	// Flush drops every entry this backend owns.
	Flush(ctx context.Context) error

	// Nodes lists the addresses of the live nodes serving this backend.
	Nodes(ctx context.Context) ([]string, error)

	// Close releases resources.
	Close(ctx context.Context) error
}

// Transcoder is a backend's native value encoding, used by the provider
// serialization strategy.
type Transcoder interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(b []byte, v any) error
}

// TranscoderProvider is implemented by backends with a preferred transcoder.
type TranscoderProvider interface {
	Transcoder() Transcoder
}

// MsgpackTranscoder is the default transcoder.
type MsgpackTranscoder struct{}

func (MsgpackTranscoder) Marshal(v any) ([]byte, error)   { return msgpack.Marshal(v) }
func (MsgpackTranscoder) Unmarshal(b []byte, v any) error { return msgpack.Unmarshal(b, v) }

// TranscoderOf returns b's transcoder or MsgpackTranscoder.
func TranscoderOf(b Backend) Transcoder {
	if tp, ok := b.(TranscoderProvider); ok {
		if tc := tp.Transcoder(); tc != nil {
			return tc
		}
	}
	return MsgpackTranscoder{}
}
