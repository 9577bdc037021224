// Package cacheflow intercepts calls to an expensive data-producing
// operation and serves them from a memcached-like backend when it can.
//
// Components:
//   - Descriptor: immutable per-call-site metadata (namespace, key argument
//     indices or a fixed assigned key, TTL, serialization strategy).
//   - Engine: key derivation and construction, failure containment, and
//     access to the provider.Backend shared by every operation.
//   - ReadThrough / MultiReadThrough: single and batch read-through. The
//     batch path fetches all keys in one round trip, calls the producer
//     only with the misses and returns results in input order.
//   - Update / MultiUpdate / Invalidate: write-through and eviction around
//     a business write.
//   - Counter: atomic counters stored as plain decimals.
//
// Keys:
//
//	[<name><prefixSep>]<namespace><sep><c1>-<c2>-...   - derived keys
//	[<name><prefixSep>]<namespace><sep><assigned>      - assign keys
//
// Backend failures (timeouts, connection errors, panics) never reach the
// caller: reads fall back to the producer, writes are skipped. Producer
// errors and key contract errors are returned unchanged.
//
// Usage:
//
//	d := cacheflow.Describe("user").Keys(0).TTL(time.Hour).Serialize(serial.JSON).MustBuild()
//	rt, _ := cacheflow.NewReadThrough[*User](engine, d)
//	u, err := rt.Get(ctx, []any{id}, func(ctx context.Context, args []any) (*User, error) {
//		return repo.Find(ctx, args[0].(string))
//	})
package cacheflow
