package cacheflow

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	pr "github.com/unkn0wn-root/cacheflow/provider"
)

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

// memBackend is an in-memory provider.Backend with failure injection.
type memBackend struct {
	mu    sync.Mutex
	m     map[string]memEntry
	calls map[string]int

	fail    error         // returned by every call when set
	panicOn string        // op name that panics
	stall   time.Duration // Get/GetMulti block this long or until ctx ends

	lastMulti []string
	lastTTL   time.Duration
}

var _ pr.Backend = (*memBackend)(nil)

func newMemBackend() *memBackend {
	return &memBackend{m: make(map[string]memEntry), calls: make(map[string]int)}
}

func (p *memBackend) enter(ctx context.Context, op string, stall bool) error {
	p.mu.Lock()
	p.calls[op]++
	fail, panicOn, d := p.fail, p.panicOn, p.stall
	p.mu.Unlock()

	if panicOn == op {
		panic("memBackend: " + op)
	}
	if stall && d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fail
}

func (p *memBackend) count(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *memBackend) load(key string) ([]byte, bool) {
	e, ok := p.m[key]
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false
	}
	return e.v, true
}

func (p *memBackend) store(key string, v []byte, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.m[key] = memEntry{v: v, exp: exp}
	p.lastTTL = ttl
}

func (p *memBackend) raw(key string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load(key)
}

func (p *memBackend) put(key string, v []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.store(key, v, 0)
}

func (p *memBackend) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.m))
	for k := range p.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (p *memBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := p.enter(ctx, "get", true); err != nil {
		return nil, false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.load(key)
	return v, ok, nil
}

func (p *memBackend) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := p.enter(ctx, "get_multi", true); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastMulti = append([]string(nil), keys...)
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := p.load(k); ok {
			out[k] = v
		}
	}
	return out, nil
}

func (p *memBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := p.enter(ctx, "set", false); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.store(key, value, ttl)
	return nil
}

func (p *memBackend) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := p.enter(ctx, "add", false); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.load(key); ok {
		return false, nil
	}
	p.store(key, value, ttl)
	return true, nil
}

func (p *memBackend) Delete(ctx context.Context, key string) (bool, error) {
	if err := p.enter(ctx, "delete", false); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.m[key]
	delete(p.m, key)
	return ok, nil
}

func (p *memBackend) IncrWithDefault(ctx context.Context, key string, delta, def int64, ttl time.Duration) (int64, error) {
	if err := p.enter(ctx, "incr", false); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, found := p.load(key)
	n, b, err := pr.Incr(cur, found, delta, def)
	if err != nil {
		return 0, err
	}
	if found {
		p.m[key] = memEntry{v: b, exp: p.m[key].exp}
	} else {
		p.store(key, b, ttl)
	}
	return n, nil
}

func (p *memBackend) Decr(ctx context.Context, key string, delta int64) (int64, bool, error) {
	if err := p.enter(ctx, "decr", false); err != nil {
		return 0, false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, found := p.load(key)
	if !found {
		return 0, false, nil
	}
	n, b, err := pr.Decr(cur, delta)
	if err != nil {
		return 0, true, err
	}
	p.m[key] = memEntry{v: b, exp: p.m[key].exp}
	return n, true, nil
}

func (p *memBackend) Flush(ctx context.Context) error {
	if err := p.enter(ctx, "flush", false); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m = make(map[string]memEntry)
	return nil
}

func (p *memBackend) Nodes(context.Context) ([]string, error) { return []string{"mem"}, nil }
func (p *memBackend) Close(context.Context) error             { return nil }

// recHooks records hook events.
type recHooks struct {
	mu          sync.Mutex
	hits        int
	misses      int
	degraded    []string
	undecodable []string
	violations  int
}

func (h *recHooks) Hit(_ string, n int) {
	h.mu.Lock()
	h.hits += n
	h.mu.Unlock()
}

func (h *recHooks) Miss(_ string, n int) {
	h.mu.Lock()
	h.misses += n
	h.mu.Unlock()
}

func (h *recHooks) Degraded(op, _ string, _ error) {
	h.mu.Lock()
	h.degraded = append(h.degraded, op)
	h.mu.Unlock()
}

func (h *recHooks) Undecodable(key string, _ error) {
	h.mu.Lock()
	h.undecodable = append(h.undecodable, key)
	h.mu.Unlock()
}

func (h *recHooks) ContractViolation(string, error) {
	h.mu.Lock()
	h.violations++
	h.mu.Unlock()
}

var errBackendDown = errors.New("backend down")

func newTestEngine(t *testing.T, b pr.Backend, mut func(*Options)) *Engine {
	t.Helper()
	opts := Options{Name: "test", Backend: b, Timeout: 200 * time.Millisecond}
	if mut != nil {
		mut(&opts)
	}
	e, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

type user struct {
	ID   string `json:"id" msgpack:"id"`
	Name string `json:"name" msgpack:"name"`
}

// userID implements CacheKeyable.
type userID struct{ n int }

func (u userID) CacheKey() string { return "u" + strconv.Itoa(u.n) }
