package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/cacheflow/internal/keyutil"
	pr "github.com/unkn0wn-root/cacheflow/provider"
)

// Provider is an in-process backend. Writes wait for ristretto's buffers
// to drain so a value is visible to the next Get on any goroutine.
type Provider struct {
	c     *rc.Cache
	cost  func(key string, value []byte) int64
	locks keyutil.Stripes
}

var _ pr.Backend = (*Provider)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
	// Cost of an entry; nil => len(value)+1.
	Cost func(key string, value []byte) int64
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	cost := cfg.Cost
	if cost == nil {
		cost = func(_ string, v []byte) int64 { return int64(len(v)) + 1 }
	}
	return &Provider{c: c, cost: cost}, nil
}

// entry keeps the deadline next to the bytes so counter updates can
// preserve the remaining TTL.
type entry struct {
	b   []byte
	exp time.Time
}

func (e entry) remaining() time.Duration {
	if e.exp.IsZero() {
		return 0
	}
	if d := time.Until(e.exp); d > 0 {
		return d
	}
	return time.Nanosecond
}

func (p *Provider) lookup(key string) (entry, bool) {
	v, ok := p.c.Get(key)
	if !ok {
		return entry{}, false
	}
	e, ok := v.(entry)
	if !ok || e.b == nil {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		return entry{}, false
	}
	return e, true
}

func (p *Provider) get(key string) ([]byte, bool) {
	e, ok := p.lookup(key)
	return e.b, ok
}

func (p *Provider) set(key string, value []byte, ttl time.Duration) error {
	e := entry{b: value}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	} else {
		ttl = 0
	}
	if !p.c.SetWithTTL(key, e, p.cost(key, value), ttl) {
		return pr.ErrNotStored
	}
	p.c.Wait()
	return nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, ok := p.get(key)
	return b, ok, nil
}

func (p *Provider) GetMulti(_ context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if b, ok := p.get(k); ok {
			out[k] = b
		}
	}
	return out, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	unlock := p.locks.Lock(key)
	defer unlock()
	return p.set(key, value, ttl)
}

func (p *Provider) Add(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	unlock := p.locks.Lock(key)
	defer unlock()
	if _, ok := p.get(key); ok {
		return false, nil
	}
	if err := p.set(key, value, ttl); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Delete(_ context.Context, key string) (bool, error) {
	unlock := p.locks.Lock(key)
	defer unlock()
	_, ok := p.get(key)
	p.c.Del(key)
	p.c.Wait()
	return ok, nil
}

// IncrWithDefault applies ttl on creation only; updates keep the deadline
// the entry already has.
func (p *Provider) IncrWithDefault(_ context.Context, key string, delta, def int64, ttl time.Duration) (int64, error) {
	unlock := p.locks.Lock(key)
	defer unlock()
	cur, found := p.lookup(key)
	if found {
		ttl = cur.remaining()
	}
	n, b, err := pr.Incr(cur.b, found, delta, def)
	if err != nil {
		return 0, err
	}
	if err := p.set(key, b, ttl); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *Provider) Decr(_ context.Context, key string, delta int64) (int64, bool, error) {
	unlock := p.locks.Lock(key)
	defer unlock()
	cur, found := p.lookup(key)
	if !found {
		return 0, false, nil
	}
	n, b, err := pr.Decr(cur.b, delta)
	if err != nil {
		return 0, true, err
	}
	if err := p.set(key, b, cur.remaining()); err != nil {
		return 0, true, err
	}
	return n, true, nil
}

func (p *Provider) Flush(_ context.Context) error {
	p.c.Clear()
	return nil
}

func (p *Provider) Nodes(_ context.Context) ([]string, error) {
	return []string{"local"}, nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes ristretto's counters when Config.Metrics is set.
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }
