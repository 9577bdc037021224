package bigcache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/cacheflow/internal/keyutil"
	pr "github.com/unkn0wn-root/cacheflow/provider"
)

// Provider is an in-process backend over BigCache. BigCache has a single
// global LifeWindow; per-call TTLs are ignored.
type Provider struct {
	c     *bc.BigCache
	locks keyutil.Stripes
}

var _ pr.Backend = (*Provider)(nil)

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
	Shards             int // power of two; 0 = bigcache default
}

func New(cfg Config) (*Provider, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	if cfg.Shards > 0 {
		conf.Shards = cfg.Shards
	}
	conf.Verbose = false
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) get(key string) ([]byte, bool, error) {
	b, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	return p.get(key)
}

func (p *Provider) GetMulti(_ context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		b, ok, err := p.get(k)
		if err != nil {
			return nil, err
		}
		if ok {
			out[k] = b
		}
	}
	return out, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	unlock := p.locks.Lock(key)
	defer unlock()
	return p.c.Set(key, value)
}

func (p *Provider) Add(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	unlock := p.locks.Lock(key)
	defer unlock()
	_, ok, err := p.get(key)
	if err != nil || ok {
		return false, err
	}
	if err := p.c.Set(key, value); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Delete(_ context.Context, key string) (bool, error) {
	unlock := p.locks.Lock(key)
	defer unlock()
	err := p.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (p *Provider) IncrWithDefault(_ context.Context, key string, delta, def int64, _ time.Duration) (int64, error) {
	unlock := p.locks.Lock(key)
	defer unlock()
	cur, found, err := p.get(key)
	if err != nil {
		return 0, err
	}
	n, b, err := pr.Incr(cur, found, delta, def)
	if err != nil {
		return 0, err
	}
	return n, p.c.Set(key, b)
}

func (p *Provider) Decr(_ context.Context, key string, delta int64) (int64, bool, error) {
	unlock := p.locks.Lock(key)
	defer unlock()
	cur, found, err := p.get(key)
	if err != nil || !found {
		return 0, false, err
	}
	n, b, err := pr.Decr(cur, delta)
	if err != nil {
		return 0, true, err
	}
	return n, true, p.c.Set(key, b)
}

func (p *Provider) Flush(_ context.Context) error {
	return p.c.Reset()
}

func (p *Provider) Nodes(_ context.Context) ([]string, error) {
	return []string{"local"}, nil
}

func (p *Provider) Close(_ context.Context) error {
	return p.c.Close()
}
