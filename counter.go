package cacheflow

import (
	"context"

	"github.com/unkn0wn-root/cacheflow/codec"
)

// Counter operates on a numeric entry stored as a plain decimal so the
// backend can increment it atomically. Every backend failure is contained:
// the affected call reports ok=false and the caller's own work goes on.
//
// Updates and increments on the same key are not serialized against each
// other here; the backend decides the order.
type Counter struct {
	e *Engine
	d Descriptor
}

func NewCounter(e *Engine, d Descriptor) (*Counter, error) {
	if e == nil {
		return nil, invalidParam("nil engine")
	}
	if !d.built {
		return nil, invalidParam("descriptor not built")
	}
	return &Counter{e: e, d: d}, nil
}

// Read returns the counter, seeding it with seed if absent. Seeding goes
// through the backend's increment-with-default in a single call, so
// concurrent first reads agree on one value.
func (c *Counter) Read(ctx context.Context, args []any, seed int64) (n int64, ok bool, err error) {
	if seed < 0 {
		return 0, false, invalidParam("%q: negative counter seed", c.d.namespace)
	}
	key, err := c.key(args)
	if err != nil || key == "" {
		return seed, false, err
	}
	n, ok = c.incr(ctx, key, 0, seed)
	if !ok {
		return seed, false, nil
	}
	return n, true, nil
}

// ReadThrough returns the cached counter or, when it is absent, seeds it
// with the value produce returns. If another caller seeded first, that
// value wins and is returned.
func (c *Counter) ReadThrough(ctx context.Context, args []any, produce Producer[int64]) (int64, error) {
	e, ns := c.e, c.d.namespace
	if !e.enabled {
		return produce(ctx, args)
	}
	key, err := c.key(args)
	if err != nil {
		return 0, err
	}

	var (
		raw   []byte
		found bool
	)
	gerr := e.contain(ctx, opGet, ns, key, func(ctx context.Context) error {
		var err error
		raw, found, err = e.backend.Get(ctx, key)
		return err
	})
	if gerr == nil && found {
		n, derr := codec.Counter{}.Decode(raw)
		if derr == nil {
			e.hooks.Hit(ns, 1)
			return n, nil
		}
		e.log.Warn("undecodable counter; treating as miss", keyFields(ns, key, derr))
		e.hooks.Undecodable(key, derr)
	}
	e.hooks.Miss(ns, 1)

	v, err := produce(ctx, args)
	if err != nil {
		return v, err
	}
	if v < 0 {
		e.log.Debug("negative counter value not cached", keyFields(ns, key, nil))
		return v, nil
	}
	if gerr == nil && found {
		// an undecodable entry would make increment fail; overwrite it
		c.set(ctx, key, v)
		return v, nil
	}
	if n, ok := c.incr(ctx, key, 0, v); ok {
		return n, nil
	}
	return v, nil
}

// Increment adds delta. An absent counter is created holding delta.
func (c *Counter) Increment(ctx context.Context, args []any, delta int64) (n int64, ok bool, err error) {
	if delta < 0 {
		return 0, false, invalidParam("%q: negative delta", c.d.namespace)
	}
	key, err := c.key(args)
	if err != nil || key == "" {
		return 0, false, err
	}
	n, ok = c.incr(ctx, key, delta, delta)
	return n, ok, nil
}

// Decrement subtracts delta, flooring at zero. An absent counter is left
// absent and reported as ok=false.
func (c *Counter) Decrement(ctx context.Context, args []any, delta int64) (n int64, ok bool, err error) {
	if delta < 0 {
		return 0, false, invalidParam("%q: negative delta", c.d.namespace)
	}
	key, err := c.key(args)
	if err != nil || key == "" {
		return 0, false, err
	}
	var found bool
	derr := c.e.contain(ctx, opDecr, c.d.namespace, key, func(ctx context.Context) error {
		var err error
		n, found, err = c.e.backend.Decr(ctx, key, delta)
		return err
	})
	if derr != nil {
		return 0, false, nil
	}
	if !found {
		c.e.log.Debug("decrement of absent counter ignored", keyFields(c.d.namespace, key, nil))
		return 0, false, nil
	}
	return n, true, nil
}

// Update overwrites the counter with value. Later increments keep working
// because the value is stored as a bare decimal.
func (c *Counter) Update(ctx context.Context, args []any, value int64) (ok bool, err error) {
	if value < 0 {
		return false, invalidParam("%q: negative counter value", c.d.namespace)
	}
	key, err := c.key(args)
	if err != nil || key == "" {
		return false, err
	}
	return c.set(ctx, key, value), nil
}

// key returns "" with no error when caching is disabled.
func (c *Counter) key(args []any) (string, error) {
	if !c.e.enabled {
		return "", nil
	}
	return c.e.Key(c.d, args)
}

func (c *Counter) incr(ctx context.Context, key string, delta, def int64) (n int64, ok bool) {
	ttl := c.e.ttl(c.d)
	err := c.e.contain(ctx, opIncr, c.d.namespace, key, func(ctx context.Context) error {
		var err error
		n, err = c.e.backend.IncrWithDefault(ctx, key, delta, def, ttl)
		return err
	})
	return n, err == nil
}

func (c *Counter) set(ctx context.Context, key string, v int64) bool {
	b, _ := codec.Counter{}.Encode(v)
	ttl := c.e.ttl(c.d)
	err := c.e.contain(ctx, opSet, c.d.namespace, key, func(ctx context.Context) error {
		return c.e.backend.Set(ctx, key, b, ttl)
	})
	return err == nil
}
