package cacheflow

import "context"

// ReadThrough serves a single-key operation from cache, falling back to the
// producer on a miss and caching what it returns. A nil result is cached as
// an absence and served as the zero V on later hits.
type ReadThrough[V any] struct {
	op op[V]
}

func NewReadThrough[V any](e *Engine, d Descriptor, opts ...OpOption[V]) (*ReadThrough[V], error) {
	o, err := newOp(e, d, opts)
	if err != nil {
		return nil, err
	}
	return &ReadThrough[V]{op: o}, nil
}

// Get returns the cached value for args or calls produce. Key derivation
// errors are returned; backend failures never are. Producer errors are
// returned unchanged and nothing is cached.
func (r *ReadThrough[V]) Get(ctx context.Context, args []any, produce Producer[V]) (V, error) {
	e, ns := r.op.e, r.op.d.namespace
	if !e.enabled {
		return produce(ctx, args)
	}

	key, err := e.Key(r.op.d, args)
	if err != nil {
		var zero V
		return zero, err
	}

	if v, st := r.op.lookup(ctx, key); st != absent {
		e.hooks.Hit(ns, 1)
		return v, nil
	}
	e.hooks.Miss(ns, 1)

	v, err := produce(ctx, args)
	if err != nil {
		return v, err
	}
	r.op.store(ctx, key, v, false)
	return v, nil
}
