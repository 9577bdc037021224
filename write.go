package cacheflow

import "context"

// Update writes through after a successful business call. The cached value
// is the producer's return value (Describe(...).ReturnsData()) or the data
// argument (Describe(...).Data(i)).
type Update[V any] struct {
	op op[V]
}

func NewUpdate[V any](e *Engine, d Descriptor, opts ...OpOption[V]) (*Update[V], error) {
	if !d.returnsData && d.dataIndex == noData {
		return nil, invalidParam("%q: update needs a data argument or returned data", d.namespace)
	}
	o, err := newOp(e, d, opts)
	if err != nil {
		return nil, err
	}
	return &Update[V]{op: o}, nil
}

// Do runs produce and, if it succeeds, caches the data. The key is derived
// before produce runs so a broken call site never reaches the business
// call. Cache failures do not affect the result.
func (u *Update[V]) Do(ctx context.Context, args []any, produce Producer[V]) (V, error) {
	e := u.op.e
	if !e.enabled {
		return produce(ctx, args)
	}
	var zero V
	key, err := e.Key(u.op.d, args)
	if err != nil {
		return zero, err
	}
	var data V
	if !u.op.d.returnsData {
		if data, err = dataArg[V](u.op.d, args); err != nil {
			return zero, err
		}
	}

	v, err := produce(ctx, args)
	if err != nil {
		return v, err
	}
	if u.op.d.returnsData {
		data = v
	}
	u.op.store(ctx, key, data, u.op.addOnly)
	return v, nil
}

// Put caches v under the key derived from args without running anything.
// stored reports whether the backend accepted the write.
func (u *Update[V]) Put(ctx context.Context, args []any, v V) (stored bool, err error) {
	return u.put(ctx, args, v, u.op.addOnly)
}

// Add is Put that only stores when the key is absent.
func (u *Update[V]) Add(ctx context.Context, args []any, v V) (stored bool, err error) {
	return u.put(ctx, args, v, true)
}

func (u *Update[V]) put(ctx context.Context, args []any, v V, add bool) (bool, error) {
	if !u.op.e.enabled {
		return false, nil
	}
	key, err := u.op.e.Key(u.op.d, args)
	if err != nil {
		return false, err
	}
	return u.op.store(ctx, key, v, add), nil
}

func dataArg[V any](d Descriptor, args []any) (V, error) {
	var zero V
	if d.dataIndex >= len(args) {
		return zero, &KeyError{Namespace: d.namespace, Index: d.dataIndex, Elem: -1, Err: ErrMissingArgument}
	}
	a := args[d.dataIndex]
	if a == nil {
		return zero, nil
	}
	v, ok := a.(V)
	if !ok {
		return zero, invalidParam("%q: data argument %d is %T, want %T", d.namespace, d.dataIndex, a, zero)
	}
	return v, nil
}

// MultiUpdate writes one value per element of the batch argument after a
// successful business call.
type MultiUpdate[V any] struct {
	op op[V]
}

func NewMultiUpdate[V any](e *Engine, d Descriptor, opts ...OpOption[V]) (*MultiUpdate[V], error) {
	if d.assigned() {
		return nil, invalidParam("%q: assigned key cannot drive a batch", d.namespace)
	}
	if !d.returnsData && d.dataIndex == noData {
		return nil, invalidParam("%q: update needs a data argument or returned data", d.namespace)
	}
	o, err := newOp(e, d, opts)
	if err != nil {
		return nil, err
	}
	return &MultiUpdate[V]{op: o}, nil
}

// Do runs produce and caches data element i under key i. The data argument
// must be a []V; a returned slice must match the batch length.
func (m *MultiUpdate[V]) Do(ctx context.Context, args []any, produce MultiProducer[V]) ([]V, error) {
	e, d := m.op.e, m.op.d
	if !e.enabled {
		return produce(ctx, args)
	}
	keys, err := e.Keys(d, args)
	if err != nil {
		return nil, err
	}
	var data []V
	if !d.returnsData {
		if d.dataIndex >= len(args) {
			return nil, &KeyError{Namespace: d.namespace, Index: d.dataIndex, Elem: -1, Err: ErrMissingArgument}
		}
		var ok bool
		if data, ok = args[d.dataIndex].([]V); !ok {
			return nil, invalidParam("%q: data argument %d is %T, want []%T", d.namespace, d.dataIndex, args[d.dataIndex], *new(V))
		}
	}

	vals, err := produce(ctx, args)
	if err != nil {
		return vals, err
	}
	if d.returnsData {
		data = vals
	}
	if len(data) != len(keys) {
		cerr := &ContractError{Namespace: d.namespace, Want: len(keys), Got: len(data)}
		e.log.Error("batch data does not match its keys; not cached", Fields{"ns": d.namespace, "want": cerr.Want, "got": cerr.Got})
		e.hooks.ContractViolation(d.namespace, cerr)
		return vals, cerr
	}
	for i, k := range keys {
		m.op.store(ctx, k, data[i], m.op.addOnly)
	}
	return vals, nil
}

// Invalidate evicts the keys of a call around the business call: after it
// succeeds by default, or before it runs when the descriptor says
// InvalidateBefore. Batch arguments evict one key per element.
type Invalidate struct {
	e *Engine
	d Descriptor
}

func NewInvalidate(e *Engine, d Descriptor) (*Invalidate, error) {
	if e == nil {
		return nil, invalidParam("nil engine")
	}
	if !d.built {
		return nil, invalidParam("descriptor not built")
	}
	return &Invalidate{e: e, d: d}, nil
}

// Do runs run with eviction ordered around it. A failing run is returned
// unchanged and, in the default mode, evicts nothing.
func (inv *Invalidate) Do(ctx context.Context, args []any, run func(ctx context.Context) error) error {
	if !inv.e.enabled {
		return run(ctx)
	}
	keys, err := inv.e.keysFor(inv.d, args)
	if err != nil {
		return err
	}
	if inv.d.invalidateBefore {
		inv.evict(ctx, keys)
		return run(ctx)
	}
	if err := run(ctx); err != nil {
		return err
	}
	inv.evict(ctx, keys)
	return nil
}

// Evict removes the keys derived from args now.
func (inv *Invalidate) Evict(ctx context.Context, args []any) error {
	if !inv.e.enabled {
		return nil
	}
	keys, err := inv.e.keysFor(inv.d, args)
	if err != nil {
		return err
	}
	inv.evict(ctx, keys)
	return nil
}

func (inv *Invalidate) evict(ctx context.Context, keys []string) {
	for _, k := range keys {
		_ = inv.e.contain(ctx, opDelete, inv.d.namespace, k, func(ctx context.Context) error {
			_, err := inv.e.backend.Delete(ctx, k)
			return err
		})
	}
}
