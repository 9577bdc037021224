package cacheflow

import "context"

// MultiReadThrough serves a batch operation: cached elements come from one
// multi-get, the rest from a single producer call that only sees the misses.
// The result always lines up with the input batch, duplicates included.
type MultiReadThrough[V any] struct {
	op op[V]
}

func NewMultiReadThrough[V any](e *Engine, d Descriptor, opts ...OpOption[V]) (*MultiReadThrough[V], error) {
	if d.assigned() {
		return nil, invalidParam("%q: assigned key cannot drive a batch", d.namespace)
	}
	o, err := newOp(e, d, opts)
	if err != nil {
		return nil, err
	}
	return &MultiReadThrough[V]{op: o}, nil
}

// Get resolves every element of the batch argument in args.
//
// Distinct keys are fetched once. Keys that miss (absent, undecodable or
// unreachable) are passed to produce in first-occurrence order, as a slice of
// the batch argument's type, and produce must return exactly one value per
// element. A length mismatch is a *ContractError and nothing is cached.
func (m *MultiReadThrough[V]) Get(ctx context.Context, args []any, produce MultiProducer[V]) ([]V, error) {
	e, ns := m.op.e, m.op.d.namespace
	if !e.enabled {
		return produce(ctx, args)
	}

	b, err := e.batch(m.op.d, args)
	if err != nil {
		return nil, err
	}
	if len(b.keys) == 0 {
		return []V{}, nil
	}

	// distinct keys in first-occurrence order
	distinct := make([]string, 0, len(b.keys))
	first := make(map[string]int, len(b.keys))
	for i, k := range b.keys {
		if _, seen := first[k]; !seen {
			first[k] = i
			distinct = append(distinct, k)
		}
	}

	var raw map[string][]byte
	_ = e.contain(ctx, opGetMulti, ns, distinct[0], func(ctx context.Context) error {
		var err error
		raw, err = e.backend.GetMulti(ctx, distinct)
		return err
	})

	resolved := make(map[string]V, len(distinct))
	var misses []string
	for _, k := range distinct {
		if data, ok := raw[k]; ok {
			if v, st := m.op.decode(k, data); st != absent {
				resolved[k] = v
				continue
			}
		}
		misses = append(misses, k)
	}
	if hits := len(distinct) - len(misses); hits > 0 {
		e.hooks.Hit(ns, hits)
	}

	if len(misses) > 0 {
		e.hooks.Miss(ns, len(misses))
		positions := make([]int, len(misses))
		for i, k := range misses {
			positions[i] = first[k]
		}
		vals, err := produce(ctx, b.subset(args, positions))
		if err != nil {
			return nil, err
		}
		if len(vals) != len(misses) {
			cerr := &ContractError{Namespace: ns, Want: len(misses), Got: len(vals)}
			e.log.Error("batch producer broke its contract", Fields{"ns": ns, "want": cerr.Want, "got": cerr.Got})
			e.hooks.ContractViolation(ns, cerr)
			return nil, cerr
		}
		for i, k := range misses {
			m.op.store(ctx, k, vals[i], false)
			resolved[k] = vals[i]
		}
	}

	out := make([]V, len(b.keys))
	for i, k := range b.keys {
		out[i] = resolved[k]
	}
	return out, nil
}
