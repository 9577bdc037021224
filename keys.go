package cacheflow

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/unkn0wn-root/cacheflow/internal/keyutil"
)

// CacheKeyable is implemented by key argument types that are not scalars.
// CacheKey must be deterministic and return a non-empty string.
type CacheKeyable interface {
	CacheKey() string
}

// keyComponent turns one key argument into its key component.
// Order: CacheKeyable, scalar kinds, fmt.Stringer.
func keyComponent(v any) (string, error) {
	if v == nil {
		return "", ErrNullKeyArgument
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return "", ErrNullKeyArgument
	}

	var s string
	switch x := v.(type) {
	case CacheKeyable:
		s = x.CacheKey()
	default:
		var ok bool
		if s, ok = scalar(rv); !ok {
			st, isStringer := v.(fmt.Stringer)
			if !isStringer {
				return "", fmt.Errorf("%w: %T", ErrInvalidKeyMethod, v)
			}
			s = st.String()
		}
	}
	if s == "" {
		return "", ErrEmptyKeyValue
	}
	return s, nil
}

func scalar(rv reflect.Value) (string, bool) {
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32), true
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), true
	}
	return "", false
}

// isBatch reports whether v is a sequence of keys. []byte is not.
func isBatch(v any) bool {
	if v == nil {
		return false
	}
	t := reflect.TypeOf(v)
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return t.Elem().Kind() != reflect.Uint8
	}
	return false
}

type keyBuilder struct {
	name      string
	prefix    bool
	prefixSep string
	sep       string
	max       int
}

func (kb keyBuilder) finish(k string) string {
	if kb.prefix {
		k = kb.name + kb.prefixSep + k
	}
	return keyutil.Shorten(k, kb.max)
}

func (kb keyBuilder) build(namespace string, components []string) (string, error) {
	if namespace == "" {
		return "", invalidParam("empty namespace")
	}
	if len(components) == 0 {
		return "", invalidParam("%q: no key components", namespace)
	}
	return kb.finish(namespace + kb.sep + strings.Join(components, componentSeparator)), nil
}

func (kb keyBuilder) assign(namespace, assigned string) (string, error) {
	if namespace == "" {
		return "", invalidParam("empty namespace")
	}
	if assigned == "" {
		return "", invalidParam("%q: empty assigned key", namespace)
	}
	return kb.finish(namespace + kb.sep + assigned), nil
}

// BuildKey joins components under namespace, applying the engine's name
// prefix and key length policy.
func (e *Engine) BuildKey(namespace string, components ...string) (string, error) {
	return e.keys.build(namespace, components)
}

// BuildAssignKey builds the fixed key of an assign-style operation.
func (e *Engine) BuildAssignKey(namespace, assigned string) (string, error) {
	return e.keys.assign(namespace, assigned)
}

// Key derives the storage key of a single or assign operation.
func (e *Engine) Key(d Descriptor, args []any) (string, error) {
	if !d.built {
		return "", invalidParam("descriptor not built")
	}
	if d.assigned() {
		return e.keys.assign(d.namespace, d.assignedKey)
	}
	comps := make([]string, len(d.keyIndices))
	for i, idx := range d.keyIndices {
		c, err := argComponent(d, args, idx)
		if err != nil {
			return "", err
		}
		comps[i] = c
	}
	return e.keys.build(d.namespace, comps)
}

func argComponent(d Descriptor, args []any, idx int) (string, error) {
	if idx >= len(args) {
		return "", &KeyError{Namespace: d.namespace, Index: idx, Elem: -1, Err: ErrMissingArgument}
	}
	c, err := keyComponent(args[idx])
	if err != nil {
		return "", &KeyError{Namespace: d.namespace, Index: idx, Elem: -1, Err: err}
	}
	return c, nil
}

// batch is the derived view of a multi-key call: which argument carries the
// keys, its elements and one storage key per element, in input order.
type batch struct {
	index int
	elems reflect.Value
	keys  []string
}

// Keys derives one storage key per element of the batch argument, the first
// key argument holding a slice or array. Other key arguments contribute the
// same component to every key.
func (e *Engine) Keys(d Descriptor, args []any) ([]string, error) {
	b, err := e.batch(d, args)
	if err != nil {
		return nil, err
	}
	return b.keys, nil
}

func (e *Engine) batch(d Descriptor, args []any) (batch, error) {
	if !d.built {
		return batch{}, invalidParam("descriptor not built")
	}
	if d.assigned() {
		return batch{}, invalidParam("%q: assigned key cannot drive a batch", d.namespace)
	}

	b := batch{index: -1}
	fixed := make([]string, len(d.keyIndices))
	pos := -1
	for i, idx := range d.keyIndices {
		if idx >= len(args) {
			return batch{}, &KeyError{Namespace: d.namespace, Index: idx, Elem: -1, Err: ErrMissingArgument}
		}
		if b.index < 0 && isBatch(args[idx]) {
			b.index, pos = idx, i
			continue
		}
		c, err := argComponent(d, args, idx)
		if err != nil {
			return batch{}, err
		}
		fixed[i] = c
	}
	if b.index < 0 {
		return batch{}, invalidParam("%q: no key argument is a slice", d.namespace)
	}

	b.elems = reflect.ValueOf(args[b.index])
	if b.elems.Kind() == reflect.Slice && b.elems.IsNil() {
		return b, nil
	}
	n := b.elems.Len()
	b.keys = make([]string, n)
	comps := make([]string, len(fixed))
	for j := 0; j < n; j++ {
		copy(comps, fixed)
		c, err := keyComponent(b.elems.Index(j).Interface())
		if err != nil {
			return batch{}, &KeyError{Namespace: d.namespace, Index: b.index, Elem: j, Err: err}
		}
		comps[pos] = c
		k, err := e.keys.build(d.namespace, comps)
		if err != nil {
			return batch{}, err
		}
		b.keys[j] = k
	}
	return b, nil
}

// subset returns a copy of args whose batch argument holds only the
// elements at positions, in that order, as a slice of the original type
// (arrays become slices of their element type).
func (b batch) subset(args []any, positions []int) []any {
	out := append([]any(nil), args...)
	st := b.elems.Type()
	if st.Kind() == reflect.Array {
		st = reflect.SliceOf(st.Elem())
	}
	sub := reflect.MakeSlice(st, 0, len(positions))
	for _, p := range positions {
		sub = reflect.Append(sub, b.elems.Index(p))
	}
	out[b.index] = sub.Interface()
	return out
}

// keysFor derives the keys an update or eviction touches.
func (e *Engine) keysFor(d Descriptor, args []any) ([]string, error) {
	if !d.assigned() {
		for _, idx := range d.keyIndices {
			if idx < len(args) && isBatch(args[idx]) {
				return e.Keys(d, args)
			}
		}
	}
	k, err := e.Key(d, args)
	if err != nil {
		return nil, err
	}
	return []string{k}, nil
}
