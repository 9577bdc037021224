package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var ErrUnknownType = errors.New("typed json: unknown type tag")

// Registry maps short aliases to concrete Go types for TypedJSON. Types
// without an alias are tagged with their qualified name (pkgpath.Name).
// A Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	byTag   map[string]reflect.Type
	aliasOf map[reflect.Type]string
}

func NewRegistry() *Registry {
	return &Registry{
		byTag:   make(map[string]reflect.Type),
		aliasOf: make(map[reflect.Type]string),
	}
}

// Register records sample's dynamic type. An empty alias registers the type
// under its qualified name only.
func (r *Registry) Register(alias string, sample any) error {
	t := reflect.TypeOf(sample)
	if t == nil {
		return errors.New("typed json: nil sample")
	}
	qn := qualifiedName(t)

	r.mu.Lock()
	defer r.mu.Unlock()
	if alias != "" {
		if prev, ok := r.byTag[alias]; ok && prev != t {
			return fmt.Errorf("typed json: alias %q already bound to %s", alias, prev)
		}
		r.byTag[alias] = t
		r.aliasOf[t] = alias
	}
	r.byTag[qn] = t
	return nil
}

func (r *Registry) tagFor(t reflect.Type) string {
	r.mu.RLock()
	alias, ok := r.aliasOf[t]
	r.mu.RUnlock()
	if ok {
		return alias
	}
	return qualifiedName(t)
}

func (r *Registry) lookup(tag string) (reflect.Type, bool) {
	r.mu.RLock()
	t, ok := r.byTag[tag]
	r.mu.RUnlock()
	return t, ok
}

func qualifiedName(t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		return "*" + qualifiedName(t.Elem())
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

type envelope struct {
	Type  string          `json:"@type"`
	Value json.RawMessage `json:"value"`
}

// TypedJSON encodes V as {"@type": tag, "value": ...}. It is meant for
// interface-typed V where the concrete type must survive the round trip;
// decoding resolves the tag through Registry.
type TypedJSON[V any] struct {
	Registry *Registry
}

func (c TypedJSON[V]) Encode(v V) ([]byte, error) {
	if c.Registry == nil {
		return nil, errors.New("typed json: nil registry")
	}
	t := reflect.TypeOf(any(v))
	if t == nil {
		return nil, errors.New("typed json: cannot tag a nil value")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: c.Registry.tagFor(t), Value: raw})
}

func (c TypedJSON[V]) Decode(b []byte) (V, error) {
	var zero V
	if c.Registry == nil {
		return zero, errors.New("typed json: nil registry")
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return zero, err
	}
	t, ok := c.Registry.lookup(env.Type)
	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	var out reflect.Value
	if t.Kind() == reflect.Ptr {
		out = reflect.New(t.Elem())
		if err := json.Unmarshal(env.Value, out.Interface()); err != nil {
			return zero, err
		}
	} else {
		p := reflect.New(t)
		if err := json.Unmarshal(env.Value, p.Interface()); err != nil {
			return zero, err
		}
		out = p.Elem()
	}

	v, ok := out.Interface().(V)
	if !ok {
		return zero, fmt.Errorf("typed json: %s is not assignable to %T", t, zero)
	}
	return v, nil
}
