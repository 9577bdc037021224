package cacheflow

import (
	"context"
	"errors"

	"github.com/unkn0wn-root/cacheflow/codec"
	"github.com/unkn0wn-root/cacheflow/serial"
)

// OpOption customizes a typed operation.
type OpOption[V any] func(*opConfig[V])

type opConfig[V any] struct {
	codec      codec.Codec[V]
	serializer serial.Serializer[V]
	addOnly    bool
}

// WithCodec supplies the codec used by serial.Custom descriptors, or the
// JSON mapper used by serial.JSON descriptors.
func WithCodec[V any](c codec.Codec[V]) OpOption[V] {
	return func(o *opConfig[V]) { o.codec = c }
}

// WithSerializer overrides the strategy picked from the descriptor.
func WithSerializer[V any](s serial.Serializer[V]) OpOption[V] {
	return func(o *opConfig[V]) { o.serializer = s }
}

// AddOnly makes update operations store only when the key is absent.
func AddOnly[V any]() OpOption[V] {
	return func(o *opConfig[V]) { o.addOnly = true }
}

// op is what every typed operation is built on: a descriptor bound to an
// engine and a serializer.
type op[V any] struct {
	e       *Engine
	d       Descriptor
	ser     serial.Serializer[V]
	addOnly bool
}

func newOp[V any](e *Engine, d Descriptor, opts []OpOption[V]) (op[V], error) {
	if e == nil {
		return op[V]{}, invalidParam("nil engine")
	}
	if !d.built {
		return op[V]{}, invalidParam("descriptor not built")
	}
	var cfg opConfig[V]
	for _, o := range opts {
		o(&cfg)
	}
	ser := cfg.serializer
	if ser == nil {
		var err error
		if ser, err = serializerFor(e, d, cfg.codec); err != nil {
			return op[V]{}, err
		}
	}
	return op[V]{e: e, d: d, ser: ser, addOnly: cfg.addOnly}, nil
}

func serializerFor[V any](e *Engine, d Descriptor, c codec.Codec[V]) (serial.Serializer[V], error) {
	switch d.serialization {
	case serial.Provider:
		return serial.NewProvider[V](e.transcoder), nil
	case serial.JSON:
		return serial.NewJSON[V](c), nil
	case serial.Native:
		ns := d.namespace
		nopts := serial.NativeOptions{Threshold: e.threshold}
		nopts.Ineffective = func(raw, compressed int) {
			e.log.Debug("compression did not shrink payload", Fields{"ns": ns, "raw": raw, "compressed": compressed})
		}
		return serial.NewNative[V](nopts), nil
	case serial.Custom:
		if c == nil {
			return nil, invalidParam("%q: custom serialization needs a codec", d.namespace)
		}
		return serial.NewCustom[V](c), nil
	}
	return nil, invalidParam("%q: unknown serialization %s", d.namespace, d.serialization)
}

type lookupState uint8

const (
	absent lookupState = iota
	cachedNull
	cachedValue
)

// lookup fetches and decodes key. Backend failures and undecodable entries
// both come back as absent.
func (o op[V]) lookup(ctx context.Context, key string) (V, lookupState) {
	var (
		raw   []byte
		found bool
		zero  V
	)
	err := o.e.contain(ctx, opGet, o.d.namespace, key, func(ctx context.Context) error {
		var err error
		raw, found, err = o.e.backend.Get(ctx, key)
		return err
	})
	if err != nil || !found {
		return zero, absent
	}
	return o.decode(key, raw)
}

func (o op[V]) decode(key string, raw []byte) (V, lookupState) {
	var zero V
	p, err := serial.Parse(raw)
	if err == nil {
		v, null, derr := o.ser.Decode(p)
		if derr == nil {
			if null {
				return zero, cachedNull
			}
			return v, cachedValue
		}
		err = derr
	}
	if !errors.Is(err, serial.ErrUndecodable) {
		err = errors.Join(serial.ErrUndecodable, err)
	}
	o.e.log.Warn("undecodable cache entry; treating as miss", keyFields(o.d.namespace, key, err))
	o.e.hooks.Undecodable(key, err)
	return zero, absent
}

// store encodes v and writes it under key. Encoding and backend failures
// are contained; ok reports whether the value reached the backend.
func (o op[V]) store(ctx context.Context, key string, v V, add bool) (ok bool) {
	p, err := o.ser.Encode(v)
	if err != nil {
		o.e.log.Warn("cannot encode value; not cached", keyFields(o.d.namespace, key, err))
		o.e.hooks.Degraded(opEncode, o.d.namespace, err)
		return false
	}
	b := p.Bytes()
	ttl := o.e.ttl(o.d)
	if add {
		var stored bool
		err = o.e.contain(ctx, opAdd, o.d.namespace, key, func(ctx context.Context) error {
			var err error
			stored, err = o.e.backend.Add(ctx, key, b, ttl)
			return err
		})
		return err == nil && stored
	}
	err = o.e.contain(ctx, opSet, o.d.namespace, key, func(ctx context.Context) error {
		return o.e.backend.Set(ctx, key, b, ttl)
	})
	return err == nil
}
