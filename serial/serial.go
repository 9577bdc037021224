// Package serial dispatches between the payload encoding strategies an
// operation can use: the backend's own transcoder, JSON, native binary
// (msgpack, gzip over a size threshold) and caller-supplied codecs.
//
// Every strategy encodes a nil business value as Null and decodes Null back
// to the zero V, so a cached absence is never confused with a miss.
package serial

import (
	"fmt"
	"reflect"

	"github.com/unkn0wn-root/cacheflow/codec"
	"github.com/unkn0wn-root/cacheflow/provider"
)

// Type selects a strategy.
type Type uint8

const (
	Provider Type = iota
	JSON
	Native
	Custom
)

func (t Type) String() string {
	switch t {
	case Provider:
		return "provider"
	case JSON:
		return "json"
	case Native:
		return "native"
	case Custom:
		return "custom"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Serializer encodes V into a Payload and back.
// Decode reports null=true for a cached absence; v is then the zero V.
type Serializer[V any] interface {
	Type() Type
	Encode(v V) (Payload, error)
	Decode(p Payload) (v V, null bool, err error)
}

// IsNil reports whether v is a nil interface, pointer, map, slice, chan or func.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}

func undecodable(t Type, f Flags) error {
	return fmt.Errorf("%w: %s strategy cannot read flags %s", ErrUndecodable, t, f)
}

// ---- Provider ----

type providerSerializer[V any] struct {
	tc provider.Transcoder
}

// NewProvider delegates byte encoding to tc, normally the backend's own
// transcoder (see provider.TranscoderOf).
func NewProvider[V any](tc provider.Transcoder) Serializer[V] {
	if tc == nil {
		tc = provider.MsgpackTranscoder{}
	}
	return providerSerializer[V]{tc: tc}
}

func (providerSerializer[V]) Type() Type { return Provider }

func (s providerSerializer[V]) Encode(v V) (Payload, error) {
	if IsNil(v) {
		return Null, nil
	}
	b, err := s.tc.Marshal(v)
	if err != nil {
		return Payload{}, err
	}
	return Payload{Data: b}, nil
}

func (s providerSerializer[V]) Decode(p Payload) (V, bool, error) {
	var v V
	switch p.Flags {
	case FlagNull:
		return v, true, nil
	case 0:
		if err := s.tc.Unmarshal(p.Data, &v); err != nil {
			return v, false, fmt.Errorf("%w: %v", ErrUndecodable, err)
		}
		return v, false, nil
	}
	return v, false, undecodable(Provider, p.Flags)
}

// ---- JSON ----

type jsonSerializer[V any] struct {
	c codec.Codec[V]
}

// NewJSON uses mapper for the text encoding; nil means codec.JSON.
// Pass a codec.TypedJSON to keep concrete types behind interface values.
func NewJSON[V any](mapper codec.Codec[V]) Serializer[V] {
	if mapper == nil {
		mapper = codec.JSON[V]{}
	}
	return jsonSerializer[V]{c: mapper}
}

func (jsonSerializer[V]) Type() Type { return JSON }

func (s jsonSerializer[V]) Encode(v V) (Payload, error) {
	if IsNil(v) {
		return Null, nil
	}
	b, err := s.c.Encode(v)
	if err != nil {
		return Payload{}, err
	}
	return Payload{Flags: FlagJSON, Data: b}, nil
}

func (s jsonSerializer[V]) Decode(p Payload) (V, bool, error) {
	var zero V
	switch p.Flags {
	case FlagNull:
		return zero, true, nil
	case FlagJSON:
		v, err := s.c.Decode(p.Data)
		if err != nil {
			return zero, false, fmt.Errorf("%w: %v", ErrUndecodable, err)
		}
		return v, false, nil
	}
	return zero, false, undecodable(JSON, p.Flags)
}

// ---- Custom ----

type customSerializer[V any] struct {
	c   codec.Codec[V]
	raw bool
}

// NewCustom wraps a caller codec. Codecs implementing codec.Unframed
// (such as codec.Counter) are stored without a frame header.
func NewCustom[V any](c codec.Codec[V]) Serializer[V] {
	_, raw := c.(codec.Unframed)
	return customSerializer[V]{c: c, raw: raw}
}

func (customSerializer[V]) Type() Type { return Custom }

func (s customSerializer[V]) Encode(v V) (Payload, error) {
	if IsNil(v) {
		return Null, nil
	}
	b, err := s.c.Encode(v)
	if err != nil {
		return Payload{}, err
	}
	if s.raw {
		return Payload{Flags: FlagCounter, Data: b}, nil
	}
	return Payload{Data: b}, nil
}

func (s customSerializer[V]) Decode(p Payload) (V, bool, error) {
	var zero V
	switch {
	case p.Flags == FlagNull:
		return zero, true, nil
	case p.Flags == 0, p.Flags == FlagCounter && s.raw:
		v, err := s.c.Decode(p.Data)
		if err != nil {
			return zero, false, fmt.Errorf("%w: %v", ErrUndecodable, err)
		}
		return v, false, nil
	}
	return zero, false, undecodable(Custom, p.Flags)
}
