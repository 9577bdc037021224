package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// CBOROptions tune the CBOR codec. Zero values keep fxamacker defaults.
type CBOROptions struct {
	// Deterministic uses RFC 8949 core deterministic encoding so equal values
	// produce equal bytes across processes.
	Deterministic bool
	// Strict rejects cached entries carrying fields V does not have. Off by
	// default so a rolling deploy that adds a field can still read old entries.
	Strict bool
	// Decode limits for entries written by other clients.
	MaxNestedLevels  int
	MaxArrayElements int
	MaxMapPairs      int
}

// CBOR serializes values using fxamacker/cbor. Times are RFC3339Nano strings.
// Build with NewCBOR or MustCBOR; the zero value has no modes and panics.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

func NewCBOR[V any](o CBOROptions) (CBOR[V], error) {
	eo := cbor.PreferredUnsortedEncOptions()
	if o.Deterministic {
		eo = cbor.CoreDetEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano
	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}

	do := cbor.DecOptions{
		MaxNestedLevels:  o.MaxNestedLevels,
		MaxArrayElements: o.MaxArrayElements,
		MaxMapPairs:      o.MaxMapPairs,
	}
	if o.Strict {
		do.ExtraReturnErrors = cbor.ExtraDecErrorUnknownField
	}
	dm, err := do.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

// MustCBOR panics on invalid options. Meant for package-level vars.
func MustCBOR[V any](o CBOROptions) CBOR[V] {
	c, err := NewCBOR[V](o)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CBOR[V]) Encode(v V) ([]byte, error) { return c.enc.Marshal(v) }

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}
