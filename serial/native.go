package serial

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultCompressionThreshold is the serialized size above which Native
// tries gzip.
const DefaultCompressionThreshold = 16 << 10

// NativeOptions tune the Native strategy.
type NativeOptions struct {
	// Threshold in bytes; 0 => DefaultCompressionThreshold, <0 disables compression.
	Threshold int
	// Ineffective is called when compression did not shrink the payload and
	// the uncompressed bytes were stored instead. Diagnostic only.
	Ineffective func(raw, compressed int)
}

type nativeSerializer[V any] struct {
	threshold   int
	ineffective func(raw, compressed int)
}

// NewNative encodes with msgpack and gzips payloads above the threshold.
func NewNative[V any](opts NativeOptions) Serializer[V] {
	th := opts.Threshold
	if th == 0 {
		th = DefaultCompressionThreshold
	}
	return nativeSerializer[V]{threshold: th, ineffective: opts.Ineffective}
}

func (nativeSerializer[V]) Type() Type { return Native }

func (s nativeSerializer[V]) Encode(v V) (Payload, error) {
	if IsNil(v) {
		return Null, nil
	}
	b, err := msgpack.Marshal(v)
	if err != nil {
		return Payload{}, err
	}
	if s.threshold < 0 || len(b) <= s.threshold {
		return Payload{Flags: FlagSerialized, Data: b}, nil
	}

	z, err := compress(b)
	if err != nil {
		return Payload{}, err
	}
	if len(z) >= len(b) {
		if s.ineffective != nil {
			s.ineffective(len(b), len(z))
		}
		return Payload{Flags: FlagSerialized, Data: b}, nil
	}
	return Payload{Flags: FlagSerialized | FlagCompressed, Data: z}, nil
}

func (s nativeSerializer[V]) Decode(p Payload) (V, bool, error) {
	var v V
	if p.Flags == FlagNull {
		return v, true, nil
	}
	data := p.Data
	switch p.Flags {
	case FlagSerialized | FlagCompressed:
		raw, err := decompress(data)
		if err != nil {
			return v, false, fmt.Errorf("%w: %v", ErrUndecodable, err)
		}
		data = raw
	case FlagSerialized:
	default:
		return v, false, undecodable(Native, p.Flags)
	}
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return v, false, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return v, false, nil
}

func compress(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(b []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
