// Package codec holds the value codecs used by the serial strategies.
//
// A Codec turns a V into bytes and back. It never sees null markers or
// frame headers; those belong to package serial.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Unframed is implemented by codecs whose output must reach the backend
// as-is, without a frame header (e.g. counters the backend increments).
type Unframed interface {
	Unframed()
}
