package codec

import "encoding/json"

// JSON encodes with encoding/json. Types implementing json.Marshaler use
// their own encoding; everything else gets the default structural one.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
