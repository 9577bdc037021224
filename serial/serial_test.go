package serial

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/unkn0wn-root/cacheflow/codec"
)

type doc struct {
	ID    string            `json:"id" msgpack:"id"`
	Tags  []string          `json:"tags" msgpack:"tags"`
	Attrs map[string]string `json:"attrs" msgpack:"attrs"`
}

func strategies() []Serializer[*doc] {
	return []Serializer[*doc]{
		NewProvider[*doc](nil),
		NewJSON[*doc](nil),
		NewNative[*doc](NativeOptions{}),
		NewCustom[*doc](codec.Msgpack[*doc]{}),
	}
}

// roundTrip goes through the backend byte form, as the engine does.
func roundTrip[V any](t *testing.T, s Serializer[V], v V) (V, bool) {
	t.Helper()
	p, err := s.Encode(v)
	if err != nil {
		t.Fatalf("%s Encode: %v", s.Type(), err)
	}
	back, err := Parse(p.Bytes())
	if err != nil {
		t.Fatalf("%s Parse: %v", s.Type(), err)
	}
	got, null, err := s.Decode(back)
	if err != nil {
		t.Fatalf("%s Decode: %v", s.Type(), err)
	}
	return got, null
}

func TestRoundTripEveryStrategy(t *testing.T) {
	in := &doc{ID: "d1", Tags: []string{"a", "b"}, Attrs: map[string]string{"k": "v"}}
	for _, s := range strategies() {
		t.Run(s.Type().String(), func(t *testing.T) {
			got, null := roundTrip(t, s, in)
			if null || !reflect.DeepEqual(got, in) {
				t.Fatalf("got %+v (null=%v), want %+v", got, null, in)
			}
		})
	}
}

func TestNullRoundTrip(t *testing.T) {
	for _, s := range strategies() {
		t.Run(s.Type().String(), func(t *testing.T) {
			p, err := s.Encode(nil)
			if err != nil || !p.IsNull() {
				t.Fatalf("Encode(nil) = %+v, %v", p, err)
			}
			got, null := roundTrip[*doc](t, s, nil)
			if !null || got != nil {
				t.Fatalf("got %+v null=%v", got, null)
			}
		})
	}
}

func TestDecodeRejectsForeignFlags(t *testing.T) {
	foreign := []Payload{
		{Flags: FlagJSON | FlagCompressed, Data: []byte("{}")},
		{Flags: FlagCounter | FlagSerialized, Data: []byte("1")},
		{Flags: 0x80, Data: []byte("x")},
	}
	for _, s := range strategies() {
		for _, p := range foreign {
			if _, _, err := s.Decode(p); !errors.Is(err, ErrUndecodable) {
				t.Fatalf("%s.Decode(%s) err = %v, want ErrUndecodable", s.Type(), p.Flags, err)
			}
		}
	}
	// each strategy refuses the others' flags
	if _, _, err := NewJSON[*doc](nil).Decode(Payload{Flags: FlagSerialized}); !errors.Is(err, ErrUndecodable) {
		t.Fatalf("json read native flags: %v", err)
	}
	if _, _, err := NewNative[*doc](NativeOptions{}).Decode(Payload{Flags: FlagJSON}); !errors.Is(err, ErrUndecodable) {
		t.Fatalf("native read json flags: %v", err)
	}
}

func TestDecodeCorruptDataIsUndecodable(t *testing.T) {
	if _, _, err := NewJSON[*doc](nil).Decode(Payload{Flags: FlagJSON, Data: []byte("{")}); !errors.Is(err, ErrUndecodable) {
		t.Fatalf("json: %v", err)
	}
	if _, _, err := NewNative[*doc](NativeOptions{}).Decode(Payload{Flags: FlagSerialized | FlagCompressed, Data: []byte("not gzip")}); !errors.Is(err, ErrUndecodable) {
		t.Fatalf("native gzip: %v", err)
	}
}

func TestNativeCompression(t *testing.T) {
	var ineffective [][2]int
	s := NewNative[string](NativeOptions{
		Threshold:   32,
		Ineffective: func(raw, z int) { ineffective = append(ineffective, [2]int{raw, z}) },
	})

	small, _ := s.Encode("short")
	if small.Flags != FlagSerialized {
		t.Fatalf("small flags = %s", small.Flags)
	}

	big, _ := s.Encode(strings.Repeat("abc", 1000))
	if big.Flags != FlagSerialized|FlagCompressed {
		t.Fatalf("big flags = %s", big.Flags)
	}
	if got, _ := roundTrip(t, s, strings.Repeat("abc", 1000)); got != strings.Repeat("abc", 1000) {
		t.Fatalf("compressed round trip mismatch")
	}

	// random-looking bytes do not shrink; stored uncompressed and reported
	noise := make([]byte, 64)
	x := uint32(2463534242)
	for i := range noise {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		noise[i] = byte(x)
	}
	p, _ := s.Encode(string(noise))
	if p.Flags != FlagSerialized || len(ineffective) != 1 {
		t.Fatalf("flags = %s, ineffective = %v", p.Flags, ineffective)
	}
	if ineffective[0][1] < ineffective[0][0] {
		t.Fatalf("reported a shrinking attempt as ineffective: %v", ineffective[0])
	}

	off := NewNative[string](NativeOptions{Threshold: -1})
	if p, _ := off.Encode(strings.Repeat("abc", 1000)); p.Flags != FlagSerialized {
		t.Fatalf("disabled compression still compressed")
	}
}

func TestCustomCounterIsUnframed(t *testing.T) {
	s := NewCustom[int64](codec.Counter{})
	p, err := s.Encode(42)
	if err != nil || p.Flags != FlagCounter {
		t.Fatalf("Encode = %+v, %v", p, err)
	}
	if !bytes.Equal(p.Bytes(), []byte("42")) {
		t.Fatalf("stored %q, want bare decimal", p.Bytes())
	}
	if got, _ := roundTrip(t, s, int64(-7)); got != -7 {
		t.Fatalf("got %d", got)
	}
}

func TestParse(t *testing.T) {
	if p, err := Parse([]byte("123")); err != nil || p.Flags != FlagCounter {
		t.Fatalf("decimal: %+v, %v", p, err)
	}
	if _, err := Parse([]byte("hello")); !errors.Is(err, ErrUndecodable) {
		t.Fatalf("garbage: %v", err)
	}
	if _, err := Parse(nil); !errors.Is(err, ErrUndecodable) {
		t.Fatalf("empty: %v", err)
	}
	bad := Payload{Flags: FlagNull | FlagJSON, Data: []byte("x")}.Bytes()
	if _, err := Parse(bad); !errors.Is(err, ErrUndecodable) {
		t.Fatalf("null with data: %v", err)
	}
	trunc := Payload{Flags: FlagJSON, Data: []byte("{}")}.Bytes()
	if _, err := Parse(trunc[:len(trunc)-1]); !errors.Is(err, ErrUndecodable) {
		t.Fatalf("truncated: %v", err)
	}
}

func TestFlagsString(t *testing.T) {
	cases := []struct {
		f    Flags
		want string
	}{
		{0, "raw"},
		{FlagSerialized | FlagCompressed, "serialized|compressed"},
		{FlagNull, "null"},
		{FlagJSON | 0x80, "json|0x80"},
	}
	for _, tc := range cases {
		if got := tc.f.String(); got != tc.want {
			t.Fatalf("%d.String() = %q, want %q", uint8(tc.f), got, tc.want)
		}
	}
}
