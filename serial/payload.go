package serial

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/cacheflow/codec"
	"github.com/unkn0wn-root/cacheflow/internal/wire"
)

// ErrUndecodable marks an entry whose flags or bytes no strategy recognizes.
// It is permanent for that entry: a format or version mismatch, never a
// transient backend condition.
var ErrUndecodable = errors.New("cacheflow: undecodable structure")

// Flags describe how Payload.Data was produced.
type Flags uint8

const (
	FlagSerialized Flags = 1 << iota // native object encoding
	FlagCompressed                   // gzip over the serialized bytes
	FlagJSON                         // structured text encoding
	FlagCounter                      // unframed ASCII decimal
	FlagNull                         // cached absence, Data is empty
)

func (f Flags) String() string {
	if f == 0 {
		return "raw"
	}
	names := []string{"serialized", "compressed", "json", "counter", "null"}
	s := ""
	for i, n := range names {
		if f&(1<<i) == 0 {
			continue
		}
		if s != "" {
			s += "|"
		}
		s += n
	}
	if f>>len(names) != 0 {
		s += fmt.Sprintf("|0x%x", uint8(f>>len(names))<<len(names))
	}
	return s
}

// Payload is the cached form of one value.
type Payload struct {
	Flags Flags
	Data  []byte
}

// Null is the payload stored for a legitimately absent business value.
var Null = Payload{Flags: FlagNull}

// IsNull reports whether p is a cached absence.
func (p Payload) IsNull() bool { return p.Flags == FlagNull }

// Bytes returns the backend representation of p. Counter payloads are
// written as-is so backend increments keep working on them.
func (p Payload) Bytes() []byte {
	if p.Flags == FlagCounter {
		return p.Data
	}
	return wire.Encode(byte(p.Flags), p.Data)
}

// Parse reverses Bytes. Bare decimals are read as counter payloads;
// anything else without a valid frame is ErrUndecodable.
func Parse(b []byte) (Payload, error) {
	if !wire.IsFramed(b) {
		if codec.IsDecimal(b) {
			return Payload{Flags: FlagCounter, Data: b}, nil
		}
		return Payload{}, fmt.Errorf("%w: no frame", ErrUndecodable)
	}
	flags, data, err := wire.Decode(b)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	p := Payload{Flags: Flags(flags), Data: data}
	if p.Flags&FlagNull != 0 && (p.Flags != FlagNull || len(data) != 0) {
		return Payload{}, fmt.Errorf("%w: flags %s", ErrUndecodable, p.Flags)
	}
	return p, nil
}
