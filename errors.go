package cacheflow

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/cacheflow/serial"
)

// Contract errors. They mean the caching setup of a call site is broken and
// are always returned to the caller; they are never treated as a miss.
var (
	ErrMissingArgument  = errors.New("cacheflow: key argument index out of range")
	ErrNullKeyArgument  = errors.New("cacheflow: key argument is nil")
	ErrInvalidKeyMethod = errors.New("cacheflow: key argument has no cache key method")
	ErrEmptyKeyValue    = errors.New("cacheflow: cache key value is empty")
	ErrInvalidParameter = errors.New("cacheflow: invalid parameter")
	ErrProducerContract = errors.New("cacheflow: producer contract violation")
)

// ErrUndecodable is the permanent per-entry format error. Read paths treat
// it as a miss; it is exported for codecs and tests.
var ErrUndecodable = serial.ErrUndecodable

// KeyError reports which argument failed key derivation.
type KeyError struct {
	Namespace string
	Index     int // argument index
	Elem      int // element of a batch argument, -1 otherwise
	Err       error
}

func (e *KeyError) Error() string {
	if e.Elem >= 0 {
		return fmt.Sprintf("cacheflow: key for %q: arg %d elem %d: %v", e.Namespace, e.Index, e.Elem, e.Err)
	}
	return fmt.Sprintf("cacheflow: key for %q: arg %d: %v", e.Namespace, e.Index, e.Err)
}

func (e *KeyError) Unwrap() error { return e.Err }

// ContractError is returned when a batch producer's result length does not
// match the keys it was asked for.
type ContractError struct {
	Namespace string
	Want      int
	Got       int
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("cacheflow: producer for %q returned %d values for %d keys", e.Namespace, e.Got, e.Want)
}

func (e *ContractError) Unwrap() error { return ErrProducerContract }

func invalidParam(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}
