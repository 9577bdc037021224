// Package breaker wraps a provider.Backend with a circuit breaker so that a
// dead backend fails fast instead of costing every caller a full timeout.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	pr "github.com/unkn0wn-root/cacheflow/provider"
)

type Config struct {
	Name string
	// ConsecutiveFailures that open the circuit; 0 => 5.
	ConsecutiveFailures uint32
	// OpenTimeout before probing again; 0 => 10s.
	OpenTimeout time.Duration
	// HalfOpenRequests allowed while probing; 0 => 1.
	HalfOpenRequests uint32
	// OnStateChange is called on every transition.
	OnStateChange func(name string, from, to gobreaker.State)
}

// Backend forwards to an inner backend through a gobreaker circuit.
// Misses, ErrNotStored and caller cancellation do not count as failures.
type Backend struct {
	inner pr.Backend
	cb    *gobreaker.CircuitBreaker[any]
}

var _ pr.Backend = (*Backend)(nil)

func New(inner pr.Backend, cfg Config) *Backend {
	fails := cfg.ConsecutiveFailures
	if fails == 0 {
		fails = 5
	}
	timeout := cfg.OpenTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	half := cfg.HalfOpenRequests
	if half == 0 {
		half = 1
	}
	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: half,
		Timeout:     timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= fails
		},
		OnStateChange: cfg.OnStateChange,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, pr.ErrNotStored) || errors.Is(err, context.Canceled)
		},
	}
	return &Backend{inner: inner, cb: gobreaker.NewCircuitBreaker[any](st)}
}

// State reports the current circuit state.
func (b *Backend) State() gobreaker.State { return b.cb.State() }

// Transcoder forwards the inner backend's transcoder.
func (b *Backend) Transcoder() pr.Transcoder { return pr.TranscoderOf(b.inner) }

func (b *Backend) exec(fn func() (any, error)) (any, error) {
	v, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", pr.ErrUnavailable, err)
	}
	return v, err
}

type hit struct {
	b  []byte
	ok bool
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := b.exec(func() (any, error) {
		val, ok, err := b.inner.Get(ctx, key)
		return hit{val, ok}, err
	})
	if err != nil {
		return nil, false, err
	}
	h := v.(hit)
	return h.b, h.ok, nil
}

func (b *Backend) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	v, err := b.exec(func() (any, error) { return b.inner.GetMulti(ctx, keys) })
	if err != nil {
		return nil, err
	}
	return v.(map[string][]byte), nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := b.exec(func() (any, error) { return nil, b.inner.Set(ctx, key, value, ttl) })
	return err
}

func (b *Backend) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	v, err := b.exec(func() (any, error) { return b.inner.Add(ctx, key, value, ttl) })
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (b *Backend) Delete(ctx context.Context, key string) (bool, error) {
	v, err := b.exec(func() (any, error) { return b.inner.Delete(ctx, key) })
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (b *Backend) IncrWithDefault(ctx context.Context, key string, delta, def int64, ttl time.Duration) (int64, error) {
	v, err := b.exec(func() (any, error) { return b.inner.IncrWithDefault(ctx, key, delta, def, ttl) })
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

type decr struct {
	n     int64
	found bool
}

func (b *Backend) Decr(ctx context.Context, key string, delta int64) (int64, bool, error) {
	v, err := b.exec(func() (any, error) {
		n, found, err := b.inner.Decr(ctx, key, delta)
		return decr{n, found}, err
	})
	if err != nil {
		return 0, false, err
	}
	d := v.(decr)
	return d.n, d.found, nil
}

func (b *Backend) Flush(ctx context.Context) error {
	_, err := b.exec(func() (any, error) { return nil, b.inner.Flush(ctx) })
	return err
}

// Nodes bypasses the breaker; it is diagnostic and must work while open.
func (b *Backend) Nodes(ctx context.Context) ([]string, error) {
	return b.inner.Nodes(ctx)
}

func (b *Backend) Close(ctx context.Context) error {
	return b.inner.Close(ctx)
}
