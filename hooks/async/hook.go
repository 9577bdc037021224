// Package asynchook moves hook delivery off the caller's goroutine.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{DegradedEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	eng, _ := cacheflow.New(cacheflow.Options{
//	    Name:    "app",
//	    Backend: backend,
//	    Hooks:   hooks,
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/cacheflow"
)

// Hooks queues events for a fixed worker pool. When the queue is full
// events are dropped and counted, never blocking the caller.
type Hooks struct {
	inner   cacheflow.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ cacheflow.Hooks = (*Hooks)(nil)

func New(inner cacheflow.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) Hit(ns string, n int)  { h.try(func() { h.inner.Hit(ns, n) }) }
func (h *Hooks) Miss(ns string, n int) { h.try(func() { h.inner.Miss(ns, n) }) }
func (h *Hooks) Degraded(op, ns string, err error) {
	h.try(func() { h.inner.Degraded(op, ns, err) })
}
func (h *Hooks) Undecodable(k string, err error) {
	h.try(func() { h.inner.Undecodable(k, err) })
}
func (h *Hooks) ContractViolation(ns string, err error) {
	h.try(func() { h.inner.ContractViolation(ns, err) })
}
