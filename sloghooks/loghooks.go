// Package sloghooks reports engine events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/cacheflow"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	DegradedEvery    uint64
	UndecodableEvery uint64
	// LogTraffic emits a Debug line per Hit/Miss batch.
	LogTraffic bool
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	degradedCtr    atomic.Uint64
	undecodableCtr atomic.Uint64
}

var _ cacheflow.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Hit(ns string, n int) {
	if h.l == nil || !h.opts.LogTraffic {
		return
	}
	h.l.Debug("cacheflow.hit", "ns", ns, "n", n)
}

func (h *Hooks) Miss(ns string, n int) {
	if h.l == nil || !h.opts.LogTraffic {
		return
	}
	h.l.Debug("cacheflow.miss", "ns", ns, "n", n)
}

func (h *Hooks) Degraded(op, ns string, err error) {
	if h.l == nil || !sample(h.opts.DegradedEvery, &h.degradedCtr) {
		return
	}
	h.l.Warn("cacheflow.degraded",
		"op", op,
		"ns", ns,
		"err", err)
}

func (h *Hooks) Undecodable(storageKey string, err error) {
	if h.l == nil || !sample(h.opts.UndecodableEvery, &h.undecodableCtr) {
		return
	}
	h.l.Warn("cacheflow.undecodable",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) ContractViolation(ns string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("cacheflow.contract_violation",
		"ns", ns,
		"err", err)
}
