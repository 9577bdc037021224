package cacheflow

import (
	"context"
	"errors"
	"fmt"

	pr "github.com/unkn0wn-root/cacheflow/provider"
)

const (
	opGet      = "get"
	opGetMulti = "get_multi"
	opSet      = "set"
	opAdd      = "add"
	opDelete   = "delete"
	opIncr     = "incr"
	opDecr     = "decr"
	opFlush    = "flush"
	opEncode   = "encode"
)

// contain runs one backend call under the engine timeout. Errors and panics
// are logged and reported to hooks, then returned so the caller can pick its
// fallback (miss for reads, skip for writes). Callers must not propagate
// them past the operation boundary.
func (e *Engine) contain(ctx context.Context, op, ns, key string, fn func(ctx context.Context) error) (err error) {
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cacheflow: backend panic in %s: %v", op, r)
		}
		if err == nil {
			return
		}
		if errors.Is(err, pr.ErrNotStored) {
			e.log.Debug("backend did not store entry", keyFields(ns, key, err))
			return
		}
		f := keyFields(ns, key, err)
		f["op"] = op
		e.log.Warn("cache operation failed; continuing without cache", f)
		e.hooks.Degraded(op, ns, err)
	}()
	return fn(cctx)
}
