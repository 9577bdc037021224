package cacheflow

import (
	"context"
	"time"

	pr "github.com/unkn0wn-root/cacheflow/provider"
)

// Producer is the intercepted business operation. It receives the call's
// arguments unchanged.
type Producer[V any] func(ctx context.Context, args []any) (V, error)

// MultiProducer is a batch business operation. Its batch argument holds
// only the keys that missed, and it must return one value per key in that
// order.
type MultiProducer[V any] func(ctx context.Context, args []any) ([]V, error)

// Options configure an Engine. Only Backend is required (unless Disabled).
type Options struct {
	// Name of the logical cache; prepended to keys when NamePrefix is set so
	// several logical caches can share one physical backend.
	Name            string
	NamePrefix      bool
	PrefixSeparator string // default "#"
	Separator       string // between namespace and components; default ":"

	Backend pr.Backend

	DefaultTTL           time.Duration // used when a descriptor has no TTL; 0 => no expiry
	Timeout              time.Duration // per backend call; 0 => 1s
	CompressionThreshold int           // native serialization; 0 => 16 KiB, <0 disables
	MaxKeyLength         int           // 0 => 250, <0 disables hashing of long keys
	Disabled             bool          // every operation goes straight to the producer

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used
}

// Engine holds what every intercepted operation shares: the backend, key
// policy, timeouts and logging. It is safe for concurrent use and holds no
// per-call state.
type Engine struct {
	backend    pr.Backend
	transcoder pr.Transcoder
	keys       keyBuilder
	log        Logger
	hooks      Hooks
	enabled    bool
	defaultTTL time.Duration
	timeout    time.Duration
	threshold  int
}

func New(opts Options) (*Engine, error) {
	if opts.Backend == nil && !opts.Disabled {
		return nil, invalidParam("backend is required")
	}
	if opts.NamePrefix && opts.Name == "" {
		return nil, invalidParam("name prefixing needs a cache name")
	}
	if opts.DefaultTTL < 0 || opts.Timeout < 0 {
		return nil, invalidParam("negative duration")
	}

	e := &Engine{
		backend:    opts.Backend,
		enabled:    !opts.Disabled,
		defaultTTL: opts.DefaultTTL,
		threshold:  opts.CompressionThreshold,
	}
	e.log = coalesce[Logger](opts.Logger, NopLogger{})
	e.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	e.timeout = coalesce(opts.Timeout, defaultTimeout)
	e.keys = keyBuilder{
		name:      opts.Name,
		prefix:    opts.NamePrefix,
		prefixSep: coalesce(opts.PrefixSeparator, defaultPrefixSeparator),
		sep:       coalesce(opts.Separator, defaultSeparator),
		max:       coalesce(opts.MaxKeyLength, defaultMaxKeyLength),
	}
	if opts.Backend != nil {
		e.transcoder = pr.TranscoderOf(opts.Backend)
	} else {
		e.transcoder = pr.MsgpackTranscoder{}
	}
	return e, nil
}

func (e *Engine) Enabled() bool { return e.enabled }

// Close releases the backend.
func (e *Engine) Close(ctx context.Context) error {
	if e.backend != nil {
		return e.backend.Close(ctx)
	}
	return nil
}

// InvalidateAll flushes the backend, which drops every key of this logical
// cache. Failures are contained; ok reports whether the flush went through.
func (e *Engine) InvalidateAll(ctx context.Context) (ok bool) {
	if !e.enabled {
		return false
	}
	err := e.contain(ctx, opFlush, e.keys.name, "*", func(ctx context.Context) error {
		return e.backend.Flush(ctx)
	})
	if err == nil {
		e.log.Info("cache flushed", Fields{"cache": e.keys.name})
	}
	return err == nil
}

// Nodes lists the backend's live nodes.
func (e *Engine) Nodes(ctx context.Context) ([]string, error) {
	if e.backend == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.backend.Nodes(ctx)
}

func (e *Engine) ttl(d Descriptor) time.Duration {
	return coalesce(d.ttl, e.defaultTTL)
}
