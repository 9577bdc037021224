package cacheflow

// Hooks receive high-signal events. Implementations MUST be cheap and
// non-blocking; they run on the caller's goroutine. See sloghooks,
// hooks/async and hooks/prom.
type Hooks interface {
	// Hit and Miss count distinct keys served from / missing in the cache.
	Hit(namespace string, n int)
	Miss(namespace string, n int)

	// A backend operation failed and was contained.
	// op ∈ {"get", "get_multi", "set", "add", "delete", "incr", "decr", "flush", "encode"}
	Degraded(op, namespace string, err error)

	// A cached entry could not be decoded and was treated as a miss.
	Undecodable(storageKey string, err error)

	// A producer returned a result that does not line up with its keys.
	ContractViolation(namespace string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Hit(string, int)                 {}
func (NopHooks) Miss(string, int)                {}
func (NopHooks) Degraded(string, string, error)  {}
func (NopHooks) Undecodable(string, error)       {}
func (NopHooks) ContractViolation(string, error) {}
