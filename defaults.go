package cacheflow

import "time"

const (
	defaultTimeout         = time.Second
	defaultSeparator       = ":"
	defaultPrefixSeparator = "#"
	// memcached rejects keys longer than 250 bytes.
	defaultMaxKeyLength = 250
	componentSeparator  = "-"
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
