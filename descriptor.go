package cacheflow

import (
	"time"

	"github.com/unkn0wn-root/cacheflow/serial"
)

const noData = -1

// Descriptor is the immutable caching metadata of one call site.
// Build it once with Describe and share it across goroutines.
type Descriptor struct {
	namespace        string
	keyIndices       []int
	dataIndex        int
	returnsData      bool
	assignedKey      string
	ttl              time.Duration
	serialization    serial.Type
	invalidateBefore bool
	built            bool
}

func (d Descriptor) Namespace() string { return d.namespace }

// KeyIndices returns a copy of the key argument indices in component order.
func (d Descriptor) KeyIndices() []int { return append([]int(nil), d.keyIndices...) }

// DataIndex returns the argument holding the data to cache, if any.
func (d Descriptor) DataIndex() (int, bool) { return d.dataIndex, d.dataIndex != noData }

func (d Descriptor) ReturnsData() bool          { return d.returnsData }
func (d Descriptor) AssignedKey() string        { return d.assignedKey }
func (d Descriptor) TTL() time.Duration         { return d.ttl }
func (d Descriptor) Serialization() serial.Type { return d.serialization }
func (d Descriptor) InvalidateBefore() bool     { return d.invalidateBefore }
func (d Descriptor) assigned() bool             { return d.assignedKey != "" }

// Builder assembles a Descriptor. Errors are reported by Build.
type Builder struct {
	d Descriptor
}

// Describe starts a descriptor for namespace. Defaults: no data argument,
// backend default TTL, provider serialization.
func Describe(namespace string) *Builder {
	return &Builder{d: Descriptor{namespace: namespace, dataIndex: noData}}
}

// Keys sets the arguments whose values form the key, in component order.
func (b *Builder) Keys(idx ...int) *Builder {
	b.d.keyIndices = append([]int(nil), idx...)
	return b
}

// Data marks argument idx as the value written by update operations.
func (b *Builder) Data(idx int) *Builder {
	b.d.dataIndex = idx
	return b
}

// ReturnsData makes update operations cache the producer's return value.
func (b *Builder) ReturnsData() *Builder {
	b.d.returnsData = true
	return b
}

// Assign uses a fixed key and ignores arguments.
func (b *Builder) Assign(key string) *Builder {
	b.d.assignedKey = key
	return b
}

func (b *Builder) TTL(ttl time.Duration) *Builder {
	b.d.ttl = ttl
	return b
}

func (b *Builder) Serialize(t serial.Type) *Builder {
	b.d.serialization = t
	return b
}

// InvalidateBefore makes Invalidate evict before running the business call.
func (b *Builder) InvalidateBefore() *Builder {
	b.d.invalidateBefore = true
	return b
}

func (b *Builder) Build() (Descriptor, error) {
	d := b.d
	d.keyIndices = append([]int(nil), d.keyIndices...)

	if d.namespace == "" {
		return Descriptor{}, invalidParam("empty namespace")
	}
	if (len(d.keyIndices) == 0) == (d.assignedKey == "") {
		return Descriptor{}, invalidParam("%q: need exactly one of key indices or assigned key", d.namespace)
	}
	seen := make(map[int]struct{}, len(d.keyIndices))
	for _, i := range d.keyIndices {
		if i < 0 {
			return Descriptor{}, invalidParam("%q: negative key index %d", d.namespace, i)
		}
		if _, dup := seen[i]; dup {
			return Descriptor{}, invalidParam("%q: duplicate key index %d", d.namespace, i)
		}
		seen[i] = struct{}{}
	}
	if d.dataIndex != noData && d.dataIndex < 0 {
		return Descriptor{}, invalidParam("%q: negative data index %d", d.namespace, d.dataIndex)
	}
	if d.dataIndex != noData && d.returnsData {
		return Descriptor{}, invalidParam("%q: data index and returned data are exclusive", d.namespace)
	}
	if d.ttl < 0 {
		return Descriptor{}, invalidParam("%q: negative ttl", d.namespace)
	}
	if d.serialization > serial.Custom {
		return Descriptor{}, invalidParam("%q: unknown serialization %s", d.namespace, d.serialization)
	}
	d.built = true
	return d, nil
}

// MustBuild is like Build but panics on error. Meant for package-level vars.
func (b *Builder) MustBuild() Descriptor {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}
