package cacheflow

import (
	"errors"
	"strings"
	"testing"
)

type point struct{ x, y int }

func (p point) String() string { return "p" + strings.Repeat("x", p.x) + strings.Repeat("y", p.y) }

type opaque struct{ v int }

// TestKeyFromSelectedArgument derives a key from the argument at index 1 only.
func TestKeyFromSelectedArgument(t *testing.T) {
	e := newTestEngine(t, newMemBackend(), nil)
	d := Describe("obj").Keys(1).MustBuild()

	k, err := e.Key(d, []any{nil, "abc", "x"})
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if k != "obj:abc" {
		t.Fatalf("key = %q, want %q", k, "obj:abc")
	}
}

func TestKeyComponentsAndPrefix(t *testing.T) {
	e := newTestEngine(t, newMemBackend(), func(o *Options) {
		o.Name = "users"
		o.NamePrefix = true
	})

	cases := []struct {
		name string
		d    Descriptor
		args []any
		want string
	}{
		{"scalars", Describe("ns").Keys(0, 2).MustBuild(), []any{"a", 7, true}, "users#ns:a-true"},
		{"order follows indices", Describe("ns").Keys(2, 0).MustBuild(), []any{"a", 7, true}, "users#ns:true-a"},
		{"ints and floats", Describe("ns").Keys(0, 1).MustBuild(), []any{int64(-3), 1.5}, "users#ns:-3-1.5"},
		{"keyable", Describe("ns").Keys(0).MustBuild(), []any{userID{5}}, "users#ns:u5"},
		{"keyable pointer", Describe("ns").Keys(0).MustBuild(), []any{&userID{6}}, "users#ns:u6"},
		{"stringer", Describe("ns").Keys(0).MustBuild(), []any{point{1, 2}}, "users#ns:pxyy"},
		{"assigned", Describe("config").Assign("global").MustBuild(), nil, "users#config:global"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Key(tc.d, tc.args)
			if err != nil {
				t.Fatalf("Key: %v", err)
			}
			if got != tc.want {
				t.Fatalf("key = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestKeyDeterministic(t *testing.T) {
	e := newTestEngine(t, newMemBackend(), nil)
	d := Describe("ns").Keys(0, 1).MustBuild()
	args := []any{userID{9}, "tail"}

	first, err := e.Key(d, args)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	for i := 0; i < 100; i++ {
		k, err := e.Key(d, args)
		if err != nil || k != first {
			t.Fatalf("run %d: key=%q err=%v, want %q", i, k, err, first)
		}
	}
}

func TestKeyErrors(t *testing.T) {
	e := newTestEngine(t, newMemBackend(), nil)
	var nilUser *userID

	cases := []struct {
		name  string
		d     Descriptor
		args  []any
		want  error
		index int
	}{
		{"out of range", Describe("ns").Keys(3).MustBuild(), []any{"a"}, ErrMissingArgument, 3},
		{"nil", Describe("ns").Keys(0).MustBuild(), []any{nil}, ErrNullKeyArgument, 0},
		{"nil pointer", Describe("ns").Keys(1).MustBuild(), []any{"a", nilUser}, ErrNullKeyArgument, 1},
		{"no key method", Describe("ns").Keys(0).MustBuild(), []any{opaque{1}}, ErrInvalidKeyMethod, 0},
		{"empty string", Describe("ns").Keys(0).MustBuild(), []any{""}, ErrEmptyKeyValue, 0},
		{"empty keyable", Describe("ns").Keys(0).MustBuild(), []any{emptyKey{}}, ErrEmptyKeyValue, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Key(tc.d, tc.args)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			var ke *KeyError
			if !errors.As(err, &ke) || ke.Index != tc.index || ke.Namespace != "ns" {
				t.Fatalf("want *KeyError for arg %d, got %#v", tc.index, err)
			}
		})
	}
}

type emptyKey struct{}

func (emptyKey) CacheKey() string { return "" }

func TestBuildKeyValidation(t *testing.T) {
	e := newTestEngine(t, newMemBackend(), nil)

	if _, err := e.BuildKey("", "a"); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("empty namespace: err = %v", err)
	}
	if _, err := e.BuildKey("ns"); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("no components: err = %v", err)
	}
	if _, err := e.BuildAssignKey("ns", ""); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("empty assigned key: err = %v", err)
	}
	k, err := e.BuildKey("ns", "a", "b", "c")
	if err != nil || k != "ns:a-b-c" {
		t.Fatalf("BuildKey = %q, %v", k, err)
	}
}

func TestCustomSeparators(t *testing.T) {
	e := newTestEngine(t, newMemBackend(), func(o *Options) {
		o.Name = "c1"
		o.NamePrefix = true
		o.PrefixSeparator = "|"
		o.Separator = "/"
	})
	k, err := e.BuildKey("ns", "1")
	if err != nil || k != "c1|ns/1" {
		t.Fatalf("BuildKey = %q, %v", k, err)
	}
}

func TestLongKeysAreShortened(t *testing.T) {
	e := newTestEngine(t, newMemBackend(), func(o *Options) { o.MaxKeyLength = 40 })
	d := Describe("ns").Keys(0).MustBuild()

	a, err := e.Key(d, []any{strings.Repeat("a", 100)})
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	b, _ := e.Key(d, []any{strings.Repeat("a", 99) + "b"})
	if len(a) != 40 || len(b) != 40 {
		t.Fatalf("lengths = %d, %d; want 40", len(a), len(b))
	}
	if a == b {
		t.Fatalf("distinct long keys collided: %q", a)
	}
	if !strings.HasPrefix(a, "ns:aaa") {
		t.Fatalf("shortened key lost its head: %q", a)
	}

	unlimited := newTestEngine(t, newMemBackend(), func(o *Options) { o.MaxKeyLength = -1 })
	c, _ := unlimited.Key(d, []any{strings.Repeat("a", 300)})
	if len(c) != 303 {
		t.Fatalf("len = %d, want 303 with shortening disabled", len(c))
	}
}

func TestBatchKeys(t *testing.T) {
	e := newTestEngine(t, newMemBackend(), nil)
	d := Describe("item").Keys(0, 1).MustBuild()

	keys, err := e.Keys(d, []any{"tenant", []int{3, 1, 3}})
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	want := []string{"item:tenant-3", "item:tenant-1", "item:tenant-3"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Fatalf("keys = %v, want %v", keys, want)
	}

	// []byte is never a batch
	if _, err := e.Keys(Describe("item").Keys(0).MustBuild(), []any{[]byte("x")}); !errors.Is(err, ErrInvalidKeyMethod) {
		t.Fatalf("[]byte batch: err = %v", err)
	}

	_, err = e.Keys(d, []any{"tenant", []any{1, nil}})
	var ke *KeyError
	if !errors.As(err, &ke) || ke.Elem != 1 || !errors.Is(err, ErrNullKeyArgument) {
		t.Fatalf("nil element: err = %v", err)
	}

	empty, err := e.Keys(d, []any{"tenant", []int(nil)})
	if err != nil || len(empty) != 0 {
		t.Fatalf("nil batch: keys=%v err=%v", empty, err)
	}
}

func TestBatchSubsetKeepsType(t *testing.T) {
	e := newTestEngine(t, newMemBackend(), nil)
	d := Describe("item").Keys(1).MustBuild()
	args := []any{"x", [3]string{"a", "b", "c"}}

	b, err := e.batch(d, args)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	sub := b.subset(args, []int{2, 0})
	got, ok := sub[1].([]string)
	if !ok {
		t.Fatalf("subset type = %T, want []string", sub[1])
	}
	if len(got) != 2 || got[0] != "c" || got[1] != "a" {
		t.Fatalf("subset = %v", got)
	}
	if args[1].([3]string)[0] != "a" || sub[0] != "x" {
		t.Fatalf("original args modified or fixed args lost")
	}
}
