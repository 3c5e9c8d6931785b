package querycache

import (
	"strconv"
	"strings"
)

// Key is an ordered tuple addressing one cache entry. Keys nest: a child key
// extends its parent's tuple, and every scoped operation matches the scope key
// itself and all of its extensions.
type Key []string

// NewKey builds a key from its parts.
func NewKey(parts ...string) Key {
	return append(Key(nil), parts...)
}

// Append returns a new key extending k. k itself is never modified.
func (k Key) Append(parts ...string) Key {
	out := make(Key, 0, len(k)+len(parts))
	out = append(out, k...)
	return append(out, parts...)
}

// IsPrefixOf reports whether other equals k or extends it.
func (k Key) IsPrefixOf(other Key) bool {
	if len(k) > len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// Equal reports whether both keys hold the same parts.
func (k Key) Equal(other Key) bool {
	return len(k) == len(other) && k.IsPrefixOf(other)
}

// Hash encodes k injectively so it can index a map: distinct tuples never
// share a hash even when parts contain separator characters or invalid UTF-8.
// Each part is quoted with Go escapes, which keep every byte.
func (k Key) Hash() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, part := range k {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(part))
	}
	b.WriteByte(']')
	return b.String()
}

// String renders k for logs.
func (k Key) String() string {
	return "[" + strings.Join(k, " ") + "]"
}

// scope is the low-cardinality label used for metrics: the first two parts.
func (k Key) scope() string {
	if len(k) > 2 {
		return strings.Join(k[:2], "/")
	}
	return strings.Join(k, "/")
}

// Filter selects cache entries: the entry at Key alone when Exact is set,
// otherwise every entry whose key Key is a prefix of.
type Filter struct {
	Key   Key
	Exact bool
}

// Scope matches key and everything beneath it.
func Scope(key Key) Filter { return Filter{Key: key} }

// Exact matches key only.
func Exact(key Key) Filter { return Filter{Key: key, Exact: true} }

// Matches reports whether f selects key.
func (f Filter) Matches(key Key) bool {
	if f.Exact {
		return f.Key.Equal(key)
	}
	return f.Key.IsPrefixOf(key)
}
