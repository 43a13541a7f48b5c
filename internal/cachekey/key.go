// Package cachekey derives deterministic cache keys from request parameters.
//
// A key renders as
//
//	namespace:scope:fingerprint:sort_field:direction
//
// where scope is the parent item and/or user the cached value belongs to and
// fingerprint is a SHA-256 digest over the identifier set the value was
// computed from. The fingerprint does not depend on identifier order, so the
// same set always yields the same key, and any change to the set yields a
// different one.
package cachekey

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"slices"
	"strings"
)

// Namespace separates families of cached values.
type Namespace string

// Namespaces used by the media library.
const (
	SortedTitles  Namespace = "sorted_titles"
	SortedEntries Namespace = "sorted_entries"
	ProgressSums  Namespace = "progress_sum"
	InfoJSONs     Namespace = "info_json"
)

const sep = ":"

// Scope identifies what a cached value belongs to. Either field may be empty.
type Scope struct {
	Item string
	User string
}

// String renders the scope as item:user, omitting empty parts.
func (s Scope) String() string {
	switch {
	case s.Item == "":
		return s.User
	case s.User == "":
		return s.Item
	default:
		return s.Item + sep + s.User
	}
}

// Key is a structured cache key. Two keys are equal iff all fields are equal,
// so Key can be compared with == and used as a map key.
type Key struct {
	Namespace   Namespace
	Item        string
	User        string
	Fingerprint string
	SortField   string
	Ascending   bool
}

// Build derives a key from a namespace, scope, identifier set and sort order.
func Build(ns Namespace, scope Scope, ids []string, sortField string, ascending bool) Key {
	return Key{
		Namespace:   ns,
		Item:        scope.Item,
		User:        scope.User,
		Fingerprint: Fingerprint(ids),
		SortField:   sortField,
		Ascending:   ascending,
	}
}

// Scope returns the key's scope.
func (k Key) Scope() Scope {
	return Scope{Item: k.Item, User: k.User}
}

// String renders the key in its canonical form.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(string(k.Namespace))
	b.WriteString(sep)
	if scope := k.Scope().String(); scope != "" {
		b.WriteString(scope)
		b.WriteString(sep)
	}
	b.WriteString(k.Fingerprint)
	b.WriteString(sep)
	b.WriteString(k.SortField)
	b.WriteString(sep)
	if k.Ascending {
		b.WriteString("asc")
	} else {
		b.WriteString("desc")
	}
	return b.String()
}

// Fingerprint returns the hex SHA-256 digest of the identifier set.
// Identifiers are sorted and de-duplicated first; each one is length-prefixed
// so that no choice of identifiers can produce the same byte stream as another
// set. The input slice is not modified.
func Fingerprint(ids []string) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	h := sha256.New()
	var lenBuf [binary.MaxVarintLen64]byte
	for _, id := range sorted {
		n := binary.PutUvarint(lenBuf[:], uint64(len(id)))
		h.Write(lenBuf[:n])
		h.Write([]byte(id))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Prefix renders the leading part of every key in ns with the given scope,
// terminated by a separator, for use with prefix invalidation.
// For example Prefix(SortedTitles, Scope{User: "u1"}) is "sorted_titles:u1:".
func Prefix(ns Namespace, scope Scope) string {
	s := scope.String()
	if s == "" {
		return string(ns) + sep
	}
	return string(ns) + sep + s + sep
}
