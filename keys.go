package libcache

import "github.com/mangoshelf/libcache/internal/cachekey"

// Key identifies one cached computation. Keys are comparable with ==.
type Key = cachekey.Key

// Namespace separates families of cached values.
type Namespace = cachekey.Namespace

// Scope identifies the item and/or user a cached value belongs to.
type Scope = cachekey.Scope

// Namespaces.
const (
	SortedTitles  = cachekey.SortedTitles
	SortedEntries = cachekey.SortedEntries
	ProgressSums  = cachekey.ProgressSums
	InfoJSONs     = cachekey.InfoJSONs
)

// BuildKey derives a key from a namespace, scope, identifier set and sort
// order. The identifier order does not affect the key.
func BuildKey(ns Namespace, scope Scope, ids []string, sortField string, ascending bool) Key {
	return cachekey.Build(ns, scope, ids, sortField, ascending)
}

// SortedTitlesKey keys a user's ordering of the top-level titles.
func SortedTitlesKey(user string, titleIDs []string, sortField string, ascending bool) Key {
	return cachekey.SortedTitlesKey(user, titleIDs, sortField, ascending)
}

// SortedEntriesKey keys a user's ordering of the entries of one title.
func SortedEntriesKey(titleID, user string, entryIDs []string, sortField string, ascending bool) Key {
	return cachekey.SortedEntriesKey(titleID, user, entryIDs, sortField, ascending)
}

// ProgressSumKey keys a user's aggregated reading progress for a title.
func ProgressSumKey(titleID, user, entrySignature string) Key {
	return cachekey.ProgressSumKey(titleID, user, entrySignature)
}

// InfoJSONKey keys the parsed metadata file of a title directory.
func InfoJSONKey(dir string) Key {
	return cachekey.InfoJSONKey(dir)
}

// KeyPrefix renders the invalidation prefix of every key in ns with scope.
func KeyPrefix(ns Namespace, scope Scope) string {
	return cachekey.Prefix(ns, scope)
}
