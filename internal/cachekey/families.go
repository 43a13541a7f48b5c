package cachekey

// Sort field used for keys whose value does not depend on an ordering.
const unsorted = "-"

// SortedTitlesKey keys a user's ordering of the top-level titles.
func SortedTitlesKey(user string, titleIDs []string, sortField string, ascending bool) Key {
	return Build(SortedTitles, Scope{User: user}, titleIDs, sortField, ascending)
}

// SortedEntriesKey keys a user's ordering of the entries of one title.
func SortedEntriesKey(titleID, user string, entryIDs []string, sortField string, ascending bool) Key {
	return Build(SortedEntries, Scope{Item: titleID, User: user}, entryIDs, sortField, ascending)
}

// ProgressSumKey keys a user's aggregated reading progress for a title.
// entrySignature changes whenever the title's entries change.
func ProgressSumKey(titleID, user, entrySignature string) Key {
	return Build(ProgressSums, Scope{Item: titleID, User: user}, []string{entrySignature}, unsorted, true)
}

// InfoJSONKey keys the parsed metadata file of a title directory.
func InfoJSONKey(dir string) Key {
	return Build(InfoJSONs, Scope{}, []string{dir}, unsorted, true)
}
