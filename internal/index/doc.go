// Package index implements the daemon's in-memory package index: an exact
// name-to-record map plus a substring search view over lower-cased names and
// descriptions, built once from the backend's full package list and swapped
// wholesale on refresh.
//
// # Generations
//
// An *Index is immutable once built. Handle holds the current generation
// behind an atomic pointer; a refresh (Dispatcher.RefreshIndex in
// internal/daemon) builds a new Index and Handle.Publish installs it with a
// single atomic store, so in-flight readers always see one complete,
// consistent generation and never a half-built index.
//
// # Ranking
//
// Search ranks results by, in order: exact name match, name starts-with the
// query, name contains the query, description contains the query; ties
// break on lexicographic name order. Suggest performs a bounded Levenshtein
// search over package names for typo tolerance when the exact view misses.
package index
