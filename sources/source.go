// Package sources contains the external content source adapters and the
// capability interfaces the core consumes them through. A source may be
// able to search (find source-local article ids by tag or word), to load
// (turn those ids into article data), or both; search capabilities are
// optional and discovered by interface assertion.
package sources

import (
	"context"

	"artiller/types"
)

// Searcher is the common surface of every search-capable source.
type Searcher interface {
	// Name identifies the source; it becomes the Source field of every
	// ref the searcher produces.
	Name() string
}

// TagSearcher finds source refs for articles carrying a tag.
type TagSearcher interface {
	Searcher
	IDsByTag(ctx context.Context, tag string) ([]types.SourceRef, error)
}

// WordSearcher finds source refs for articles matching a search word.
type WordSearcher interface {
	Searcher
	IDsByWord(ctx context.Context, word string) ([]types.SourceRef, error)
}

// Loader turns source refs into article data. The ref ID is the
// source-local article id in its serialised string form, as produced by
// the searchers (a Medium post id, a URL, ...).
type Loader interface {
	Name() string

	// Accepts reports whether this loader can load the ref, and if so
	// returns the source id it will load it under. A loader may accept
	// refs from other searchers (the scraper loads any URL-shaped ref).
	Accepts(ref types.SourceRef) (string, bool)

	// Load fetches article data for the given source ids. Ids that could
	// not be loaded are simply absent from the result; Load only fails
	// when the source as a whole is unreachable.
	Load(ctx context.Context, sourceIDs []string) (map[string]types.ArticleData, error)
}
