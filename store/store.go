// Package store defines the durable article store the coordination core
// reads through to. The relational backend itself is out of scope here;
// Memory implements the contract for tests and local runs.
package store

import (
	"context"

	"artiller/types"
)

// ArticleStore is the durable source of truth for articles and their tags.
// Lookups return nil (or empty sets) for missing entities rather than
// errors; errors are reserved for the backend actually failing.
type ArticleStore interface {
	GetByID(ctx context.Context, id string) (*types.Article, error)
	GetManyByIDs(ctx context.Context, ids []string) ([]*types.Article, error)

	GetIDsByTag(ctx context.Context, tag string) (map[string]struct{}, error)
	GetIDsByAuthors(ctx context.Context, authors []string) (map[string]struct{}, error)
	GetIDsByDomains(ctx context.Context, domains []string) (map[string]struct{}, error)
	GetIDsByTitleWord(ctx context.Context, word string) (map[string]struct{}, error)

	// GetIDBySourceRef returns "" when no article has been created for the
	// ref yet.
	GetIDBySourceRef(ctx context.Context, source, sourceID string) (string, error)

	// CreateArticle persists a new article for the given source ref and
	// returns its assigned id.
	CreateArticle(ctx context.Context, source, sourceID string, data types.ArticleData, tagsLoading bool) (string, error)

	// AddTags appends normalised tags to an article and clears its
	// tags-loading flag.
	AddTags(ctx context.Context, id string, tags []string) error

	ArticleCount(ctx context.Context) (int64, error)
	TagCount(ctx context.Context) (int64, error)
	AuthorCount(ctx context.Context) (int64, error)
}
