package search

import (
	"context"
	"fmt"
	"log"
	"sync"

	"artiller/cache"
	"artiller/sources"
	"artiller/store"
	"artiller/types"
)

// Lookup answers "which articles match this tag/word", combining the cached
// index, the durable store, and (when both come up short) a live fan-out to
// the configured searchers.
type Lookup struct {
	store     store.ArticleStore
	tags      *cache.Index
	words     *cache.Index
	resolver  *Resolver
	searchers []sources.Searcher
}

func NewLookup(st store.ArticleStore, tags, words *cache.Index, resolver *Resolver, searchers []sources.Searcher) *Lookup {
	return &Lookup{
		store:     st,
		tags:      tags,
		words:     words,
		resolver:  resolver,
		searchers: searchers,
	}
}

// ArticleIDsByTag returns ids of articles carrying the tag. When the cache
// and store together hold few enough matches and the tag has not been
// checked recently, the searchers are queried for more before returning.
func (l *Lookup) ArticleIDsByTag(ctx context.Context, tag string) ([]string, error) {
	return l.articleIDs(ctx, l.tags, tag, l.store.GetIDsByTag, l.QueryMoreByTag)
}

// ArticleIDsByWord is ArticleIDsByTag for normalised title words.
func (l *Lookup) ArticleIDsByWord(ctx context.Context, word string) ([]string, error) {
	return l.articleIDs(ctx, l.words, word, l.store.GetIDsByTitleWord, l.QueryMoreByWord)
}

func (l *Lookup) articleIDs(
	ctx context.Context,
	index *cache.Index,
	key string,
	storeIDs func(ctx context.Context, key string) (map[string]struct{}, error),
	queryMore func(ctx context.Context, key string) ([]string, error),
) ([]string, error) {
	cached, err := index.Members(ctx, key)
	if err != nil {
		return nil, err
	}

	stored, err := storeIDs(ctx, key)
	if err != nil {
		return nil, err
	}

	union := make(map[string]struct{}, len(cached)+len(stored))
	for _, id := range cached {
		union[id] = struct{}{}
	}
	for id := range stored {
		union[id] = struct{}{}
	}

	if int64(len(union)) > index.Threshold() {
		return setToSlice(union), nil
	}

	should, err := index.ShouldQuery(ctx, key)
	if err != nil {
		return nil, err
	}
	if !should {
		return setToSlice(union), nil
	}

	discovered, err := queryMore(ctx, key)
	if err != nil {
		return nil, err
	}
	for _, id := range discovered {
		union[id] = struct{}{}
	}
	return setToSlice(union), nil
}

// QueryMoreByTag fans out to every tag-capable searcher and resolves what
// they find. The recently-checked flag is set up front and rolled back if
// the fan-out fails entirely, so a later caller retries without waiting out
// the flag's TTL.
func (l *Lookup) QueryMoreByTag(ctx context.Context, tag string) ([]string, error) {
	return l.queryMore(ctx, l.tags, tag, func(s sources.Searcher) func(context.Context, string) ([]types.SourceRef, error) {
		if ts, ok := s.(sources.TagSearcher); ok {
			return ts.IDsByTag
		}
		return nil
	})
}

// QueryMoreByWord is QueryMoreByTag over the word-capable searchers.
func (l *Lookup) QueryMoreByWord(ctx context.Context, word string) ([]string, error) {
	return l.queryMore(ctx, l.words, word, func(s sources.Searcher) func(context.Context, string) ([]types.SourceRef, error) {
		if ws, ok := s.(sources.WordSearcher); ok {
			return ws.IDsByWord
		}
		return nil
	})
}

func (l *Lookup) queryMore(
	ctx context.Context,
	index *cache.Index,
	key string,
	capability func(sources.Searcher) func(context.Context, string) ([]types.SourceRef, error),
) ([]string, error) {
	if err := index.MarkQueried(ctx, key); err != nil {
		return nil, err
	}

	refs, err := l.fanOut(ctx, key, capability)
	if err != nil {
		if unmarkErr := index.UnmarkQueried(ctx, key); unmarkErr != nil {
			log.Printf("lookup: unmarking %q after failed query: %v", key, unmarkErr)
		}
		return nil, err
	}

	ids, err := l.resolver.Resolve(ctx, refs)
	if err != nil {
		if unmarkErr := index.UnmarkQueried(ctx, key); unmarkErr != nil {
			log.Printf("lookup: unmarking %q after failed resolve: %v", key, unmarkErr)
		}
		return nil, err
	}

	if err := index.Add(ctx, key, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// fanOut queries every capable searcher in parallel. One searcher failing
// only costs its own results; the fan-out as a whole fails when every
// capable searcher failed.
func (l *Lookup) fanOut(
	ctx context.Context,
	key string,
	capability func(sources.Searcher) func(context.Context, string) ([]types.SourceRef, error),
) ([]types.SourceRef, error) {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		refs     []types.SourceRef
		capable  int
		failures int
		lastErr  error
	)

	for _, searcher := range l.searchers {
		query := capability(searcher)
		if query == nil {
			continue
		}
		capable++

		wg.Add(1)
		go func(name string) {
			defer wg.Done()

			found, err := query(ctx, key)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("lookup: searcher %s failed for %q: %v", name, key, err)
				failures++
				lastErr = err
				return
			}
			refs = append(refs, found...)
		}(searcher.Name())
	}
	wg.Wait()

	if capable > 0 && failures == capable {
		return nil, fmt.Errorf("all %d searchers failed for %q: %w", capable, key, lastErr)
	}
	return refs, nil
}

func setToSlice(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}
