package search

import (
	"context"
	"fmt"
	"log"

	"artiller/cache"
	"artiller/discovery"
	"artiller/sources"
	"artiller/store"
	"artiller/types"
)

// Announcer is notified after an article has been created. Failures are
// logged and never block resolution.
type Announcer interface {
	AnnounceCreated(ctx context.Context, article *types.Article) error
}

// Resolver turns source refs into internal article ids, creating articles
// for refs that have never been seen. Resolution of a given ref is
// single-flight across all processes through the source-id cache.
type Resolver struct {
	store      store.ArticleStore
	articles   *cache.Articles
	sourceIDs  *cache.SourceIDs
	discovery  *discovery.Queue
	loaders    []sources.Loader
	announcers []Announcer
}

func NewResolver(st store.ArticleStore, articles *cache.Articles, sourceIDs *cache.SourceIDs, disc *discovery.Queue, loaders []sources.Loader, announcers ...Announcer) *Resolver {
	return &Resolver{
		store:      st,
		articles:   articles,
		sourceIDs:  sourceIDs,
		discovery:  disc,
		loaders:    loaders,
		announcers: announcers,
	}
}

// Resolve maps refs to article ids, loading and creating articles for refs
// not seen before. Refs that no loader accepts, or that their loader could
// not produce data for, are dropped with a log line; the returned ids are
// deduplicated but otherwise follow ref order.
func (r *Resolver) Resolve(ctx context.Context, refs []types.SourceRef) ([]string, error) {
	ids := make([]string, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))

	for _, ref := range refs {
		id, err := r.resolveOne(ctx, ref)
		if err != nil {
			return nil, err
		}
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *Resolver) resolveOne(ctx context.Context, ref types.SourceRef) (string, error) {
	loader, sourceID := r.loaderFor(ref)
	if loader == nil {
		log.Printf("resolver: no loader accepts ref %s:%s", ref.Source, ref.ID)
		return "", nil
	}

	return r.sourceIDs.Resolve(ctx, loader.Name(), sourceID, func(ctx context.Context) (string, error) {
		return r.compute(ctx, loader, sourceID)
	})
}

// loaderFor finds the loader that accepts the ref. Accepts also canonicalises
// the source id, so the same article reached through different searchers
// resolves to one cache entry.
func (r *Resolver) loaderFor(ref types.SourceRef) (sources.Loader, string) {
	for _, loader := range r.loaders {
		if sourceID, ok := loader.Accepts(ref); ok {
			return loader, sourceID
		}
	}
	return nil, ""
}

// compute runs under the resolution lock. The store check covers cache
// entries that expired after the article was created.
func (r *Resolver) compute(ctx context.Context, loader sources.Loader, sourceID string) (string, error) {
	if id, err := r.store.GetIDBySourceRef(ctx, loader.Name(), sourceID); err != nil || id != "" {
		return id, err
	}

	loaded, err := loader.Load(ctx, []string{sourceID})
	if err != nil {
		return "", fmt.Errorf("loading %s:%s: %w", loader.Name(), sourceID, err)
	}
	data, ok := loaded[sourceID]
	if !ok {
		return "", nil
	}

	id, err := r.store.CreateArticle(ctx, loader.Name(), sourceID, data, true)
	if err != nil {
		return "", fmt.Errorf("creating article for %s:%s: %w", loader.Name(), sourceID, err)
	}

	r.afterCreate(ctx, id)
	return id, nil
}

// afterCreate runs the best-effort side effects of a new article: queueing
// it for tag discovery, warming the article cache, and announcing it.
func (r *Resolver) afterCreate(ctx context.Context, id string) {
	if _, err := r.discovery.Enqueue(ctx, id); err != nil {
		log.Printf("resolver: queueing %s for tag discovery: %v", id, err)
	}

	article, err := r.store.GetByID(ctx, id)
	if err != nil || article == nil {
		log.Printf("resolver: re-reading created article %s: %v", id, err)
		return
	}

	if err := r.articles.Put(ctx, article); err != nil {
		log.Printf("resolver: caching created article %s: %v", id, err)
	}

	for _, announcer := range r.announcers {
		if err := announcer.AnnounceCreated(ctx, article); err != nil {
			log.Printf("resolver: announcing article %s: %v", id, err)
		}
	}
}
