// Package app wires the whole system together from a Config. Both the API
// server and the worker process build the same App; they just drive
// different parts of it.
package app

import (
	"context"
	"log"

	"artiller/archive"
	"artiller/cache"
	"artiller/config"
	"artiller/coordination"
	"artiller/discovery"
	"artiller/events"
	"artiller/search"
	"artiller/sources"
	"artiller/store"
	"artiller/workers"

	"github.com/redis/go-redis/v9"
)

// App holds every constructed component. Optional integrations (Kafka, S3,
// the suggester) are nil when not configured.
type App struct {
	Config config.Config
	Redis  *redis.Client

	Store store.ArticleStore

	Articles  *cache.Articles
	SourceIDs *cache.SourceIDs
	Websites  *cache.Websites
	Stats     *cache.Stats
	TagIndex  *cache.Index
	WordIndex *cache.Index

	Discovery *discovery.Queue
	TagQueue  *coordination.UniqueQueue
	WordQueue *coordination.UniqueQueue

	Searchers []sources.Searcher
	Loaders   []sources.Loader

	Resolver *search.Resolver
	Lookup   *search.Lookup
	Engine   *search.Engine

	Generator *discovery.Generator

	Publisher *events.Publisher
	Archive   *archive.Archive
}

// New builds an App. It fails only when a configured integration cannot be
// reached; unconfigured ones are skipped with a log line.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg}

	a.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	a.Store = store.NewMemory()

	a.Articles = cache.NewArticles(a.Redis, a.Store, 0)
	a.SourceIDs = cache.NewSourceIDs(a.Redis, 0)
	a.Websites = cache.NewWebsites(a.Redis, 0)
	a.Stats = cache.NewStats(a.Redis, a.Store, 0)
	a.TagIndex = cache.NewIndex(a.Redis, cache.KindTag, 0, 0)
	a.WordIndex = cache.NewIndex(a.Redis, cache.KindWord, 0, 0)

	a.Discovery = discovery.NewQueue(a.Redis)
	a.TagQueue = coordination.NewUniqueQueue(a.Redis, workers.TagSearchQueueKey)
	a.WordQueue = coordination.NewUniqueQueue(a.Redis, workers.WordSearchQueueKey)

	medium := sources.NewMedium()
	hackerNews := sources.NewHackerNews()
	feed := sources.NewFeed(cfg.FeedURLs)
	scraper := sources.NewScraper(a.Websites)

	a.Searchers = []sources.Searcher{medium, hackerNews, feed}
	// the scraper accepts any URL-shaped ref, so it goes last
	a.Loaders = []sources.Loader{medium, feed, scraper}

	var announcers []search.Announcer
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := events.NewPublisher(cfg.KafkaBrokers)
		if err != nil {
			return nil, err
		}
		a.Publisher = publisher
		announcers = append(announcers, publisher)
	} else {
		log.Println("app: no Kafka brokers configured, event publishing disabled")
	}

	if cfg.S3Bucket != "" {
		arch, err := archive.New(ctx, archive.Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			Profile:      cfg.S3Profile,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		a.Archive = arch
		announcers = append(announcers, arch)
	} else {
		log.Println("app: no S3 bucket configured, article archiving disabled")
	}

	a.Resolver = search.NewResolver(a.Store, a.Articles, a.SourceIDs, a.Discovery, a.Loaders, announcers...)
	a.Lookup = search.NewLookup(a.Store, a.TagIndex, a.WordIndex, a.Resolver, a.Searchers)
	a.Engine = search.NewEngine(a.Store, a.Articles, a.Lookup, a.TagQueue, a.WordQueue)

	if cfg.CohereAPIKey != "" {
		suggester := discovery.NewCohereSuggester(cfg.CohereAPIKey, "")
		limiter := coordination.NewRateLimiter(a.Redis, discovery.RateLimitKey, 3)
		a.Generator = discovery.NewGenerator(a.Discovery, a.Store, a.Articles, suggester, limiter)
	} else {
		log.Println("app: no Cohere API key configured, tag generation disabled")
	}

	return a, nil
}

// Close shuts down the app's connections.
func (a *App) Close() {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			log.Printf("app: closing publisher: %v", err)
		}
	}
	if err := a.Redis.Close(); err != nil {
		log.Printf("app: closing redis: %v", err)
	}
}
