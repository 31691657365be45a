package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"artiller/app"
	"artiller/config"
	"artiller/coordination"
	"artiller/events"
	"artiller/types"
	"artiller/workers"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build app: %v", err)
	}
	defer a.Close()

	pool := workers.NewPool(a.Redis)

	pool.Run(ctx, "tag-search", cfg.TagSearchWorkers,
		workers.TagSearchLoop(a.Lookup, a.TagIndex, a.TagQueue))

	wordLimiter := coordination.NewRateLimiter(a.Redis, workers.WordSearchRateLimitKey, 3)
	pool.Run(ctx, "word-search", cfg.WordSearchWorkers,
		workers.WordSearchLoop(a.Lookup, a.WordIndex, a.WordQueue, wordLimiter))

	if a.Generator != nil {
		pool.Run(ctx, "tag-generation", cfg.TagGenerationWorkers,
			workers.TagGenerationLoop(a.Generator))
	}

	if len(cfg.KafkaBrokers) > 0 {
		if err := startEventConsumer(ctx, cfg, a); err != nil {
			log.Fatalf("failed to start event consumer: %v", err)
		}
	}

	<-ctx.Done()
	log.Println("shutting down, waiting for workers to finish")
	pool.Wait()
}

// startEventConsumer subscribes to article-created events from other
// deployments so their articles end up in this deployment's discovery queue
// and cache too.
func startEventConsumer(ctx context.Context, cfg config.Config, a *app.App) error {
	consumer, err := events.NewConsumer(events.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   events.ArticleCreatedTopic,
		GroupID: "artiller-worker",
		Handler: &events.ArticleCreatedHandler{
			Process: func(ctx context.Context, event *events.ArticleCreated) error {
				return handleArticleCreated(ctx, a, event.Article)
			},
		},
	})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		if err := consumer.Close(); err != nil {
			log.Printf("closing event consumer: %v", err)
		}
	}()

	return consumer.Start(ctx)
}

func handleArticleCreated(ctx context.Context, a *app.App, article *types.Article) error {
	if err := a.Articles.Put(ctx, article); err != nil {
		return err
	}
	if article.TagsLoading {
		if _, err := a.Discovery.Enqueue(ctx, article.ID); err != nil {
			return err
		}
	}
	return nil
}
