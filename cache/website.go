package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultWebsiteTTL bounds how long raw fetched pages are kept. Scraped
// pages change rarely and re-fetching them is the expensive part.
const DefaultWebsiteTTL = time.Hour

// Websites caches raw fetched page bodies by URL, so the scraper loader and
// concurrent resolvers of the same URL only download it once per TTL.
type Websites struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewWebsites creates the website cache. ttl <= 0 uses DefaultWebsiteTTL.
func NewWebsites(client redis.Cmdable, ttl time.Duration) *Websites {
	if ttl <= 0 {
		ttl = DefaultWebsiteTTL
	}
	return &Websites{client: client, ttl: ttl}
}

func websiteKey(url string) string {
	return "website:" + url
}

// Get returns the cached body for url, or "" if it is not cached.
func (w *Websites) Get(ctx context.Context, url string) (string, error) {
	body, err := w.client.Get(ctx, websiteKey(url)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("website cache: get %s: %w", url, err)
	}
	return body, nil
}

// Set caches the body for url.
func (w *Websites) Set(ctx context.Context, url, body string) error {
	if err := w.client.Set(ctx, websiteKey(url), body, w.ttl).Err(); err != nil {
		return fmt.Errorf("website cache: set %s: %w", url, err)
	}
	return nil
}
