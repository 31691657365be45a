// Package config reads process configuration from the environment. Every
// value has a usable default so a bare `go run` against local Redis works.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is the shared configuration for the server and the workers.
type Config struct {
	// Port the HTTP API listens on.
	Port string

	// RedisAddr is the host:port of the shared Redis.
	RedisAddr string

	// CohereAPIKey enables the tag suggester. Empty disables tag
	// generation workers.
	CohereAPIKey string

	// KafkaBrokers enables event publishing/consuming. Empty disables it.
	KafkaBrokers []string

	// S3Bucket enables the article archive. Empty disables it.
	S3Bucket       string
	S3Region       string
	S3Profile      string
	S3UsePathStyle bool

	// FeedURLs are the RSS/Atom feeds the feed source searches.
	FeedURLs []string

	// Worker counts per loop.
	TagSearchWorkers     int
	WordSearchWorkers    int
	TagGenerationWorkers int
}

// DefaultFeedURLs are used when FEED_URLS is not set.
var DefaultFeedURLs = []string{
	"https://hnrss.org/newest",
	"https://www.technologyreview.com/feed/",
}

// Load builds the configuration from the environment.
func Load() Config {
	return Config{
		Port:         getEnv("PORT", "3001"),
		RedisAddr:    getEnv("REDIS_HOST", "localhost:6379"),
		CohereAPIKey: os.Getenv("COHERE_API_KEY"),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BOOTSTRAP_SERVERS")),

		S3Bucket:       strings.TrimSpace(os.Getenv("S3_BUCKET")),
		S3Region:       strings.TrimSpace(os.Getenv("S3_REGION")),
		S3Profile:      strings.TrimSpace(os.Getenv("S3_PROFILE")),
		S3UsePathStyle: strings.EqualFold(strings.TrimSpace(os.Getenv("S3_USE_PATH_STYLE")), "true"),

		FeedURLs: splitListDefault(os.Getenv("FEED_URLS"), DefaultFeedURLs),

		TagSearchWorkers:     getEnvInt("TAG_SEARCH_WORKERS", 2),
		WordSearchWorkers:    getEnvInt("WORD_SEARCH_WORKERS", 2),
		TagGenerationWorkers: getEnvInt("TAG_GENERATION_WORKERS", 1),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func splitList(val string) []string {
	if strings.TrimSpace(val) == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func splitListDefault(val string, fallback []string) []string {
	if list := splitList(val); list != nil {
		return list
	}
	return fallback
}
