// Package api exposes the search system over HTTP.
package api

import (
	"context"

	"artiller/cache"
	"artiller/coordination"
	"artiller/discovery"
	"artiller/search"
	"artiller/types"

	"github.com/gin-gonic/gin"
)

// ArticleArchive reads back archived article snapshots. nil result means
// the article was never archived.
type ArticleArchive interface {
	Load(ctx context.Context, id string) (*types.Article, error)
}

// Deps are the services the API serves from. Archive may be nil when no
// archive is configured.
type Deps struct {
	Engine    *search.Engine
	Resolver  *search.Resolver
	Articles  *cache.Articles
	Stats     *cache.Stats
	Archive   ArticleArchive
	Discovery *discovery.Queue
	TagQueue  *coordination.UniqueQueue
	WordQueue *coordination.UniqueQueue
}

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	// Minimal middleware: recovery; logger optional to reduce verbosity
	r.Use(gin.Recovery())

	RegisterSearchRoutes(r, deps)
	RegisterArticleRoutes(r, deps)
	RegisterStatsRoutes(r, deps)
	RegisterHealthRoutes(r)
	return r
}

// RegisterHealthRoutes registers the liveness endpoint.
func RegisterHealthRoutes(r *gin.Engine) {
	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})
}
