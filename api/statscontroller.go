package api

import (
	"net/http"

	"artiller/types"

	"github.com/gin-gonic/gin"
)

// RegisterStatsRoutes registers the stats endpoint.
func RegisterStatsRoutes(r *gin.Engine, deps Deps) {
	r.GET("/api/stats", func(c *gin.Context) {
		handleGetStats(c, deps)
	})
}

// handleGetStats reports cached aggregate counts plus live queue sizes.
func handleGetStats(c *gin.Context, deps Deps) {
	ctx := c.Request.Context()
	var (
		stats types.StatsResponse
		err   error
	)

	if stats.Articles, err = deps.Stats.ArticleCount(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if stats.Tags, err = deps.Stats.TagCount(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if stats.Authors, err = deps.Stats.AuthorCount(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if stats.TagSearchQueueSize, err = deps.TagQueue.Size(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if stats.WordSearchQueueSize, err = deps.WordQueue.Size(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if stats.TagDiscoveryQueueSize, err = deps.Discovery.Size(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
