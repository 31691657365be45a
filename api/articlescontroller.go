package api

import (
	"net/http"
	"net/url"

	"artiller/types"

	"github.com/gin-gonic/gin"
)

// RegisterArticleRoutes registers article read and import endpoints.
func RegisterArticleRoutes(r *gin.Engine, deps Deps) {
	r.GET("/api/article", func(c *gin.Context) {
		handleGetArticle(c, deps)
	})
	r.POST("/api/import", func(c *gin.Context) {
		handleImport(c, deps)
	})
}

// handleGetArticle returns one article by id. The tags-loading flag is
// re-checked against the discovery queue so it stays honest even when the
// cached copy predates tagging. Articles the store has lost are served
// from the archive as a last resort.
func handleGetArticle(c *gin.Context, deps Deps) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MISSING_PARAM", "param": "query.id"})
		return
	}

	article, err := deps.Articles.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if article == nil && deps.Archive != nil {
		article, err = deps.Archive.Load(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "NOT_FOUND"})
		return
	}

	if article.TagsLoading {
		queued, err := deps.Discovery.IsQueued(c.Request.Context(), article.ID)
		if err == nil && !queued {
			article.TagsLoading = false
		}
	}
	c.JSON(http.StatusOK, article)
}

// handleImport resolves an arbitrary article URL through the scraper,
// creating the article if it has never been seen.
func handleImport(c *gin.Context, deps Deps) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MISSING_PARAM", "param": "query.url"})
		return
	}
	if parsed, err := url.Parse(rawURL); err != nil || !parsed.IsAbs() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_PARAM", "param": "query.url"})
		return
	}

	ids, err := deps.Resolver.Resolve(c.Request.Context(), []types.SourceRef{
		{Source: "scraper", ID: rawURL},
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(ids) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "IMPORT_ERROR"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "id": ids[0]})
}
