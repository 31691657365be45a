package api

import (
	"net/http"
	"strings"

	"artiller/types"

	"github.com/gin-gonic/gin"
)

// RegisterSearchRoutes registers the search endpoint.
func RegisterSearchRoutes(r *gin.Engine, deps Deps) {
	r.GET("/api/search", func(c *gin.Context) {
		handleSearch(c, deps)
	})
}

// handleSearch runs a search from query parameters: term is free text,
// tags is a comma separated list of "kind_value" filters.
func handleSearch(c *gin.Context, deps Deps) {
	req := searchFromQuery(c.Query("term"), c.Query("tags"))

	response, err := deps.Engine.Search(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, response)
}

func searchFromQuery(term, tags string) types.SearchRequest {
	req := types.SearchRequest{Term: term, Tags: []types.SearchTag{}}
	for _, raw := range strings.Split(tags, ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			req.Tags = append(req.Tags, types.ParseSearchTag(raw))
		}
	}
	return req
}
