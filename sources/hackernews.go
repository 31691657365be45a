package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"artiller/types"

	"github.com/hashicorp/go-retryablehttp"
)

const hackerNewsSearchEndpoint = "https://hn.algolia.com/api/v1/search"

// HackerNews searches story submissions through the Algolia HN API. Stories
// are external links, so the refs it returns carry the story URL as the
// source id and resolve through the scraper.
type HackerNews struct {
	client *retryablehttp.Client
	limit  int
}

func NewHackerNews() *HackerNews {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.Logger = nil
	return &HackerNews{client: client, limit: 10}
}

func (h *HackerNews) Name() string { return "hn" }

type hnSearchResponse struct {
	Hits []struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	} `json:"hits"`
}

// IDsByWord returns refs for the top stories matching word. Self posts and
// hits without a usable absolute URL are skipped.
func (h *HackerNews) IDsByWord(ctx context.Context, word string) ([]types.SourceRef, error) {
	endpoint := hackerNewsSearchEndpoint + "?query=" + url.QueryEscape(word) + "&tags=story"

	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building hn search request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching hn for %q: %w", word, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("searching hn for %q: status %d", word, resp.StatusCode)
	}

	var body hnSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding hn search response: %w", err)
	}

	refs := make([]types.SourceRef, 0, h.limit)
	for _, hit := range body.Hits {
		if len(refs) == h.limit {
			break
		}
		parsed, err := url.Parse(hit.URL)
		if err != nil || !parsed.IsAbs() || parsed.Hostname() == "" {
			continue
		}
		refs = append(refs, types.SourceRef{Source: "hn", ID: hit.URL})
	}
	return refs, nil
}
