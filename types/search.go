package types

import (
	"regexp"
	"strings"
)

var invalidTagCharacters = regexp.MustCompile(`[^a-z0-9]`)

// NormalizeTag converts a raw tag into its canonical lowercase
// dash-separated form. Returns "" when nothing remains.
func NormalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = invalidTagCharacters.ReplaceAllString(tag, "-")
	return strings.Trim(tag, "-")
}

// TagKind is the closed set of search tag kinds. A normal tag maps to an
// article's tags; author maps to its author, www to its link's hostname.
type TagKind int

const (
	TagNormal TagKind = iota
	TagAuthor
	TagWWW
)

func (k TagKind) String() string {
	switch k {
	case TagNormal:
		return "normal"
	case TagAuthor:
		return "author"
	case TagWWW:
		return "www"
	default:
		return "unknown"
	}
}

// SearchTag is a parsed search filter, e.g. "author_jane" or a bare tag.
type SearchTag struct {
	Kind  TagKind `json:"kind"`
	Value string  `json:"value"`
}

// ParseSearchTag splits a raw tag of the form "kind_value". A missing or
// unrecognised kind prefix yields a normal tag over the whole string.
func ParseSearchTag(raw string) SearchTag {
	split := strings.Index(raw, "_")
	if split == -1 {
		return SearchTag{Kind: TagNormal, Value: raw}
	}

	switch raw[:split] {
	case "author":
		return SearchTag{Kind: TagAuthor, Value: raw[split+1:]}
	case "www":
		return SearchTag{Kind: TagWWW, Value: raw[split+1:]}
	case "normal":
		return SearchTag{Kind: TagNormal, Value: raw[split+1:]}
	default:
		return SearchTag{Kind: TagNormal, Value: raw}
	}
}

// SearchRequest is a parsed search: a free-text term plus tag filters.
type SearchRequest struct {
	Term string      `json:"term"`
	Tags []SearchTag `json:"tags"`
}

// SearchResponseTag reports a tag of a matched article and whether the tag
// itself was part of the match.
type SearchResponseTag struct {
	Name       string `json:"name"`
	WasMatched bool   `json:"wasMatched"`
}

// SearchResponseItem is one search result. Title is split so that
// odd-indexed elements are the matched substrings, for client highlighting.
type SearchResponseItem struct {
	ID             string              `json:"id"`
	Title          []string            `json:"title"`
	Author         string              `json:"author"`
	WasAuthorMatch bool                `json:"wasAuthorMatch"`
	Link           string              `json:"link"`
	WasLinkMatch   bool                `json:"wasLinkMatch"`
	Published      string              `json:"published"`
	Tags           []SearchResponseTag `json:"tags"`
}

// SearchResponse is the payload of the search endpoint.
type SearchResponse struct {
	Results []SearchResponseItem `json:"results"`
	Count   int                  `json:"count"`
}

// StatsResponse summarises the index and the background queues.
type StatsResponse struct {
	Articles              int64 `json:"articles"`
	Tags                  int64 `json:"tags"`
	Authors               int64 `json:"authors"`
	TagSearchQueueSize    int64 `json:"tagSearchQueueSize"`
	WordSearchQueueSize   int64 `json:"wordSearchQueueSize"`
	TagDiscoveryQueueSize int64 `json:"tagDiscoveryQueueSize"`
}
