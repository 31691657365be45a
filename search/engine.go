package search

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"artiller/cache"
	"artiller/coordination"
	"artiller/store"
	"artiller/types"
)

// backgroundEnqueueLimit caps how many of a result set's tags and title
// words are fed back into the search queues per request.
const backgroundEnqueueLimit = 20

type matchKind int

const (
	matchTag matchKind = iota
	matchTitle
	matchAuthor
	matchWWW
)

// match records one reason an article matched. Title matches carry the
// matched range of the title; tag matches carry the tag.
type match struct {
	kind     matchKind
	tag      string
	from, to int
}

// Engine answers search requests. Each request may, as a side effect, create
// new articles (through the lookup fan-out) and feed the tags and words of
// its results back into the background search queues.
type Engine struct {
	store     store.ArticleStore
	articles  *cache.Articles
	lookup    *Lookup
	tagQueue  *coordination.UniqueQueue
	wordQueue *coordination.UniqueQueue
}

func NewEngine(st store.ArticleStore, articles *cache.Articles, lookup *Lookup, tagQueue, wordQueue *coordination.UniqueQueue) *Engine {
	return &Engine{
		store:     st,
		articles:  articles,
		lookup:    lookup,
		tagQueue:  tagQueue,
		wordQueue: wordQueue,
	}
}

// Search matches articles against the request and builds the client
// response, ordered by how many distinct matches each article had.
func (e *Engine) Search(ctx context.Context, req types.SearchRequest) (*types.SearchResponse, error) {
	matches := make(map[string][]match)

	// words can only be confirmed against the fetched titles, so collect
	// candidates first
	titleCandidates := make(map[string][]string)
	for _, word := range MatchableWords(req.Term) {
		ids, err := e.lookup.ArticleIDsByWord(ctx, word)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			titleCandidates[id] = append(titleCandidates[id], word)
		}
	}

	var authors, domains []string
	for _, tag := range req.Tags {
		switch tag.Kind {
		case types.TagNormal:
			ids, err := e.lookup.ArticleIDsByTag(ctx, tag.Value)
			if err != nil {
				return nil, err
			}
			for _, id := range ids {
				matches[id] = append(matches[id], match{kind: matchTag, tag: tag.Value})
			}
		case types.TagAuthor:
			authors = append(authors, tag.Value)
		case types.TagWWW:
			domains = append(domains, tag.Value)
		}
	}

	if len(authors) > 0 {
		ids, err := e.store.GetIDsByAuthors(ctx, authors)
		if err != nil {
			return nil, err
		}
		for id := range ids {
			matches[id] = append(matches[id], match{kind: matchAuthor})
		}
	}
	if len(domains) > 0 {
		ids, err := e.store.GetIDsByDomains(ctx, domains)
		if err != nil {
			return nil, err
		}
		for id := range ids {
			matches[id] = append(matches[id], match{kind: matchWWW})
		}
	}

	articles, err := e.fetchArticles(ctx, matches, titleCandidates)
	if err != nil {
		return nil, err
	}

	// confirm title candidates against the actual titles
	for id, words := range titleCandidates {
		article, ok := articles[id]
		if !ok {
			continue
		}
		title := strings.ToLower(article.Title)
		for _, word := range words {
			index := strings.Index(title, word)
			if index == -1 {
				continue
			}
			matches[id] = append(matches[id], match{kind: matchTitle, from: index, to: index + len(word)})
		}
	}

	e.enqueueFollowups(ctx, articles)

	// matched ids the store no longer has produce no result, so the count
	// comes from the built results rather than the raw match set
	results := buildResults(articles, matches)
	return &types.SearchResponse{
		Results: results,
		Count:   len(results),
	}, nil
}

func (e *Engine) fetchArticles(ctx context.Context, matches map[string][]match, titleCandidates map[string][]string) (map[string]*types.Article, error) {
	idSet := make(map[string]struct{}, len(matches)+len(titleCandidates))
	for id := range matches {
		idSet[id] = struct{}{}
	}
	for id := range titleCandidates {
		idSet[id] = struct{}{}
	}

	fetched, err := e.articles.GetMany(ctx, setToSlice(idSet))
	if err != nil {
		return nil, err
	}

	articles := make(map[string]*types.Article, len(fetched))
	for _, article := range fetched {
		articles[article.ID] = article
	}
	return articles, nil
}

// enqueueFollowups feeds the tags and title words of this result set back
// into the background search queues, so related content gets discovered
// without another user waiting on it. Best effort.
func (e *Engine) enqueueFollowups(ctx context.Context, articles map[string]*types.Article) {
	tags := make(map[string]struct{})
	words := make(map[string]struct{})
	for _, article := range articles {
		for _, tag := range article.Tags {
			tags[tag] = struct{}{}
		}
		for _, word := range MatchableWords(article.Title) {
			words[word] = struct{}{}
		}
	}

	queued := 0
	for tag := range tags {
		if queued == backgroundEnqueueLimit {
			break
		}
		queued++
		if _, err := e.tagQueue.Enqueue(ctx, tag); err != nil {
			log.Printf("search: queueing tag %q: %v", tag, err)
		}
	}

	queued = 0
	for word := range words {
		if queued == backgroundEnqueueLimit {
			break
		}
		queued++
		if _, err := e.wordQueue.Enqueue(ctx, word); err != nil {
			log.Printf("search: queueing word %q: %v", word, err)
		}
	}
}

// buildResults shapes matched articles for the client, most-matched first.
// Each result's title is split at its match boundaries so odd-indexed
// segments are the matched text.
func buildResults(articles map[string]*types.Article, matches map[string][]match) []types.SearchResponseItem {
	ids := make([]string, 0, len(matches))
	for id := range matches {
		if _, ok := articles[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.SliceStable(ids, func(i, j int) bool {
		if len(matches[ids[i]]) != len(matches[ids[j]]) {
			return len(matches[ids[i]]) > len(matches[ids[j]])
		}
		return ids[i] < ids[j]
	})

	results := make([]types.SearchResponseItem, 0, len(ids))
	for _, id := range ids {
		article := articles[id]
		articleMatches := matches[id]

		var titleRanges [][2]int
		matchedTags := make(map[string]struct{})
		var authorMatch, linkMatch bool
		for _, m := range articleMatches {
			switch m.kind {
			case matchTitle:
				titleRanges = append(titleRanges, [2]int{m.from, m.to})
			case matchTag:
				matchedTags[m.tag] = struct{}{}
			case matchAuthor:
				authorMatch = true
			case matchWWW:
				linkMatch = true
			}
		}

		tags := make([]types.SearchResponseTag, len(article.Tags))
		for i, tag := range article.Tags {
			_, wasMatched := matchedTags[tag]
			tags[i] = types.SearchResponseTag{Name: tag, WasMatched: wasMatched}
		}

		results = append(results, types.SearchResponseItem{
			ID:             article.ID,
			Title:          cut(article.Title, cutPoints(mergeCutRanges(titleRanges))),
			Author:         article.Author,
			WasAuthorMatch: authorMatch,
			Link:           article.Link,
			WasLinkMatch:   linkMatch,
			Published:      article.Published.Format(time.RFC3339),
			Tags:           tags,
		})
	}
	return results
}
