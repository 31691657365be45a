package sources

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"artiller/types"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

const feedRefreshInterval = 10 * time.Minute

// Feed searches and loads articles from a configured set of RSS/Atom feeds.
// Feeds are re-fetched lazily at most once per refresh interval; both
// searching and loading work off the same parsed snapshot.
type Feed struct {
	parser *gofeed.Parser
	urls   []string

	mu        sync.Mutex
	items     []*gofeed.Item
	fetchedAt time.Time
}

func NewFeed(urls []string) *Feed {
	return &Feed{parser: gofeed.NewParser(), urls: urls}
}

func (f *Feed) Name() string { return "feed" }

// IDsByTag returns refs for feed items carrying the tag as a category.
func (f *Feed) IDsByTag(ctx context.Context, tag string) ([]types.SourceRef, error) {
	items, err := f.refresh(ctx)
	if err != nil {
		return nil, err
	}

	var refs []types.SourceRef
	for _, item := range items {
		for _, category := range item.Categories {
			if types.NormalizeTag(category) == tag {
				refs = append(refs, types.SourceRef{Source: "feed", ID: item.Link})
				break
			}
		}
	}
	return refs, nil
}

// IDsByWord returns refs for feed items whose title contains the word.
func (f *Feed) IDsByWord(ctx context.Context, word string) ([]types.SourceRef, error) {
	items, err := f.refresh(ctx)
	if err != nil {
		return nil, err
	}

	var refs []types.SourceRef
	for _, item := range items {
		if titleContainsWord(item.Title, word) {
			refs = append(refs, types.SourceRef{Source: "feed", ID: item.Link})
		}
	}
	return refs, nil
}

func (f *Feed) Accepts(ref types.SourceRef) (string, bool) {
	if ref.Source != "feed" {
		return "", false
	}
	return ref.ID, true
}

// Load builds articles from the snapshot's items. Items that have dropped
// out of their feed since they were found are skipped.
func (f *Feed) Load(ctx context.Context, sourceIDs []string) (map[string]types.ArticleData, error) {
	items, err := f.refresh(ctx)
	if err != nil {
		return nil, err
	}

	byLink := make(map[string]*gofeed.Item, len(items))
	for _, item := range items {
		byLink[item.Link] = item
	}

	articles := make(map[string]types.ArticleData, len(sourceIDs))
	for _, link := range sourceIDs {
		item, ok := byLink[link]
		if !ok {
			log.Printf("feed: item %s no longer present in any feed", link)
			continue
		}
		articles[link] = feedItemData(item)
	}
	return articles, nil
}

// refresh returns the current item snapshot, re-fetching the feeds when the
// snapshot is stale. A feed that fails to parse is skipped so one broken
// feed does not take the others out.
func (f *Feed) refresh(ctx context.Context) ([]*gofeed.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.items != nil && time.Since(f.fetchedAt) < feedRefreshInterval {
		return f.items, nil
	}

	var items []*gofeed.Item
	var failures int
	for _, feedURL := range f.urls {
		feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			log.Printf("feed: parsing %s: %v", feedURL, err)
			failures++
			continue
		}
		items = append(items, feed.Items...)
	}
	if failures == len(f.urls) && len(f.urls) > 0 {
		return nil, fmt.Errorf("all %d feeds failed to parse", failures)
	}

	f.items = items
	f.fetchedAt = time.Now()
	return items, nil
}

func feedItemData(item *gofeed.Item) types.ArticleData {
	data := types.ArticleData{
		Title: strings.TrimSpace(item.Title),
		Link:  item.Link,
	}

	if item.Author != nil {
		data.Author = strings.TrimSpace(item.Author.Name)
	}
	if item.PublishedParsed != nil {
		data.Published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		data.Published = *item.UpdatedParsed
	}

	for _, category := range item.Categories {
		if tag := types.NormalizeTag(category); tag != "" {
			data.Tags = append(data.Tags, tag)
		}
	}

	content := item.Content
	if content == "" {
		content = item.Description
	}
	data.Paragraphs = htmlParagraphs(content)
	return data
}

// htmlParagraphs flattens the html of a feed entry into plain text
// paragraphs. Entries without markup become a single paragraph.
func htmlParagraphs(content string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		if text := strings.TrimSpace(content); text != "" {
			return []string{text}
		}
		return nil
	}

	paragraphs := selectionTexts(doc.Find("p"))
	if len(paragraphs) > 0 {
		return paragraphs
	}
	if text := strings.TrimSpace(doc.Text()); text != "" {
		return []string{text}
	}
	return nil
}

func titleContainsWord(title, word string) bool {
	for _, titleWord := range strings.Fields(strings.ToLower(title)) {
		if strings.Trim(titleWord, ".,:;!?\"'()[]") == strings.ToLower(word) {
			return true
		}
	}
	return false
}
