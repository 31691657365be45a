package store

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"artiller/types"

	"github.com/google/uuid"
)

// Memory is an in-memory ArticleStore. Used by tests and local runs; it is
// a disposable stand-in, not a persistence layer.
type Memory struct {
	mu        sync.RWMutex
	articles  map[string]*types.Article
	sourceIDs map[string]string // "source\x00sourceID" -> article id
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		articles:  make(map[string]*types.Article),
		sourceIDs: make(map[string]string),
	}
}

func sourceKey(source, sourceID string) string {
	return source + "\x00" + sourceID
}

func cloneArticle(a *types.Article) *types.Article {
	clone := *a
	clone.Tags = append([]string(nil), a.Tags...)
	clone.Paragraphs = append([]string(nil), a.Paragraphs...)
	return &clone
}

func (m *Memory) GetByID(ctx context.Context, id string) (*types.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.articles[id]
	if !ok {
		return nil, nil
	}
	return cloneArticle(a), nil
}

func (m *Memory) GetManyByIDs(ctx context.Context, ids []string) ([]*types.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*types.Article, 0, len(ids))
	for _, id := range ids {
		if a, ok := m.articles[id]; ok {
			result = append(result, cloneArticle(a))
		}
	}
	return result, nil
}

func (m *Memory) GetIDsByTag(ctx context.Context, tag string) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make(map[string]struct{})
	for id, a := range m.articles {
		for _, t := range a.Tags {
			if t == tag {
				ids[id] = struct{}{}
				break
			}
		}
	}
	return ids, nil
}

func (m *Memory) GetIDsByAuthors(ctx context.Context, authors []string) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[string]struct{}, len(authors))
	for _, a := range authors {
		wanted[a] = struct{}{}
	}

	ids := make(map[string]struct{})
	for id, a := range m.articles {
		if _, ok := wanted[a.Author]; ok {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

func (m *Memory) GetIDsByDomains(ctx context.Context, domains []string) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		wanted[strings.ToLower(d)] = struct{}{}
	}

	ids := make(map[string]struct{})
	for id, a := range m.articles {
		u, err := url.Parse(a.Link)
		if err != nil {
			continue
		}
		if _, ok := wanted[strings.ToLower(u.Hostname())]; ok {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

func (m *Memory) GetIDsByTitleWord(ctx context.Context, word string) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	word = strings.ToLower(word)
	ids := make(map[string]struct{})
	for id, a := range m.articles {
		if strings.Contains(strings.ToLower(a.Title), word) {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

func (m *Memory) GetIDBySourceRef(ctx context.Context, source, sourceID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.sourceIDs[sourceKey(source, sourceID)], nil
}

func (m *Memory) CreateArticle(ctx context.Context, source, sourceID string, data types.ArticleData, tagsLoading bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	m.articles[id] = &types.Article{
		ID:          id,
		Title:       data.Title,
		Author:      data.Author,
		Link:        data.Link,
		Tags:        append([]string(nil), data.Tags...),
		TagsLoading: tagsLoading,
		Published:   data.Published,
		Paragraphs:  append([]string(nil), data.Paragraphs...),
	}
	m.sourceIDs[sourceKey(source, sourceID)] = id
	return id, nil
}

func (m *Memory) AddTags(ctx context.Context, id string, tags []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.articles[id]
	if !ok {
		return nil
	}

	existing := make(map[string]struct{}, len(a.Tags))
	for _, t := range a.Tags {
		existing[t] = struct{}{}
	}
	for _, t := range tags {
		if _, ok := existing[t]; ok {
			continue
		}
		a.Tags = append(a.Tags, t)
		existing[t] = struct{}{}
	}
	a.TagsLoading = false
	return nil
}

func (m *Memory) ArticleCount(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.articles)), nil
}

func (m *Memory) TagCount(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tags := make(map[string]struct{})
	for _, a := range m.articles {
		for _, t := range a.Tags {
			tags[t] = struct{}{}
		}
	}
	return int64(len(tags)), nil
}

func (m *Memory) AuthorCount(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	authors := make(map[string]struct{})
	for _, a := range m.articles {
		if a.Author != "" {
			authors[a.Author] = struct{}{}
		}
	}
	return int64(len(authors)), nil
}
