package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"artiller/cache"
	"artiller/coordination"
	"artiller/discovery"
	"artiller/search"
	"artiller/sources"
	"artiller/store"
	"artiller/types"
	"artiller/workers"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// fakeLoader resolves absolute URLs to fixed article data, standing in for
// the web scraper.
type fakeLoader struct {
	pages map[string]types.ArticleData
}

func (f *fakeLoader) Name() string { return "scraper" }

func (f *fakeLoader) Accepts(ref types.SourceRef) (string, bool) {
	parsed, err := url.Parse(ref.ID)
	if err != nil || !parsed.IsAbs() {
		return "", false
	}
	return ref.ID, true
}

func (f *fakeLoader) Load(ctx context.Context, sourceIDs []string) (map[string]types.ArticleData, error) {
	loaded := make(map[string]types.ArticleData, len(sourceIDs))
	for _, id := range sourceIDs {
		if data, ok := f.pages[id]; ok {
			loaded[id] = data
		}
	}
	return loaded, nil
}

// fakeArchive serves archived snapshots from a map.
type fakeArchive struct {
	articles map[string]*types.Article
}

func (f *fakeArchive) Load(ctx context.Context, id string) (*types.Article, error) {
	return f.articles[id], nil
}

type apiFixture struct {
	router  *gin.Engine
	store   store.ArticleStore
	disc    *discovery.Queue
	loader  *fakeLoader
	archive *fakeArchive
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	st := store.NewMemory()
	loader := &fakeLoader{pages: map[string]types.ArticleData{}}
	archive := &fakeArchive{articles: map[string]*types.Article{}}

	articles := cache.NewArticles(client, st, 0)
	sourceIDs := cache.NewSourceIDs(client, 0)
	tags := cache.NewIndex(client, cache.KindTag, 0, 0)
	words := cache.NewIndex(client, cache.KindWord, 0, 0)
	stats := cache.NewStats(client, st, 0)
	disc := discovery.NewQueue(client)
	tagQueue := coordination.NewUniqueQueue(client, workers.TagSearchQueueKey)
	wordQueue := coordination.NewUniqueQueue(client, workers.WordSearchQueueKey)

	resolver := search.NewResolver(st, articles, sourceIDs, disc, []sources.Loader{loader})
	lookup := search.NewLookup(st, tags, words, resolver, nil)
	engine := search.NewEngine(st, articles, lookup, tagQueue, wordQueue)

	router := NewRouter(Deps{
		Engine:    engine,
		Resolver:  resolver,
		Articles:  articles,
		Stats:     stats,
		Archive:   archive,
		Discovery: disc,
		TagQueue:  tagQueue,
		WordQueue: wordQueue,
	})

	return &apiFixture{router: router, store: st, disc: disc, loader: loader, archive: archive}
}

func (f *apiFixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) seedArticle(t *testing.T, title, author, link string, tags []string) string {
	t.Helper()
	data := types.ArticleData{
		Title:     title,
		Author:    author,
		Link:      link,
		Published: time.Now(),
	}
	id, err := f.store.CreateArticle(context.Background(), "seed", link, data, false)
	if err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}
	if len(tags) > 0 {
		if err := f.store.AddTags(context.Background(), id, tags); err != nil {
			t.Fatalf("AddTags: %v", err)
		}
	}
	return id
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeJSON[map[string]string](t, rec)
	if body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
}

func TestGetArticle(t *testing.T) {
	f := newAPIFixture(t)
	id := f.seedArticle(t, "Some Title", "Jane", "https://example.com/a", []string{"linux"})

	rec := f.do(t, http.MethodGet, "/api/article?id="+id)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	article := decodeJSON[types.Article](t, rec)
	if article.ID != id || article.Title != "Some Title" {
		t.Errorf("article = %+v", article)
	}

	if rec := f.do(t, http.MethodGet, "/api/article?id=nope"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want 404", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/article"); rec.Code != http.StatusBadRequest {
		t.Errorf("missing id: status = %d, want 400", rec.Code)
	}
}

// An article the store has lost is still served from the archive.
func TestGetArticleFallsBackToArchive(t *testing.T) {
	f := newAPIFixture(t)
	f.archive.articles["lost-id"] = &types.Article{
		ID:     "lost-id",
		Title:  "Archived Title",
		Author: "Jane",
		Link:   "https://example.com/lost",
	}

	rec := f.do(t, http.MethodGet, "/api/article?id=lost-id")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	article := decodeJSON[types.Article](t, rec)
	if article.Title != "Archived Title" {
		t.Errorf("article = %+v", article)
	}

	if rec := f.do(t, http.MethodGet, "/api/article?id=never-existed"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want 404", rec.Code)
	}
}

// An article flagged as tags-loading but no longer queued for discovery
// should be served with the flag cleared.
func TestGetArticleClearsStaleTagsLoading(t *testing.T) {
	f := newAPIFixture(t)

	data := types.ArticleData{
		Title:     "T",
		Author:    "A",
		Link:      "https://example.com/t",
		Published: time.Now(),
	}
	id, err := f.store.CreateArticle(context.Background(), "seed", "t", data, true)
	if err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}

	rec := f.do(t, http.MethodGet, "/api/article?id="+id)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	article := decodeJSON[types.Article](t, rec)
	if article.TagsLoading {
		t.Error("tags-loading flag should be cleared when the article is not queued")
	}
}

func TestImportArticle(t *testing.T) {
	f := newAPIFixture(t)
	f.loader.pages["https://example.com/post"] = types.ArticleData{
		Title:     "Imported Post",
		Author:    "Author",
		Link:      "https://example.com/post",
		Published: time.Now(),
	}

	rec := f.do(t, http.MethodPost, "/api/import?url=https%3A%2F%2Fexample.com%2Fpost")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON[map[string]any](t, rec)
	id, _ := body["id"].(string)
	if body["success"] != true || id == "" {
		t.Fatalf("body = %v", body)
	}

	stored, err := f.store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored == nil || stored.Title != "Imported Post" {
		t.Errorf("stored = %+v", stored)
	}

	// freshly imported articles go to tag discovery
	queued, err := f.disc.IsQueued(context.Background(), id)
	if err != nil {
		t.Fatalf("IsQueued: %v", err)
	}
	if !queued {
		t.Error("imported article should be queued for tag discovery")
	}
}

func TestImportArticleRejectsBadInput(t *testing.T) {
	f := newAPIFixture(t)

	if rec := f.do(t, http.MethodPost, "/api/import"); rec.Code != http.StatusBadRequest {
		t.Errorf("missing url: status = %d, want 400", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/import?url=not-a-url"); rec.Code != http.StatusBadRequest {
		t.Errorf("relative url: status = %d, want 400", rec.Code)
	}

	// a page the loader cannot resolve shows up as an unprocessable import
	rec := f.do(t, http.MethodPost, "/api/import?url=https%3A%2F%2Fexample.com%2Fmissing")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unresolvable url: status = %d, want 422: %s", rec.Code, rec.Body.String())
	}
}

func TestSearchEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	id := f.seedArticle(t, "Installing Arch Linux", "Jane", "https://blog.example.com/arch", []string{"linux"})

	rec := f.do(t, http.MethodGet, "/api/search?tags=linux")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	resp := decodeJSON[types.SearchResponse](t, rec)
	if resp.Count != 1 || len(resp.Results) != 1 {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Results[0].ID != id {
		t.Errorf("result id = %q, want %q", resp.Results[0].ID, id)
	}
}

func TestStatsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.seedArticle(t, "One", "Jane", "https://example.com/1", []string{"linux", "arch"})
	f.seedArticle(t, "Two", "Sam", "https://example.com/2", []string{"linux"})

	rec := f.do(t, http.MethodGet, "/api/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	stats := decodeJSON[types.StatsResponse](t, rec)
	if stats.Articles != 2 {
		t.Errorf("articles = %d, want 2", stats.Articles)
	}
	if stats.Tags != 2 {
		t.Errorf("tags = %d, want 2", stats.Tags)
	}
	if stats.Authors != 2 {
		t.Errorf("authors = %d, want 2", stats.Authors)
	}
}
