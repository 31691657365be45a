package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"
	"time"

	"artiller/cache"
	"artiller/types"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/hashicorp/go-retryablehttp"
)

const scraperUserAgent = "ArtillerBackend/0.1.0"

// Scraper loads articles from arbitrary web pages by reading their metadata
// tags. It accepts any ref whose source id is an absolute http(s) URL, which
// lets searchers return external links without their own loader.
type Scraper struct {
	client   *retryablehttp.Client
	websites *cache.Websites
}

// NewScraper creates a scraper loader. websites may be nil to always fetch.
func NewScraper(websites *cache.Websites) *Scraper {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 15 * time.Second
	client.Logger = nil
	return &Scraper{client: client, websites: websites}
}

func (s *Scraper) Name() string { return "scraper" }

// Accepts claims any ref whose id parses as an absolute http or https URL,
// regardless of which searcher produced it.
func (s *Scraper) Accepts(ref types.SourceRef) (string, bool) {
	parsed, err := url.Parse(ref.ID)
	if err != nil || !parsed.IsAbs() || parsed.Hostname() == "" {
		return "", false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", false
	}
	return parsed.String(), true
}

// Load fetches each page and scrapes it. Pages that cannot be fetched or do
// not expose enough metadata are skipped with a log line.
func (s *Scraper) Load(ctx context.Context, sourceIDs []string) (map[string]types.ArticleData, error) {
	articles := make(map[string]types.ArticleData, len(sourceIDs))
	for _, pageURL := range sourceIDs {
		body, err := s.fetch(ctx, pageURL)
		if err != nil {
			log.Printf("scraper: fetching %s: %v", pageURL, err)
			continue
		}

		data, err := scrapeArticle(body, pageURL)
		if err != nil {
			log.Printf("scraper: ignoring %s: %v", pageURL, err)
			continue
		}
		articles[pageURL] = data
	}
	return articles, nil
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (string, error) {
	if s.websites != nil {
		cached, err := s.websites.Get(ctx, pageURL)
		if err != nil {
			return "", err
		}
		if cached != "" {
			return cached, nil
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", scraperUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	body := string(raw)

	if s.websites != nil {
		if err := s.websites.Set(ctx, pageURL, body); err != nil {
			log.Printf("scraper: caching %s: %v", pageURL, err)
		}
	}
	return body, nil
}

// scrapeArticle builds article data from a page, preferring the most
// specific metadata for each field and falling back down a chain. Pages
// missing a title, author or publish date are rejected.
func scrapeArticle(body, pageURL string) (types.ArticleData, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return types.ArticleData{}, fmt.Errorf("parsing html: %w", err)
	}

	ld := parseLDData(doc)

	data := types.ArticleData{Link: pageURL}

	data.Title = firstNonEmpty(
		metaContent(doc, `meta[property="og:title"]`),
		metaContent(doc, `meta[name="title"]`),
		metaContent(doc, `meta[name="twitter:title"]`),
		ld.headline,
	)

	data.Published = firstValidTime(
		metaContent(doc, `meta[property="og:updated_time"]`),
		metaContent(doc, `meta[property="article:modified_time"]`),
		metaContent(doc, `meta[property="article:published_time"]`),
		ld.dateModified,
		ld.datePublished,
	)

	data.Author = firstNonEmpty(
		ld.author,
		metaContent(doc, `meta[name="dcterms.creator"]`),
		metaContent(doc, `meta[name="author"]`),
		metaContent(doc, `meta[name="twitter:creator"]`),
	)

	data.Tags = scrapeTags(doc, ld)
	data.Paragraphs = scrapeParagraphs(doc, body, pageURL)

	switch {
	case data.Title == "":
		return types.ArticleData{}, fmt.Errorf("no title found")
	case data.Author == "":
		return types.ArticleData{}, fmt.Errorf("no author found")
	case data.Published.IsZero():
		return types.ArticleData{}, fmt.Errorf("no publish date found")
	case len(data.Paragraphs) == 0:
		return types.ArticleData{}, fmt.Errorf("no article text found")
	}
	return data, nil
}

func scrapeTags(doc *goquery.Document, ld ldData) []string {
	var raw []string
	doc.Find(`meta[property="article:tag"]`).Each(func(_ int, sel *goquery.Selection) {
		if content, ok := sel.Attr("content"); ok {
			raw = append(raw, content)
		}
	})
	if keywords := metaContent(doc, `meta[name="keywords"]`); keywords != "" {
		raw = append(raw, strings.Split(keywords, ",")...)
	}
	if ld.keywords != "" {
		raw = append(raw, strings.Split(ld.keywords, ",")...)
	}

	seen := make(map[string]struct{}, len(raw))
	tags := make([]string, 0, len(raw))
	for _, r := range raw {
		tag := types.NormalizeTag(r)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// scrapeParagraphs prefers paragraphs inside an article element, then the
// readability extraction of the whole page, then any body paragraphs that
// are not obviously chrome.
func scrapeParagraphs(doc *goquery.Document, body, pageURL string) []string {
	paragraphs := selectionTexts(doc.Find("article p"))
	if len(paragraphs) > 0 {
		return paragraphs
	}

	if parsed, err := url.Parse(pageURL); err == nil {
		if article, err := readability.FromReader(strings.NewReader(body), parsed); err == nil {
			for _, line := range strings.Split(article.TextContent, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					paragraphs = append(paragraphs, line)
				}
			}
			if len(paragraphs) > 0 {
				return paragraphs
			}
		}
	}

	return selectionTexts(doc.Find("p").Not("noscript p, header p, footer p, aside p, figure p"))
}

func selectionTexts(sel *goquery.Selection) []string {
	var texts []string
	sel.Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			texts = append(texts, text)
		}
	})
	return texts
}

// ldData is the subset of a page's JSON-LD block that the scraper reads.
type ldData struct {
	headline      string
	author        string
	keywords      string
	dateModified  string
	datePublished string
}

func parseLDData(doc *goquery.Document) ldData {
	text := doc.Find(`script[type="application/ld+json"]`).First().Text()
	if text == "" {
		return ldData{}
	}

	var raw struct {
		Headline      string          `json:"headline"`
		Author        json.RawMessage `json:"author"`
		Keywords      json.RawMessage `json:"keywords"`
		DateModified  string          `json:"dateModified"`
		DatePublished string          `json:"datePublished"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		log.Printf("scraper: unparseable ld+json block: %v", err)
		return ldData{}
	}

	data := ldData{
		headline:      strings.TrimSpace(raw.Headline),
		dateModified:  raw.DateModified,
		datePublished: raw.DatePublished,
	}

	// author is either a plain name or a {"name": ...} object
	var name string
	if json.Unmarshal(raw.Author, &name) == nil {
		data.author = strings.TrimSpace(name)
	} else {
		var obj struct {
			Name string `json:"name"`
		}
		if json.Unmarshal(raw.Author, &obj) == nil {
			data.author = strings.TrimSpace(obj.Name)
		}
	}

	// keywords is either a comma separated string or a list
	var keywords string
	if json.Unmarshal(raw.Keywords, &keywords) == nil {
		data.keywords = keywords
	} else {
		var list []string
		if json.Unmarshal(raw.Keywords, &list) == nil {
			data.keywords = strings.Join(list, ",")
		}
	}
	return data
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstValidTime(values ...string) time.Time {
	for _, v := range values {
		if v == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}
