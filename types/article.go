package types

import "time"

// Article is the denormalised representation served to clients. The canonical
// copy lives in the article store; Redis holds a time-bounded shadow copy.
type Article struct {
	// ID is a unique reference to this article
	ID string `json:"id"`

	// Title is the title text of the article, without any formatting
	Title string `json:"title"`

	// Author is the name of the person who wrote the article
	Author string `json:"author"`

	// Link is a URL the user can go to to read the article
	Link string `json:"link"`

	// Tags are normalised to lowercase and dash separated. Order is
	// preserved for display but matching is order-insensitive.
	Tags []string `json:"tags"`

	// TagsLoading is true while the article is queued to have extra tags
	// generated for it
	TagsLoading bool `json:"areExtraTagsLoading"`

	// Published is the date the article was published
	Published time.Time `json:"published"`

	// Paragraphs is the plain text of the article, one entry per paragraph
	Paragraphs []string `json:"paragraphs"`
}

// ArticleData is what a loader produces for an article before it has been
// assigned an internal ID.
type ArticleData struct {
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	Link       string    `json:"link"`
	Tags       []string  `json:"tags"`
	Published  time.Time `json:"published"`
	Paragraphs []string  `json:"paragraphs"`
}

// SourceRef externally identifies an article before ingestion: the name of
// the source it came from and the source-local article id in its serialised
// string form. Many refs may resolve to the same internal article.
type SourceRef struct {
	Source string `json:"source"`
	ID     string `json:"sourceArticleId"`
}
