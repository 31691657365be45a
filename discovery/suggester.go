package discovery

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"artiller/types"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

// Suggester produces tag suggestions for a batch of article titles. The
// returned outer slice is parallel to titles; a short result or an empty
// inner slice means no usable tags for that slot.
type Suggester interface {
	SuggestTags(ctx context.Context, titles []string) ([][]string, error)
}

// DefaultCohereModel is used when no model is configured.
const DefaultCohereModel = "command-r"

// CohereSuggester implements Suggester on the Cohere chat API.
type CohereSuggester struct {
	client *cohereclient.Client
	model  string
}

// NewCohereSuggester creates a suggester with the given API key. model ""
// uses DefaultCohereModel.
func NewCohereSuggester(apiKey, model string) *CohereSuggester {
	if model == "" {
		model = DefaultCohereModel
	}

	// Force HTTP/1.1; the Cohere endpoint intermittently resets HTTP/2
	// streams on long requests.
	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
			ForceAttemptHTTP2: false,
		},
	}

	client := cohereclient.NewClient(
		cohereclient.WithToken(apiKey),
		cohereclient.WithHTTPClient(httpClient),
	)
	return &CohereSuggester{client: client, model: model}
}

func buildPrompt(titles []string) string {
	var b strings.Builder

	b.WriteString(`You are a keyword generator for article titles. Keywords are short, lowercase and dash-separated.

Article titles:
1. "How Discord Stores Billions of Messages"
2. "Spotify: A New Way to Listen"
3. "Design Patterns With Typescript Examples: Singleton"

Article keywords:
1. engineering, discord
2. spotify, streaming-music
3. typescript, design-pattern

Article titles:
`)
	for i, title := range titles {
		fmt.Fprintf(&b, "%d. %q\n", i+1, title)
	}
	b.WriteString("\nArticle keywords:\n")

	return b.String()
}

var numberedLine = regexp.MustCompile(`^\s*(\d+)\.\s*(.*)$`)

// parseKeywordLines maps numbered "n. tag, tag" lines back to batch slots.
// Lines the model skipped leave their slot nil.
func parseKeywordLines(text string, slots int) [][]string {
	result := make([][]string, slots)

	for _, line := range strings.Split(text, "\n") {
		m := numberedLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		index := n - 1
		if index < 0 || index >= slots {
			continue
		}

		var tags []string
		for _, raw := range strings.Split(m[2], ",") {
			if tag := types.NormalizeTag(raw); tag != "" {
				tags = append(tags, tag)
			}
		}
		result[index] = tags
	}

	return result
}

// SuggestTags sends the batch to Cohere and parses one keyword list per
// title out of the reply.
func (c *CohereSuggester) SuggestTags(ctx context.Context, titles []string) ([][]string, error) {
	temperature := 0.2
	resp, err := c.client.Chat(ctx, &cohere.ChatRequest{
		Message:     buildPrompt(titles),
		Model:       &c.model,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("cohere suggest: %w", err)
	}
	if resp == nil || resp.Text == "" {
		return nil, fmt.Errorf("cohere suggest: empty response")
	}

	return parseKeywordLines(resp.Text, len(titles)), nil
}
