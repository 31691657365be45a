package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"artiller/types"

	"github.com/hashicorp/go-retryablehttp"
)

const mediumGraphQLEndpoint = "https://medium.com/_/graphql"

// Medium searches and loads articles through Medium's GraphQL API.
type Medium struct {
	client   *retryablehttp.Client
	endpoint string
}

// NewMedium creates the Medium source.
func NewMedium() *Medium {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.Logger = nil
	return &Medium{client: client, endpoint: mediumGraphQLEndpoint}
}

func (m *Medium) Name() string { return "medium" }

func (m *Medium) graphql(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ArtillerBackend/0.1.0")

	res, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("medium: request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("medium: unexpected status %d", res.StatusCode)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("medium: decode: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("medium: decode data: %w", err)
	}
	return nil
}

const tagFeedQuery = `
    query TagFeedQuery($tagSlug: String, $mode: TagFeedMode) {
        tagFeed(paging: {limit: 10}, mode: $mode, tagSlug: $tagSlug) {
            items {
                ... on TagFeedItem {
                    post {
                        id
                    }
                }
            }
        }
    }
`

// IDsByTag returns refs for the hottest posts in Medium's tag feed.
func (m *Medium) IDsByTag(ctx context.Context, tag string) ([]types.SourceRef, error) {
	var result struct {
		TagFeed *struct {
			Items []struct {
				Post struct {
					ID string `json:"id"`
				} `json:"post"`
			} `json:"items"`
		} `json:"tagFeed"`
	}

	err := m.graphql(ctx, tagFeedQuery, map[string]interface{}{
		"tagSlug": tag,
		"mode":    "HOT",
	}, &result)
	if err != nil {
		return nil, err
	}
	if result.TagFeed == nil {
		return nil, nil
	}

	refs := make([]types.SourceRef, 0, len(result.TagFeed.Items))
	for _, item := range result.TagFeed.Items {
		if item.Post.ID != "" {
			refs = append(refs, types.SourceRef{Source: m.Name(), ID: item.Post.ID})
		}
	}
	return refs, nil
}

// Accepts claims refs produced by the Medium searcher.
func (m *Medium) Accepts(ref types.SourceRef) (string, bool) {
	if ref.Source != m.Name() {
		return "", false
	}
	return ref.ID, true
}

const postContentQuery = `
    query PostViewerEdgeContent($postId: ID!) {
        post(id: $postId) {
            title
            mediumUrl
            updatedAt
            creator {
                name
            }
            tags {
                normalizedTagSlug
            }
            viewerEdge {
                fullContent {
                    bodyModel {
                        paragraphs {
                            type
                            text
                        }
                    }
                }
            }
        }
    }
`

// Load fetches full post content for each post id. Posts Medium will not
// serve are skipped.
func (m *Medium) Load(ctx context.Context, sourceIDs []string) (map[string]types.ArticleData, error) {
	result := make(map[string]types.ArticleData, len(sourceIDs))

	for _, id := range sourceIDs {
		var payload struct {
			Post *struct {
				Title     string `json:"title"`
				MediumURL string `json:"mediumUrl"`
				UpdatedAt int64  `json:"updatedAt"`
				Creator   struct {
					Name string `json:"name"`
				} `json:"creator"`
				Tags []struct {
					NormalizedTagSlug string `json:"normalizedTagSlug"`
				} `json:"tags"`
				ViewerEdge struct {
					FullContent struct {
						BodyModel struct {
							Paragraphs []struct {
								Type string `json:"type"`
								Text string `json:"text"`
							} `json:"paragraphs"`
						} `json:"bodyModel"`
					} `json:"fullContent"`
				} `json:"viewerEdge"`
			} `json:"post"`
		}

		if err := m.graphql(ctx, postContentQuery, map[string]interface{}{"postId": id}, &payload); err != nil {
			log.Printf("medium: failed to load post %s: %v", id, err)
			continue
		}
		if payload.Post == nil {
			continue
		}

		post := payload.Post

		tags := make([]string, 0, len(post.Tags))
		for _, t := range post.Tags {
			if tag := types.NormalizeTag(t.NormalizedTagSlug); tag != "" {
				tags = append(tags, tag)
			}
		}

		paragraphs := make([]string, 0, len(post.ViewerEdge.FullContent.BodyModel.Paragraphs))
		for _, p := range post.ViewerEdge.FullContent.BodyModel.Paragraphs {
			// H* and P paragraph types carry the readable text
			if p.Text != "" {
				paragraphs = append(paragraphs, p.Text)
			}
		}

		result[id] = types.ArticleData{
			Title:      post.Title,
			Author:     post.Creator.Name,
			Link:       post.MediumURL,
			Tags:       tags,
			Published:  time.UnixMilli(post.UpdatedAt),
			Paragraphs: paragraphs,
		}
	}

	return result, nil
}
