// Package archive keeps a durable JSON copy of every created article in
// object storage. The archive is write-mostly: articles can be replayed
// into a rebuilt store, and the API reads from it only as a last resort
// for articles the store has lost.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"artiller/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// Config contains minimal configuration for the archive's S3 client. Values
// are optional and fall back to the standard AWS config/credential chain.
type Config struct {
	Bucket string
	// Region to use for requests, e.g. "us-east-1". If empty, AWS defaults apply.
	Region string
	// Profile selects a named shared config/credentials profile.
	Profile string
	// UsePathStyle forces path-style addressing (useful for some
	// S3-compatible providers).
	UsePathStyle bool
}

// Archive stores article snapshots under articles/<id>.json.
type Archive struct {
	client *s3.Client
	bucket string
}

// New creates an archive using the default AWS configuration chain, with
// optional overrides from cfg.
func New(ctx context.Context, cfg Config) (*Archive, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &Archive{client: client, bucket: cfg.Bucket}, nil
}

func articleArchiveKey(id string) string {
	return "articles/" + id + ".json"
}

// AnnounceCreated archives a newly created article. It satisfies the
// resolver's announcer hook, so archiving rides the same best-effort path
// as event publishing.
func (a *Archive) AnnounceCreated(ctx context.Context, article *types.Article) error {
	payload, err := json.Marshal(article)
	if err != nil {
		return fmt.Errorf("encoding article %s for archive: %w", article.ID, err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(articleArchiveKey(article.ID)),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archiving article %s: %w", article.ID, err)
	}
	return nil
}

// Load reads an archived article back, returning nil when it was never
// archived.
func (a *Archive) Load(ctx context.Context, id string) (*types.Article, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(articleArchiveKey(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading archived article %s: %w", id, err)
	}
	defer out.Body.Close()

	payload, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading archived article %s: %w", id, err)
	}

	var article types.Article
	if err := json.Unmarshal(payload, &article); err != nil {
		return nil, fmt.Errorf("decoding archived article %s: %w", id, err)
	}
	return &article, nil
}

func isNotFound(err error) bool {
	var respErr *http.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}
