// Package events publishes and consumes article lifecycle messages over
// Kafka. The resolver announces every article it creates; other processes
// (importers, separate deployments) consume the stream to keep their queues
// and caches warm.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"artiller/types"

	"github.com/IBM/sarama"
)

// ArticleCreatedTopic is the topic the resolver announces new articles on.
const ArticleCreatedTopic = "article-created"

// ArticleCreated is the message body for ArticleCreatedTopic.
type ArticleCreated struct {
	Article   *types.Article `json:"article"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Publisher writes article events through a synchronous producer, so a
// successful announce means the broker has the message.
type Publisher struct {
	producer sarama.SyncProducer
}

// NewPublisher connects a publisher to the brokers.
func NewPublisher(brokers []string) (*Publisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("connecting kafka producer: %w", err)
	}
	return &Publisher{producer: producer}, nil
}

// AnnounceCreated publishes an article-created event keyed by article id.
func (p *Publisher) AnnounceCreated(ctx context.Context, article *types.Article) error {
	payload, err := json.Marshal(ArticleCreated{Article: article, CreatedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("encoding article-created event: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: ArticleCreatedTopic,
		Key:   sarama.StringEncoder(article.ID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("publishing article-created for %s: %w", article.ID, err)
	}

	log.Printf("events: announced article %s (partition=%d offset=%d)", article.ID, partition, offset)
	return nil
}

// Close flushes and shuts the producer down.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
