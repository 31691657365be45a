package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/IBM/sarama"
)

// Handler processes one consumed message. Returning an error, or shouldMark
// false, leaves the message unmarked so it is retried.
type Handler interface {
	HandleMessage(ctx context.Context, message []byte) (shouldMark bool, err error)
}

// Consumer wraps a sarama consumer group for a single topic.
type Consumer struct {
	group   sarama.ConsumerGroup
	handler Handler
	topic   string
	groupID string
	ready   chan bool
}

// ConsumerConfig holds the consumer wiring.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Handler Handler
}

func NewConsumer(config ConsumerConfig) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("connecting kafka consumer group: %w", err)
	}

	return &Consumer{
		group:   group,
		handler: config.Handler,
		topic:   config.Topic,
		groupID: config.GroupID,
		ready:   make(chan bool),
	}, nil
}

// Start begins consuming in the background and returns once the group has
// joined.
func (c *Consumer) Start(ctx context.Context) error {
	handler := &groupHandler{handler: c.handler, ready: c.ready}

	go func() {
		for {
			if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
				if err == context.Canceled {
					return
				}
				log.Printf("events: consumer error: %v", err)
			}
			if ctx.Err() != nil {
				return
			}
			handler.ready = make(chan bool)
		}
	}()

	<-c.ready
	log.Printf("events: consumer started (group=%s topic=%s)", c.groupID, c.topic)

	go func() {
		for err := range c.group.Errors() {
			log.Printf("events: consumer group error: %v", err)
		}
	}()
	return nil
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	handler Handler
	ready   chan bool
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			shouldMark, err := h.handler.HandleMessage(session.Context(), message.Value)
			if err != nil {
				log.Printf("events: handling message at offset %d: %v", message.Offset, err)
			}
			if shouldMark {
				session.MarkMessage(message, "")
			}

		case <-session.Context().Done():
			return nil
		}
	}
}

// ArticleCreatedHandler decodes article-created events and hands them to
// process. Undecodable messages are marked and skipped.
type ArticleCreatedHandler struct {
	Process func(ctx context.Context, event *ArticleCreated) error
}

func (h *ArticleCreatedHandler) HandleMessage(ctx context.Context, message []byte) (bool, error) {
	var event ArticleCreated
	if err := json.Unmarshal(message, &event); err != nil {
		log.Printf("events: skipping undecodable article-created event: %v", err)
		return true, nil
	}
	if event.Article == nil {
		return true, nil
	}

	if err := h.Process(ctx, &event); err != nil {
		return false, err
	}
	return true, nil
}
