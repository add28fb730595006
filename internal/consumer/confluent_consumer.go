package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	pkglog "github.com/edi-spaghetti/cs50w-network/pkg/log"
)

// ConfluentConsumer implements CDCEventConsumer using confluent-kafka-go.
type ConfluentConsumer struct {
	consumer *kafka.Consumer
	topics   []string
	handler  CDCEventHandler
	doneCh   chan struct{}
}

// NewConfluentConsumer creates a new Kafka consumer for the comma-separated
// list of CDC topics.
func NewConfluentConsumer(brokers, topics, groupID string, handler CDCEventHandler) (*ConfluentConsumer, error) {
	list := splitTopics(topics)
	if len(list) == 0 {
		return nil, errors.New("no kafka topics configured")
	}

	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"group.id":           groupID,
		"auto.offset.reset":  "latest",
		"enable.auto.commit": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &ConfluentConsumer{
		consumer: c,
		topics:   list,
		handler:  handler,
		doneCh:   make(chan struct{}),
	}, nil
}

func splitTopics(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Start begins consuming CDC messages from Kafka.
func (cc *ConfluentConsumer) Start(ctx context.Context) error {
	if err := cc.consumer.SubscribeTopics(cc.topics, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topics %v: %w", cc.topics, err)
	}

	l := pkglog.L()
	l.Info().Strs("topics", cc.topics).Msg("kafka CDC consumer started")

	go cc.consumeLoop(ctx)

	return nil
}

func (cc *ConfluentConsumer) consumeLoop(ctx context.Context) {
	l := pkglog.L()
	defer close(cc.doneCh)

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("kafka CDC consumer shutting down")
			return
		default:
			msg, err := cc.consumer.ReadMessage(100 * time.Millisecond)
			if err != nil {
				var kerr kafka.Error
				if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				l.Error().Err(err).Msg("kafka CDC consumer error")
				continue
			}

			topic := ""
			if msg.TopicPartition.Topic != nil {
				topic = *msg.TopicPartition.Topic
			}
			processMessage(context.WithoutCancel(ctx), cc.handler, topic, msg.Value)
		}
	}
}

func processMessage(ctx context.Context, handler CDCEventHandler, topic string, value []byte) {
	l := pkglog.L()

	// Debezium emits a null tombstone after each delete.
	if len(value) == 0 {
		return
	}

	var event DebeziumMessage
	if err := json.Unmarshal(value, &event); err != nil {
		l.Error().Err(err).Str("topic", topic).Msg("failed to unmarshal debezium CDC event")
		return
	}

	l.Debug().
		Str("topic", topic).
		Str("op", event.Payload.Op).
		Int64("ts_ms", event.Payload.TsMs).
		Msg("received CDC event")

	if err := handler.HandleCDCEvent(ctx, topic, &event); err != nil {
		l.Error().Err(err).Str("op", event.Payload.Op).Msg("failed to handle CDC event")
	}
}

// Close stops the consumer and releases resources.
// It waits for any in-flight message to finish before closing.
func (cc *ConfluentConsumer) Close() error {
	<-cc.doneCh
	if err := cc.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	return nil
}

var _ CDCEventConsumer = (*ConfluentConsumer)(nil)
