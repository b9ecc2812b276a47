package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	contractsv1 "ocelot/contracts/gen/events/v1"

	"github.com/redis/go-redis/v9"
)

const (
	streamKeyPrefix = "ocelot:events:"
	envelopeField   = "envelope"
	readBatchSize   = 16

	defaultStreamMaxLen     = 100000
	defaultStreamBlock      = 2 * time.Second
	defaultStreamRetryDelay = 30 * time.Second
)

type StreamOptions struct {
	// Consumer names this process inside its consumer groups. Defaults to the
	// host name.
	Consumer string
	// MaxLen caps each stream approximately. Zero keeps the default, a
	// negative value disables trimming.
	MaxLen int64
	// Block bounds one XREADGROUP wait.
	Block time.Duration
	// RetryDelay is how long a failed entry stays pending before any
	// consumer of the group claims it again.
	RetryDelay time.Duration
}

// RedisStreams is the event bus between the api, the worker and the
// external scorer. Each topic is one stream. Every consumer group reads each
// entry, and an entry is acknowledged only after its handler succeeds.
type RedisStreams struct {
	client     *redis.Client
	consumer   string
	maxLen     int64
	block      time.Duration
	retryDelay time.Duration
	logger     *slog.Logger
}

func NewRedisStreams(client *redis.Client, opts StreamOptions, logger *slog.Logger) (*RedisStreams, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	consumer := strings.TrimSpace(opts.Consumer)
	if consumer == "" {
		host, err := os.Hostname()
		if err != nil || strings.TrimSpace(host) == "" {
			host = "ocelot"
		}
		consumer = host
	}
	bus := &RedisStreams{
		client:     client,
		consumer:   consumer,
		maxLen:     opts.MaxLen,
		block:      opts.Block,
		retryDelay: opts.RetryDelay,
		logger:     logger,
	}
	if bus.maxLen == 0 {
		bus.maxLen = defaultStreamMaxLen
	}
	if bus.block <= 0 {
		bus.block = defaultStreamBlock
	}
	if bus.retryDelay <= 0 {
		bus.retryDelay = defaultStreamRetryDelay
	}
	return bus, nil
}

// StreamKey is the Redis key holding a topic's events.
func StreamKey(topic string) string {
	return streamKeyPrefix + strings.TrimSpace(topic)
}

func (b *RedisStreams) Publish(ctx context.Context, topic string, event contractsv1.Envelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}
	args := &redis.XAddArgs{
		Stream: StreamKey(topic),
		Values: map[string]interface{}{
			envelopeField: string(payload),
			"event_id":    event.EventID,
			"event_type":  event.EventType,
		},
	}
	if b.maxLen > 0 {
		args.MaxLen = b.maxLen
		args.Approx = true
	}
	entryID, err := b.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	b.logger.Debug("event published",
		"event", "bus_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
		"entry_id", entryID,
	)
	return nil
}

// Subscribe creates the consumer group when missing, starting from the
// beginning of the stream, and consumes it until ctx is cancelled.
func (b *RedisStreams) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, contractsv1.Envelope) error,
) error {
	stream := StreamKey(topic)
	err := b.client.XGroupCreateMkStream(ctx, stream, consumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", consumerGroup, stream, err)
	}

	go b.consume(ctx, topic, consumerGroup, handler)
	return nil
}

func (b *RedisStreams) consume(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, contractsv1.Envelope) error,
) {
	stream := StreamKey(topic)
	for ctx.Err() == nil {
		b.reclaim(ctx, topic, consumerGroup, handler)

		streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    consumerGroup,
			Consumer: b.consumer,
			Streams:  []string{stream, ">"},
			Count:    readBatchSize,
			Block:    b.block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Error("stream read failed",
				"event", "bus_read_failed",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"consumer_group", consumerGroup,
				"error", err.Error(),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(b.block):
			}
			continue
		}
		for _, item := range streams {
			for _, message := range item.Messages {
				b.dispatch(ctx, topic, consumerGroup, message, handler)
			}
		}
	}
}

// reclaim takes over entries left pending longer than the retry delay,
// whether this consumer or a stopped one failed them.
func (b *RedisStreams) reclaim(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, contractsv1.Envelope) error,
) {
	messages, _, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey(topic),
		Group:    consumerGroup,
		Consumer: b.consumer,
		MinIdle:  b.retryDelay,
		Start:    "0-0",
		Count:    readBatchSize,
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			b.logger.Warn("stream reclaim failed",
				"event", "bus_reclaim_failed",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"consumer_group", consumerGroup,
				"error", err.Error(),
			)
		}
		return
	}
	for _, message := range messages {
		b.dispatch(ctx, topic, consumerGroup, message, handler)
	}
}

func (b *RedisStreams) dispatch(
	ctx context.Context,
	topic string,
	consumerGroup string,
	message redis.XMessage,
	handler func(context.Context, contractsv1.Envelope) error,
) {
	event, err := decodeEntry(message)
	if err != nil {
		b.logger.Error("stream entry dropped",
			"event", "bus_entry_undecodable",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", topic,
			"consumer_group", consumerGroup,
			"entry_id", message.ID,
			"error", err.Error(),
		)
		b.ack(ctx, topic, consumerGroup, message.ID)
		return
	}

	if err := handler(ctx, event); err != nil {
		b.logger.Error("consumer handler failed",
			"event", "bus_consume_failed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", topic,
			"consumer_group", consumerGroup,
			"entry_id", message.ID,
			"event_id", event.EventID,
			"event_type", event.EventType,
			"retry_after", b.retryDelay.String(),
			"error", err.Error(),
		)
		return
	}
	b.ack(ctx, topic, consumerGroup, message.ID)
}

func (b *RedisStreams) ack(ctx context.Context, topic string, consumerGroup string, entryID string) {
	if err := b.client.XAck(ctx, StreamKey(topic), consumerGroup, entryID).Err(); err != nil && ctx.Err() == nil {
		b.logger.Warn("stream ack failed",
			"event", "bus_ack_failed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", topic,
			"consumer_group", consumerGroup,
			"entry_id", entryID,
			"error", err.Error(),
		)
	}
}

func decodeEntry(message redis.XMessage) (contractsv1.Envelope, error) {
	raw, ok := message.Values[envelopeField].(string)
	if !ok {
		return contractsv1.Envelope{}, fmt.Errorf("entry %s has no %s field", message.ID, envelopeField)
	}
	var event contractsv1.Envelope
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return contractsv1.Envelope{}, fmt.Errorf("decode entry %s: %w", message.ID, err)
	}
	return event, nil
}
