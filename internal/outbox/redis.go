package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	eventField       = "event"
	defaultMaxLength = 100000
)

// RedisOutbox appends events to a Redis stream and reads them back through a
// consumer group.
type RedisOutbox struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisOutbox(client *redis.Client, stream string) *RedisOutbox {
	return &RedisOutbox{client: client, stream: stream, maxLen: defaultMaxLength}
}

func (o *RedisOutbox) Stream() string {
	return o.stream
}

func (o *RedisOutbox) Publish(ctx context.Context, event Event) error {
	encoded, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode outbox event: %w", err)
	}
	err = o.client.XAdd(ctx, &redis.XAddArgs{
		Stream: o.stream,
		MaxLen: o.maxLen,
		Approx: true,
		Values: map[string]any{eventField: string(encoded)},
	}).Err()
	if err != nil {
		return fmt.Errorf("append outbox event: %w", err)
	}
	return nil
}

// EnsureGroup creates the consumer group (and the stream) when missing.
func (o *RedisOutbox) EnsureGroup(ctx context.Context, group string) error {
	err := o.client.XGroupCreateMkStream(ctx, o.stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", group, err)
	}
	return nil
}

// Message is one stream entry. Err is set when the entry could not be decoded.
type Message struct {
	ID    string
	Event Event
	Err   error
}

// Read fetches up to count new entries for consumer. A negative block returns immediately.
func (o *RedisOutbox) Read(ctx context.Context, group, consumer string, count int64, block time.Duration) ([]Message, error) {
	streams, err := o.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{o.stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read outbox: %w", err)
	}

	var messages []Message
	for _, stream := range streams {
		for _, entry := range stream.Messages {
			messages = append(messages, decodeEntry(entry))
		}
	}
	return messages, nil
}

func decodeEntry(entry redis.XMessage) Message {
	msg := Message{ID: entry.ID}
	raw, ok := entry.Values[eventField].(string)
	if !ok {
		msg.Err = fmt.Errorf("outbox entry %s has no %q field", entry.ID, eventField)
		return msg
	}
	if err := json.Unmarshal([]byte(raw), &msg.Event); err != nil {
		msg.Err = fmt.Errorf("decode outbox entry %s: %w", entry.ID, err)
	}
	return msg
}

func (o *RedisOutbox) Ack(ctx context.Context, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := o.client.XAck(ctx, o.stream, group, ids...).Err(); err != nil {
		return fmt.Errorf("ack outbox entries: %w", err)
	}
	return nil
}
