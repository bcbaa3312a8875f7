package distributed

import (
	"context"
	"encoding/json"
	"fmt"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const eventsChannel = "streamcast:events"

// RedisEventBus publishes lifecycle and analytics events over Redis pub/sub.
// Publication is fire-and-forget: a failed publish is logged and swallowed,
// never surfaced to the operation that raised the event.
type RedisEventBus struct {
	client     *redis.Client
	instanceID string
	logger     *zap.SugaredLogger
}

func NewRedisEventBus(client *redis.Client, instanceID string, logger *zap.SugaredLogger) *RedisEventBus {
	return &RedisEventBus{
		client:     client,
		instanceID: instanceID,
		logger:     logger,
	}
}

var _ ports.EventBus = (*RedisEventBus)(nil)

type wireEvent struct {
	InstanceID string `json:"instance_id"`
	*domain.Event
}

func (eb *RedisEventBus) Publish(ctx context.Context, event *domain.Event) {
	data, err := json.Marshal(wireEvent{InstanceID: eb.instanceID, Event: event})
	if err != nil {
		eb.logger.Warnw("failed to marshal event", "type", event.Type, "error", err)
		return
	}

	if err := eb.client.Publish(ctx, eventsChannel, data).Err(); err != nil {
		eb.logger.Warnw("failed to publish event",
			"type", event.Type,
			"stream_id", event.StreamID,
			"error", err,
		)
		return
	}

	eb.logger.Debugw("published event",
		"type", event.Type,
		"stream_id", event.StreamID,
		"user_id", event.UserID,
	)
}

// Subscribe consumes events published by other instances until ctx is
// canceled. Events from this instance are skipped.
func (eb *RedisEventBus) Subscribe(ctx context.Context, handler func(*domain.Event) error) error {
	pubsub := eb.client.Subscribe(ctx, eventsChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("event channel closed")
			}
			var event wireEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				eb.logger.Warnw("failed to unmarshal event", "error", err, "payload", msg.Payload)
				continue
			}
			if event.InstanceID == eb.instanceID || event.Event == nil {
				continue
			}
			if err := handler(event.Event); err != nil {
				eb.logger.Warnw("error handling event", "type", event.Type, "error", err)
			}
		}
	}
}

// LogEventBus is the fallback bus when Redis is not available: events go to
// the log only.
type LogEventBus struct {
	logger *zap.SugaredLogger
}

func NewLogEventBus(logger *zap.SugaredLogger) *LogEventBus {
	return &LogEventBus{logger: logger}
}

var _ ports.EventBus = (*LogEventBus)(nil)

func (eb *LogEventBus) Publish(_ context.Context, event *domain.Event) {
	eb.logger.Debugw("event",
		"type", event.Type,
		"stream_id", event.StreamID,
		"user_id", event.UserID,
	)
}
