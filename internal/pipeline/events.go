package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// EventStageChanged is the Redis pub/sub channel the gateway subscribes to
// for SSE forwarding.
const EventStageChanged = "EVENT_STAGE_CHANGED"

// RedisEventSink publishes stage-change events to Redis pub/sub.
// Publishing is non-fatal: a failed publish is logged and dropped, the
// committed transition stands.
type RedisEventSink struct {
	rdb *redis.Client
}

// NewRedisEventSink returns a sink publishing on rdb.
func NewRedisEventSink(rdb *redis.Client) *RedisEventSink {
	return &RedisEventSink{rdb: rdb}
}

// StageChanged implements EventSink.
func (s *RedisEventSink) StageChanged(ctx context.Context, ev StageChangedEvent) {
	actor := ""
	if ev.Actor != nil {
		actor = *ev.Actor
	}
	payload, _ := json.Marshal(map[string]string{
		"type":          EventStageChanged,
		"applicationId": ev.ApplicationID,
		"from":          string(ev.From),
		"to":            string(ev.To),
		"actor":         actor,
	})
	if err := s.rdb.Publish(ctx, EventStageChanged, payload).Err(); err != nil {
		slog.Warn("publish EVENT_STAGE_CHANGED failed", "applicationId", ev.ApplicationID, "err", err)
	}
}
