package store

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const eventsChannel = "bid.events"

// Events publishes terminal outcomes onto a Redis pub/sub channel for
// anything watching the account (dashboards, ad hoc redis-cli). Delivery
// is best effort and never affects the decision path.
type Events struct {
	rdb *redis.Client
	log *slog.Logger
}

// NewEvents constructs the publisher.
func NewEvents(rdb *redis.Client, log *slog.Logger) *Events {
	return &Events{rdb: rdb, log: log}
}

// Publish emits one event. Failures are logged and swallowed.
func (e *Events) Publish(ctx context.Context, kind string, fields map[string]string) {
	payload := map[string]string{"type": kind}
	for k, v := range fields {
		payload[k] = v
	}
	event, _ := json.Marshal(payload)
	if err := e.rdb.Publish(ctx, eventsChannel, event).Err(); err != nil {
		e.log.Warn("event publish failed", "kind", kind, "err", err)
	}
}
