package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const followupSetKey = "followup:alerted"

// Followups tracks which projects already produced an awarded/closed
// alert, so polling cycles never re-notify.
type Followups struct {
	rdb *redis.Client
}

// NewFollowups constructs the set over an existing client.
func NewFollowups(rdb *redis.Client) *Followups {
	return &Followups{rdb: rdb}
}

// MarkAlerted records the id, idempotently. Returns true the first time.
func (s *Followups) MarkAlerted(ctx context.Context, id string) (bool, error) {
	added, err := s.rdb.SAdd(ctx, followupSetKey, id).Result()
	if err != nil {
		return false, fmt.Errorf("followup sadd %s: %w", id, err)
	}
	return added > 0, nil
}

// Alerted reports whether an alert was already sent for id.
func (s *Followups) Alerted(ctx context.Context, id string) (bool, error) {
	ok, err := s.rdb.SIsMember(ctx, followupSetKey, id).Result()
	if err != nil {
		return false, fmt.Errorf("followup sismember %s: %w", id, err)
	}
	return ok, nil
}
