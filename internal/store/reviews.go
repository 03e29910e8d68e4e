package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"lancebid/bidder-service/internal/model"
)

// ErrReviewNotFound is returned by Get for unknown ids.
var ErrReviewNotFound = errors.New("store: pending review not found")

const reviewKeyPrefix = "review:"

// Reviews holds project snapshots parked for human approval, keyed by
// project id, each with the bid amount pre-computed at discovery time.
type Reviews struct {
	rdb *redis.Client
}

// NewReviews constructs the store over an existing client.
func NewReviews(rdb *redis.Client) *Reviews {
	return &Reviews{rdb: rdb}
}

// Put stores the record if absent. Returns true when the record was new;
// an existing record is left untouched so concurrent writers cannot
// clobber each other's snapshot.
func (s *Reviews) Put(ctx context.Context, rec model.PendingReview) (bool, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("marshal review %s: %w", rec.ID, err)
	}

	ok, err := s.rdb.SetNX(ctx, reviewKeyPrefix+rec.ID, payload, 0).Result()
	if err != nil {
		return false, fmt.Errorf("review setnx %s: %w", rec.ID, err)
	}
	return ok, nil
}

// Get returns the record for id, or ErrReviewNotFound.
func (s *Reviews) Get(ctx context.Context, id string) (model.PendingReview, error) {
	payload, err := s.rdb.Get(ctx, reviewKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.PendingReview{}, ErrReviewNotFound
	}
	if err != nil {
		return model.PendingReview{}, fmt.Errorf("review get %s: %w", id, err)
	}

	var rec model.PendingReview
	if err := json.Unmarshal(payload, &rec); err != nil {
		return model.PendingReview{}, fmt.Errorf("unmarshal review %s: %w", id, err)
	}
	return rec, nil
}

// Exists reports whether a record is parked for id.
func (s *Reviews) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.rdb.Exists(ctx, reviewKeyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("review exists %s: %w", id, err)
	}
	return n > 0, nil
}

// Delete removes a consumed record. Deleting an absent id is a no-op.
func (s *Reviews) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, reviewKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("review del %s: %w", id, err)
	}
	return nil
}
