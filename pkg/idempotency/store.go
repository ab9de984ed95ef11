package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store keeps the converted-cart markers and the cart-clear retry queue.
// A marker means "this cart already produced a committed order whose clear
// has not landed yet"; checking such a cart out again must be rejected,
// not duplicated. Markers carry a TTL so a lost Forget cannot block a cart
// forever.
type Store struct {
	rdb      *redis.Client
	ttl      time.Duration
	queueKey string
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl, queueKey: "cart:clear:retry"}
}

func (s *Store) markKey(cartID uuid.UUID) string {
	return fmt.Sprintf("cart:converted:%s", cartID)
}

func (s *Store) MarkConverted(ctx context.Context, cartID, orderID uuid.UUID) error {
	return s.rdb.Set(ctx, s.markKey(cartID), orderID.String(), s.ttl).Err()
}

func (s *Store) Converted(ctx context.Context, cartID uuid.UUID) (bool, error) {
	_, err := s.rdb.Get(ctx, s.markKey(cartID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Forget(ctx context.Context, cartID uuid.UUID) error {
	return s.rdb.Del(ctx, s.markKey(cartID)).Err()
}

func (s *Store) EnqueueRetry(ctx context.Context, cartID uuid.UUID) error {
	return s.rdb.RPush(ctx, s.queueKey, cartID.String()).Err()
}

// DequeueRetry pops one cart id; ok is false when the queue is empty.
func (s *Store) DequeueRetry(ctx context.Context) (uuid.UUID, bool, error) {
	v, err := s.rdb.LPop(ctx, s.queueKey).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("malformed cart id in retry queue: %w", err)
	}
	return id, true, nil
}
