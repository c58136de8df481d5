package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DedupTTL = 48 * time.Hour

// Deduper caches settled event ids in front of the payment_events table.
// Only settled events are remembered, so an event whose apply failed is
// never short-circuited here.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Remember(ctx context.Context, eventID string) error
}

type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: DedupTTL}
}

func (d *RedisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, dedupKey(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists failed: %w", err)
	}
	return n > 0, nil
}

func (d *RedisDeduper) Remember(ctx context.Context, eventID string) error {
	if err := d.client.Set(ctx, dedupKey(eventID), time.Now().Unix(), d.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func dedupKey(eventID string) string {
	return fmt.Sprintf("payment:event:%s", eventID)
}

// NopDeduper never short-circuits and leaves dedup to the database.
type NopDeduper struct{}

func (NopDeduper) Seen(context.Context, string) (bool, error) { return false, nil }
func (NopDeduper) Remember(context.Context, string) error     { return nil }
