package claim

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dukerupert/agenda/internal/model"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "agenda:reminder:"

// RedisClaimer takes SETNX claims so that overlapping reminder ticks, or
// several replicas, dispatch a reminder once.
type RedisClaimer struct {
	client *redis.Client
}

// New connects to the Redis server at url (redis://...) and verifies it
// responds.
func New(ctx context.Context, url string) (*RedisClaimer, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisClaimer{client: client}, nil
}

// Claim returns true when this caller is the first to claim key within ttl.
func (c *RedisClaimer) Claim(ctx context.Context, key model.SentKey, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, redisKey(key), "sent", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", redisKey(key), err)
	}
	return ok, nil
}

func (c *RedisClaimer) Close() error {
	return c.client.Close()
}

func redisKey(k model.SentKey) string {
	return keyPrefix + k.OwnerID + ":" + k.Kind + ":" + k.EntityID + ":" + strconv.Itoa(k.Offset)
}
