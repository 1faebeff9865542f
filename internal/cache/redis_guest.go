package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hy-aurora/unimart-sub000/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisGuestStore stores each guest cart as a Redis list of JSON encoded items.
// The list TTL slides forward on every append.
type RedisGuestStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisGuestStore(client redis.UniversalClient, ttl time.Duration) *RedisGuestStore {
	return &RedisGuestStore{client: client, ttl: ttl}
}

func (r *RedisGuestStore) Append(ctx context.Context, guestID string, items ...domain.CartItem) ([]domain.CartItem, error) {
	key := guestKey(guestID)

	values := make([]interface{}, 0, len(items))
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("marshal guest item failed: %w", err)
		}
		values = append(values, data)
	}

	var list *redis.StringSliceCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(values) > 0 {
			pipe.RPush(ctx, key, values...)
			pipe.Expire(ctx, key, r.ttl)
		}
		list = pipe.LRange(ctx, key, 0, -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis guest append failed: %w", err)
	}

	return decodeGuestItems(list.Val())
}

func (r *RedisGuestStore) Items(ctx context.Context, guestID string) ([]domain.CartItem, error) {
	raw, err := r.client.LRange(ctx, guestKey(guestID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis guest read failed: %w", err)
	}
	return decodeGuestItems(raw)
}

func (r *RedisGuestStore) Drain(ctx context.Context, guestID string) ([]domain.CartItem, error) {
	key := guestKey(guestID)

	var list *redis.StringSliceCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		list = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis guest drain failed: %w", err)
	}

	return decodeGuestItems(list.Val())
}

func decodeGuestItems(raw []string) ([]domain.CartItem, error) {
	items := make([]domain.CartItem, 0, len(raw))
	for _, entry := range raw {
		var item domain.CartItem
		if err := json.Unmarshal([]byte(entry), &item); err != nil {
			return nil, fmt.Errorf("unmarshal guest item failed: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

func guestKey(guestID string) string {
	return fmt.Sprintf("guestcart:%s", guestID)
}
