package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/groceries-api/internal/model"
)

// Redis key layout.
const (
	redisItemKeyPrefix = "groceries:item:"
	redisIndexKey      = "groceries:ids"
)

// errIDCollision is returned when a generated id is already taken.
var errIDCollision = errors.New("generated item id already exists")

// RedisStore implements Store on a Redis server. Each item is a JSON value
// under "groceries:item:<id>" and its id is a member of "groceries:ids".
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts *redis.Options, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}

	logger.Info("redis store connected",
		zap.String("addr", opts.Addr),
		zap.Int("db", opts.DB),
	)

	return &RedisStore{client: client}, nil
}

// List returns all items from the store.
func (s *RedisStore) List(ctx context.Context) ([]model.GroceryItem, error) {
	ids, err := s.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	items := make([]model.GroceryItem, 0, len(ids))
	if len(ids) == 0 {
		return items, nil
	}

	values, err := s.client.MGet(ctx, lo.Map(ids, func(id string, _ int) string {
		return redisItemKey(id)
	})...).Result()
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	for _, value := range values {
		// Deleted between SMEMBERS and MGET.
		data, ok := value.(string)
		if !ok {
			continue
		}

		var item model.GroceryItem
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			return nil, fmt.Errorf("list items: unmarshal item: %w", err)
		}
		items = append(items, item)
	}

	return items, nil
}

// Create stores a new item. SETNX guarantees an existing key is never
// overwritten.
func (s *RedisStore) Create(ctx context.Context, name string) (*model.GroceryItem, error) {
	item := newItem(name)

	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("create item: marshal item: %w", err)
	}

	key := redisItemKey(item.ID)

	var setCmd *redis.BoolCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		setCmd = pipe.SetNX(ctx, key, data, 0)
		pipe.SAdd(ctx, redisIndexKey, item.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	if !setCmd.Val() {
		return nil, fmt.Errorf("create item %s: %w", item.ID, errIDCollision)
	}

	return &item, nil
}

// Update renames an existing item. The key is watched so a concurrent
// delete aborts the transaction.
func (s *RedisStore) Update(ctx context.Context, id, name string) (*model.GroceryItem, error) {
	key := redisItemKey(id)

	var item model.GroceryItem

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return notFound(id)
			}
			return err
		}

		if err := json.Unmarshal(data, &item); err != nil {
			return fmt.Errorf("unmarshal item: %w", err)
		}
		item.Name = name

		updated, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal item: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}

	return &item, nil
}

// Delete removes an item from the store by its ID.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	key := redisItemKey(id)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound(id)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, redisIndexKey, id)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}

func redisItemKey(id string) string {
	return redisItemKeyPrefix + id
}
