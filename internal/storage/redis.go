package storage

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis implements fiber.Storage so limiter and CSRF state can be shared
// between several app instances.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(addr, prefix string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		PoolSize: 10,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Redis{client: client, prefix: prefix}, nil
}

// Get returns nil, nil for a missing key.
func (r *Redis) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	val, err := r.client.Get(context.Background(), r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

// Set stores val; exp == 0 means no expiry.
func (r *Redis) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	return r.client.Set(context.Background(), r.prefix+key, val, exp).Err()
}

func (r *Redis) Delete(key string) error {
	if key == "" {
		return nil
	}
	return r.client.Del(context.Background(), r.prefix+key).Err()
}

// Reset removes every key under the prefix.
func (r *Redis) Reset() error {
	ctx := context.Background()
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
