package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTimeout = 5 * time.Second

// Redis keeps records in a shared redis instance under a key prefix
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects and pings the server
func NewRedis(redisURL, prefix string) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, &StorageError{Key: redisURL, Op: "open", Err: classify(ErrStorageUnavailable, err)}
	}
	r := NewRedisClient(redis.NewClient(opt), prefix)

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		_ = r.client.Close()
		return nil, &StorageError{Key: redisURL, Op: "open", Err: classify(ErrStorageUnavailable, err)}
	}
	return r, nil
}

// NewRedisClient wraps an existing client
func NewRedisClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Read(key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	value, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StorageError{Key: key, Op: "read", Err: classifyRedis(err)}
	}
	return value, true, nil
}

func (r *Redis) Write(key string, value []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return &StorageError{Key: key, Op: "write", Err: classifyRedis(err)}
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func classifyRedis(err error) error {
	if strings.HasPrefix(err.Error(), "OOM") {
		return classify(ErrStorageFull, err)
	}
	return classify(ErrStorageUnavailable, err)
}

// WriteBatch sets all records in one MULTI/EXEC transaction
func (r *Redis) WriteBatch(records map[string][]byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range sortedKeys(records) {
			pipe.Set(ctx, r.prefix+key, records[key], 0)
		}
		return nil
	})
	if err != nil {
		return &StorageError{Key: "batch", Op: "write", Err: classifyRedis(err)}
	}
	return nil
}
