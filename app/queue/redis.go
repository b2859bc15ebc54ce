package queue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPopTimeout = 5 * time.Second

// RedisQueue is a list based queue shared by every service instance.
type RedisQueue struct {
	client     *redis.Client
	key        string
	popTimeout time.Duration
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{
		client:     client,
		key:        key,
		popTimeout: defaultPopTimeout,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, eventID string) error {
	return q.client.LPush(ctx, q.key, eventID).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context) (string, error) {
	for {
		result, err := q.client.BRPop(ctx, q.popTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if errors.Is(err, redis.ErrClosed) {
				return "", ErrClosed
			}
			return "", err
		}
		// BRPop returns [key, value].
		if len(result) == 2 {
			return result[1], nil
		}
	}
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
