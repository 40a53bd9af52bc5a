package queue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a FIFO list: Push adds on the left, Pop takes from the right.
type RedisQueue struct {
	rdb       redis.Cmdable
	queueName string
}

func NewRedisQueue(rdb redis.Cmdable, queueName string) *RedisQueue {
	return &RedisQueue{rdb: rdb, queueName: queueName}
}

func (q *RedisQueue) Name() string { return q.queueName }

func (q *RedisQueue) Push(ctx context.Context, payload string) error {
	return q.rdb.LPush(ctx, q.queueName, payload).Err()
}

// Pop blocks for up to timeout (0 waits forever) and returns "" when nothing
// arrived in time.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.queueName).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.queueName).Result()
}
