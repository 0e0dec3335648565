package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// maxJoinAttempts WATCH 冲突时的重试上限; 每一轮至少有一个并发者提交成功
const maxJoinAttempts = 128

// RedisDriver 多进程部署的默认实现。cluster 模式下 prefix 需带 hash tag (如 "{ypf}:"),
// 保证 SetMulti 的多个 key 落在同一个 slot
type RedisDriver struct {
	client redis.UniversalClient
}

var _ Driver = (*RedisDriver)(nil)

func NewRedisDriver(client redis.UniversalClient) *RedisDriver {
	return &RedisDriver{client: client}
}

func (r *RedisDriver) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (r *RedisDriver) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisDriver) Del(ctx context.Context, keys ...string) error {
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *RedisDriver) SetMulti(ctx context.Context, values map[string][]byte) error {
	pairs := make([]any, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, k, v)
	}
	if err := r.client.MSet(ctx, pairs...).Err(); err != nil {
		return fmt.Errorf("redis mset: %w", err)
	}
	return nil
}

// ApplyJoin 用 WATCH/MULTI 做乐观事务: 合并逻辑与其它驱动共用 mergeJoin, 结果字节原样保存
func (r *RedisDriver) ApplyJoin(ctx context.Context, key, subtaskID string, result []byte) (int, error) {
	var remaining int
	merge := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("redis get %s: %w", key, err)
		}
		out, n, err := mergeJoin(raw, subtaskID, result)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		if err != nil {
			return err
		}
		remaining = n
		return nil
	}

	for attempt := 0; attempt < maxJoinAttempts; attempt++ {
		err := r.client.Watch(ctx, merge, key)
		switch {
		case err == nil:
			return remaining, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotJoinRecord):
			return 0, err
		default:
			return 0, fmt.Errorf("redis join %s: %w", key, err)
		}
	}
	return 0, fmt.Errorf("redis join %s: gave up after %d conflicting attempts", key, maxJoinAttempts)
}

// Close 客户端由 redis 组件持有, 这里不关闭
func (r *RedisDriver) Close() error { return nil }
