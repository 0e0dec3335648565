// Package store 跨进程共享的键值状态。master、custom worker、cron worker 之间
// 只通过它同步: 进程表、cron 队列以及 fan-in 汇总记录。
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound key 不存在
	ErrNotFound = errors.New("store: key not found")
	// ErrNotJoinRecord key 存在, 但值不是 {results, tasks} 形状的 fan-in 记录
	ErrNotJoinRecord = errors.New("store: not a fan-in record")
)

// Store 值统一以 JSON 编码
type Store interface {
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, value any) error
	Del(ctx context.Context, keys ...string) error
	// SetMulti 原子地写入多个 key
	SetMulti(ctx context.Context, values map[string]any) error
	// ApplyJoin 原子地把一个子任务结果合并进 fan-in 记录, 返回剩余子任务数;
	// 记录不存在时返回 ErrNotFound, 值不是 fan-in 记录时返回 ErrNotJoinRecord 且不改写
	ApplyJoin(ctx context.Context, key, subtaskID string, result any) (int, error)
}

// Driver 面向原始字节的底层实现
type Driver interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, keys ...string) error
	SetMulti(ctx context.Context, values map[string][]byte) error
	ApplyJoin(ctx context.Context, key, subtaskID string, result []byte) (int, error)
	Close() error
}

// KV 在 Driver 之上处理 key 前缀、JSON 编解码与单次操作超时
type KV struct {
	driver  Driver
	prefix  string
	timeout time.Duration
}

var _ Store = (*KV)(nil)

func NewKV(driver Driver, prefix string, timeout time.Duration) *KV {
	return &KV{driver: driver, prefix: prefix, timeout: timeout}
}

func (s *KV) key(k string) string { return s.prefix + k }

func (s *KV) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *KV) Get(ctx context.Context, key string, dst any) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	raw, err := s.driver.Get(ctx, s.key(key))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *KV) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.driver.Set(ctx, s.key(key), raw)
}

func (s *KV) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.driver.Del(ctx, full...)
}

func (s *KV) SetMulti(ctx context.Context, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	encoded := make(map[string][]byte, len(values))
	for k, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", k, err)
		}
		encoded[s.key(k)] = raw
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.driver.SetMulti(ctx, encoded)
}

func (s *KV) ApplyJoin(ctx context.Context, key, subtaskID string, result any) (int, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return 0, fmt.Errorf("encode join result: %w", err)
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.driver.ApplyJoin(ctx, s.key(key), subtaskID, raw)
}

func (s *KV) Close() error {
	return s.driver.Close()
}

// joinRecord 与 model.FanInJob 的 JSON 形状一致, 结果保持原始字节避免重复解码。
// Tasks 为指针: 缺少 tasks 字段的值不是 fan-in 记录
type joinRecord struct {
	Results map[string]json.RawMessage `json:"results"`
	Tasks   *int                       `json:"tasks"`
}

// mergeJoin 合并一个子任务结果: 首次出现的子任务使计数减一 (不低于 0), 重复的只覆盖结果。
// 其它形状的值原样保留, 返回 ErrNotJoinRecord
func mergeJoin(raw []byte, subtaskID string, result []byte) ([]byte, int, error) {
	var job joinRecord
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrNotJoinRecord, err)
	}
	if job.Tasks == nil {
		return nil, 0, fmt.Errorf("%w: tasks missing", ErrNotJoinRecord)
	}
	if job.Results == nil {
		job.Results = map[string]json.RawMessage{}
	}
	tasks := *job.Tasks
	if _, dup := job.Results[subtaskID]; !dup {
		tasks--
		if tasks < 0 {
			tasks = 0
		}
	}
	if len(result) == 0 {
		result = []byte("null")
	}
	job.Results[subtaskID] = json.RawMessage(result)
	job.Tasks = &tasks
	out, err := json.Marshal(job)
	if err != nil {
		return nil, 0, fmt.Errorf("encode fan-in record: %w", err)
	}
	return out, tasks, nil
}
