package store

import (
	"context"
	"sync"
)

// MemoryDriver 单进程内的实现, 用于测试和不拉起子进程的部署
type MemoryDriver struct {
	mu   sync.Mutex
	data map[string][]byte
}

var _ Driver = (*MemoryDriver)(nil)

func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{data: map[string][]byte{}}
}

func (m *MemoryDriver) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryDriver) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	m.data[key] = append([]byte(nil), value...)
	m.mu.Unlock()
	return nil
}

func (m *MemoryDriver) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.data, k)
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryDriver) SetMulti(_ context.Context, values map[string][]byte) error {
	m.mu.Lock()
	for k, v := range values {
		m.data[k] = append([]byte(nil), v...)
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryDriver) ApplyJoin(_ context.Context, key, subtaskID string, result []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return 0, ErrNotFound
	}
	out, remaining, err := mergeJoin(raw, subtaskID, result)
	if err != nil {
		return 0, err
	}
	m.data[key] = out
	return remaining, nil
}

func (m *MemoryDriver) Close() error { return nil }

// NewMemory 测试常用的便捷构造
func NewMemory(prefix string) *KV {
	return NewKV(NewMemoryDriver(), prefix, 0)
}
