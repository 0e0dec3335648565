package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fanIn struct {
	Results map[string]any `json:"results"`
	Tasks   int            `json:"tasks"`
}

func openSQLite(t *testing.T) *KV {
	t.Helper()
	d, err := OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	kv := NewKV(d, "test:", 0)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func openRedis(t *testing.T) *KV {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewKV(NewRedisDriver(client), "test:", 0)
}

// 三个驱动跑同一组用例
func eachDriver(t *testing.T, fn func(t *testing.T, s *KV)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory("test:")) })
	t.Run("sqlite", func(t *testing.T) { fn(t, openSQLite(t)) })
	t.Run("redis", func(t *testing.T) { fn(t, openRedis(t)) })
}

func TestGetSetDel(t *testing.T) {
	eachDriver(t, func(t *testing.T, s *KV) {
		ctx := context.Background()
		var v map[string]int
		assert.ErrorIs(t, s.Get(ctx, "missing", &v), ErrNotFound)

		require.NoError(t, s.Set(ctx, "a", map[string]int{"x": 1}))
		require.NoError(t, s.Get(ctx, "a", &v))
		assert.Equal(t, 1, v["x"])

		require.NoError(t, s.Set(ctx, "a", map[string]int{"x": 2}))
		require.NoError(t, s.Get(ctx, "a", &v))
		assert.Equal(t, 2, v["x"])

		require.NoError(t, s.Del(ctx, "a", "never-set"))
		assert.ErrorIs(t, s.Get(ctx, "a", &v), ErrNotFound)
	})
}

func TestSetMulti(t *testing.T) {
	eachDriver(t, func(t *testing.T, s *KV) {
		ctx := context.Background()
		require.NoError(t, s.SetMulti(ctx, map[string]any{
			"queue": map[string]string{"A": "a"},
			"ready": map[string]string{},
		}))
		var q, r map[string]string
		require.NoError(t, s.Get(ctx, "queue", &q))
		require.NoError(t, s.Get(ctx, "ready", &r))
		assert.Equal(t, "a", q["A"])
		assert.Empty(t, r)
	})
}

func TestApplyJoin(t *testing.T) {
	eachDriver(t, func(t *testing.T, s *KV) {
		ctx := context.Background()
		_, err := s.ApplyJoin(ctx, "job", "0", 1)
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.Set(ctx, "job", fanIn{Results: map[string]any{}, Tasks: 2}))

		n, err := s.ApplyJoin(ctx, "job", "1", 4)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		// 重复回填只覆盖结果
		n, err = s.ApplyJoin(ctx, "job", "1", 9)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = s.ApplyJoin(ctx, "job", "0", 1)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		var job fanIn
		require.NoError(t, s.Get(ctx, "job", &job))
		assert.Equal(t, 0, job.Tasks)
		assert.Equal(t, map[string]any{"0": float64(1), "1": float64(9)}, job.Results)

		// 多余的子任务不会让计数变负
		n, err = s.ApplyJoin(ctx, "job", "7", nil)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}

func TestApplyJoinConcurrent(t *testing.T) {
	eachDriver(t, func(t *testing.T, s *KV) {
		ctx := context.Background()
		const total = 16
		require.NoError(t, s.Set(ctx, "job", fanIn{Results: map[string]any{}, Tasks: total}))

		var wg sync.WaitGroup
		zeros := make(chan struct{}, total)
		for i := 0; i < total; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				n, err := s.ApplyJoin(ctx, "job", string(rune('a'+i)), i)
				if err == nil && n == 0 {
					zeros <- struct{}{}
				}
			}(i)
		}
		wg.Wait()
		close(zeros)

		var job fanIn
		require.NoError(t, s.Get(ctx, "job", &job))
		assert.Equal(t, 0, job.Tasks)
		assert.Len(t, job.Results, total)
		// 只有最后一个子任务看到 0
		assert.Len(t, zeros, 1)
	})
}

func TestKVPrefix(t *testing.T) {
	d := NewMemoryDriver()
	s := NewKV(d, "p:", 0)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "v"))

	raw, err := d.Get(ctx, "p:k")
	require.NoError(t, err)
	assert.Equal(t, `"v"`, string(raw))

	_, err = d.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMergeJoinRejectsGarbage(t *testing.T) {
	_, _, err := mergeJoin([]byte("not json"), "0", []byte("1"))
	assert.ErrorIs(t, err, ErrNotJoinRecord)

	_, _, err = mergeJoin([]byte(`{"C":{"name":"C","status":true}}`), "0", []byte("1"))
	assert.ErrorIs(t, err, ErrNotJoinRecord)

	_, _, err = mergeJoin([]byte(`[{"pid":1}]`), "0", []byte("1"))
	assert.ErrorIs(t, err, ErrNotJoinRecord)
}

func TestApplyJoinLeavesOtherRecordsAlone(t *testing.T) {
	eachDriver(t, func(t *testing.T, s *KV) {
		ctx := context.Background()
		queue := map[string]map[string]any{"C": {"name": "C", "status": true, "action": "log"}}
		require.NoError(t, s.Set(ctx, "worker_cron_queue", queue))

		_, err := s.ApplyJoin(ctx, "worker_cron_queue", "x", 4)
		assert.ErrorIs(t, err, ErrNotJoinRecord)

		var got map[string]map[string]any
		require.NoError(t, s.Get(ctx, "worker_cron_queue", &got))
		assert.Equal(t, queue["C"]["action"], got["C"]["action"])
		assert.NotContains(t, got, "results")
	})
}

func TestApplyJoinKeepsResultBytes(t *testing.T) {
	eachDriver(t, func(t *testing.T, s *KV) {
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "job", fanIn{Results: map[string]any{}, Tasks: 3}))

		_, err := s.ApplyJoin(ctx, "job", "big", int64(1234567890123456789))
		require.NoError(t, err)
		_, err = s.ApplyJoin(ctx, "job", "empty", []int{})
		require.NoError(t, err)
		_, err = s.ApplyJoin(ctx, "job", "obj", map[string]any{})
		require.NoError(t, err)

		raw, err := s.driver.Get(ctx, s.key("job"))
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"big":1234567890123456789`)
		assert.Contains(t, string(raw), `"empty":[]`)
		assert.Contains(t, string(raw), `"obj":{}`)
	})
}
