package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type finished struct {
	id   int64
	data []byte
	loop *Loop
}

func TestTaskPoolResultReturnsToOriginLoop(t *testing.T) {
	origin := NewLoop(1)
	fallback := NewLoop(0)
	defer origin.Close()
	defer fallback.Close()

	done := make(chan finished, 1)
	pool := NewTaskPool(2, 2, 4,
		func(_ context.Context, _ int64, from int, data []byte) []byte {
			return append([]byte{byte('0' + from)}, data...)
		},
		func(ctx context.Context, id int64, data []byte) {
			done <- finished{id: id, data: data, loop: LoopFromContext(ctx)}
		},
		fallback,
	)
	pool.Start(context.Background())
	defer pool.Close()

	id, err := pool.Submit(WithLoop(context.Background(), origin), []byte("x"))
	require.NoError(t, err)

	select {
	case f := <-done:
		assert.Equal(t, id, f.id)
		assert.Equal(t, "1x", string(f.data))
		assert.Same(t, origin, f.loop)
	case <-time.After(time.Second):
		t.Fatal("no completion")
	}
	assert.Equal(t, []int{2, 3}, pool.WorkerIDs())
}

func TestTaskPoolFallbackLoop(t *testing.T) {
	fallback := NewLoop(0)
	defer fallback.Close()

	done := make(chan *Loop, 1)
	pool := NewTaskPool(1, 1, 1,
		func(_ context.Context, _ int64, _ int, data []byte) []byte { return data },
		func(ctx context.Context, _ int64, _ []byte) { done <- LoopFromContext(ctx) },
		fallback,
	)
	pool.Start(context.Background())
	defer pool.Close()

	_, err := pool.Submit(context.Background(), nil)
	require.NoError(t, err)
	select {
	case l := <-done:
		assert.Same(t, fallback, l)
	case <-time.After(time.Second):
		t.Fatal("no completion")
	}
}

func TestTaskPoolSaturated(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	pool := NewTaskPool(1, 1, 1,
		func(context.Context, int64, int, []byte) []byte {
			started <- struct{}{}
			<-block
			return nil
		},
		nil, nil,
	)
	pool.Start(context.Background())

	_, err := pool.Submit(context.Background(), nil)
	require.NoError(t, err)
	<-started // worker 已取走第一条

	_, err = pool.Submit(context.Background(), nil)
	require.NoError(t, err) // 占满队列

	begin := time.Now()
	_, err = pool.Submit(context.Background(), nil)
	assert.ErrorIs(t, err, ErrPoolSaturated)
	assert.Less(t, time.Since(begin), 100*time.Millisecond)

	close(block)
	pool.Close()
	_, err = pool.Submit(context.Background(), nil)
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestTaskPoolRecoversPanic(t *testing.T) {
	fallback := NewLoop(0)
	defer fallback.Close()
	done := make(chan []byte, 1)
	pool := NewTaskPool(1, 1, 2,
		func(context.Context, int64, int, []byte) []byte { panic("bad task") },
		func(_ context.Context, _ int64, data []byte) { done <- data },
		fallback,
	)
	pool.Start(context.Background())
	defer pool.Close()

	_, err := pool.Submit(context.Background(), []byte("x"))
	require.NoError(t, err)
	select {
	case data := <-done:
		assert.Nil(t, data)
	case <-time.After(time.Second):
		t.Fatal("no completion after panic")
	}
}
