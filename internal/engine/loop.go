package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sandy1219/ypf/application/components/logging"
)

// Loop 单 goroutine 顺序执行投递进来的函数; 定时器回调同样投递到 loop,
// 因此同一个 loop 上的回调不会并发
type Loop struct {
	id int

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool

	done chan struct{}
}

func NewLoop(id int) *Loop {
	l := &Loop{id: id, done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

func (l *Loop) ID() int { return l.id }

// Post 入队, 不阻塞; 队列无上限
func (l *Loop) Post(fn func()) error {
	if fn == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLoopClosed
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
	return nil
}

// Call 投递 fn 并等待其执行完; 不能在本 loop 内调用
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// 关闭前已入队的任务仍会执行完
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopClosed
		}
	}
}

// After d 之后把 fn 投递到 loop
func (l *Loop) After(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() {
		if err := l.Post(fn); err != nil {
			logging.Debug(context.Background(), "timer fired after loop closed", zap.Int("loop", l.id))
		}
	})
}

// Tick 周期性投递 fn; 上一次还没执行时跳过本次, 不堆积
func (l *Loop) Tick(period time.Duration, fn func()) (stop func()) {
	ticker := time.NewTicker(period)
	quit := make(chan struct{})
	var pending atomic.Bool

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-l.done:
				return
			case <-ticker.C:
				if !pending.CompareAndSwap(false, true) {
					continue
				}
				if err := l.Post(func() {
					pending.Store(false)
					fn()
				}); err != nil {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(quit) }) }
}

// Close 不再接收新任务; 已入队的任务执行完后 loop 退出
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.cond.Signal()
	l.mu.Unlock()
}

// Done loop goroutine 退出后关闭
func (l *Loop) Done() <-chan struct{} { return l.done }

// Wait 等待 loop 退出
func (l *Loop) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait loop %d: %w", l.id, ctx.Err())
	}
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 && l.closed {
			l.mu.Unlock()
			return
		}
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range batch {
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error(context.Background(), "panic in event loop",
				zap.Int("loop", l.id),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()
	fn()
}
