package engine

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sandy1219/ypf/application/components/logging"
)

// ExecFunc 在 task worker 上执行一条消息, fromWorker 为发起方 worker id
type ExecFunc func(ctx context.Context, taskID int64, fromWorker int, data []byte) []byte

// FinishFunc 在发起方 loop 上处理执行结果
type FinishFunc func(ctx context.Context, taskID int64, data []byte)

type taskJob struct {
	id     int64
	data   []byte
	origin *Loop
	ctx    context.Context
}

// TaskPool 固定数量的 task worker 从有界队列取任务; 投递从不阻塞
type TaskPool struct {
	baseID   int
	size     int
	queue    chan *taskJob
	exec     ExecFunc
	finish   FinishFunc
	fallback *Loop

	nextID atomic.Int64

	mu     sync.RWMutex
	closed bool
	quit   chan struct{}
	wg     sync.WaitGroup
}

// NewTaskPool worker id 从 baseID 开始编号; 发起方不在任何 loop 上时结果投递到 fallback
func NewTaskPool(baseID, size, queueSize int, exec ExecFunc, finish FinishFunc, fallback *Loop) *TaskPool {
	if size <= 0 {
		size = 1
	}
	if queueSize <= 0 {
		queueSize = size
	}
	return &TaskPool{
		baseID:   baseID,
		size:     size,
		queue:    make(chan *taskJob, queueSize),
		exec:     exec,
		finish:   finish,
		fallback: fallback,
		quit:     make(chan struct{}),
	}
}

// Start 拉起 worker goroutine; ctx 只用于日志
func (p *TaskPool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(p.baseID + i)
	}
	logging.Info(ctx, "task pool started",
		zap.Int("task_workers", p.size),
		zap.Int("queue_size", cap(p.queue)),
	)
}

// WorkerIDs task worker 的 id 列表
func (p *TaskPool) WorkerIDs() []int {
	ids := make([]int, p.size)
	for i := range ids {
		ids[i] = p.baseID + i
	}
	return ids
}

// Submit 队列满时立即返回 ErrPoolSaturated
func (p *TaskPool) Submit(ctx context.Context, data []byte) (int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return 0, ErrPoolClosed
	}
	job := &taskJob{
		id:     p.nextID.Add(1),
		data:   data,
		origin: LoopFromContext(ctx),
		ctx:    context.WithoutCancel(ctx),
	}
	select {
	case p.queue <- job:
		return job.id, nil
	default:
		return 0, ErrPoolSaturated
	}
}

// Pending 队列中尚未被取走的任务数
func (p *TaskPool) Pending() int {
	return len(p.queue)
}

// Close 停止 worker; 队列里未执行的任务直接丢弃
func (p *TaskPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.quit)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *TaskPool) worker(workerID int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case job := <-p.queue:
			p.run(workerID, job)
		}
	}
}

func (p *TaskPool) run(workerID int, job *taskJob) {
	from := MasterSlot
	if job.origin != nil {
		from = job.origin.ID()
	}
	result := p.safeExec(job, workerID, from)

	target := job.origin
	if target == nil {
		target = p.fallback
	}
	if target == nil || p.finish == nil {
		return
	}
	fctx := WithLoop(job.ctx, target)
	if err := target.Post(func() { p.finish(fctx, job.id, result) }); err != nil {
		logging.Warn(job.ctx, "drop task result, origin loop closed",
			zap.Int64("task_id", job.id),
			zap.Int("loop", target.ID()),
		)
	}
}

func (p *TaskPool) safeExec(job *taskJob, workerID, from int) (result []byte) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error(job.ctx, "panic in task worker",
				zap.Int("worker_id", workerID),
				zap.Int64("task_id", job.id),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			result = nil
		}
	}()
	return p.exec(job.ctx, job.id, from, job.data)
}
