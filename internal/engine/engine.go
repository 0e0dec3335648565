// Package engine 进程内的事件驱动宿主: 若干 worker 事件循环、一个 task worker 池,
// 以及把生命周期事件投递给 EventHandler 的 Server。
package engine

import (
	"context"
	"errors"
)

// 非 worker 的逻辑槽位, 用于 SetProcessName / Titles
const (
	MasterSlot  = -1
	ManagerSlot = -2
)

var (
	ErrLoopClosed    = errors.New("event loop closed")
	ErrPoolSaturated = errors.New("task pool saturated")
	ErrPoolClosed    = errors.New("task pool closed")
)

// Engine 事件回调里可见的宿主能力
type Engine interface {
	MasterPID() int
	// WorkerNum 普通 worker 数量; id >= WorkerNum 的是 task worker
	WorkerNum() int
	TaskWorkerNum() int
	// Task 非阻塞投递一条 task 消息, 完成后 OnFinish 在发起方所在的 loop 上执行
	Task(ctx context.Context, data []byte) (int64, error)
	// SendMessage 向普通 worker dst 投递 PipeMessage
	SendMessage(ctx context.Context, dst int, data []byte) error
	Loop(id int) *Loop
	// NextWorker 轮询选出处理下一个请求的 worker
	NextWorker() int
	SetProcessName(slot int, title string)
	Titles() map[int]string
}

// EventHandler 生命周期事件; Request 事件由 http 中间件 Request 负责
type EventHandler interface {
	OnStart(ctx context.Context, e Engine)
	OnManagerStart(ctx context.Context, e Engine)
	OnManagerStop(ctx context.Context, e Engine)
	OnWorkerStart(ctx context.Context, e Engine, workerID int)
	OnWorkerStop(ctx context.Context, e Engine, workerID int)
	OnPipeMessage(ctx context.Context, e Engine, fromWorker int, data []byte)
	// OnTask 在 task worker 上同步执行, 返回值交给 OnFinish
	OnTask(ctx context.Context, e Engine, taskID int64, fromWorker int, data []byte) []byte
	OnFinish(ctx context.Context, e Engine, taskID int64, data []byte)
	OnShutdown(ctx context.Context, e Engine)
}

// NopHandler 所有事件都不做处理
type NopHandler struct{}

func (NopHandler) OnStart(context.Context, Engine)                    {}
func (NopHandler) OnManagerStart(context.Context, Engine)             {}
func (NopHandler) OnManagerStop(context.Context, Engine)              {}
func (NopHandler) OnWorkerStart(context.Context, Engine, int)         {}
func (NopHandler) OnWorkerStop(context.Context, Engine, int)          {}
func (NopHandler) OnPipeMessage(context.Context, Engine, int, []byte) {}
func (NopHandler) OnFinish(context.Context, Engine, int64, []byte)    {}
func (NopHandler) OnShutdown(context.Context, Engine)                 {}
func (NopHandler) OnTask(_ context.Context, _ Engine, _ int64, _ int, data []byte) []byte {
	return data
}

var _ EventHandler = NopHandler{}
