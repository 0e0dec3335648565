// Package dispatch 把 task 消息交给 task worker 池执行, 并在发起方 loop 上汇总结果:
// 回填 fan-in 记录、调用回调。
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sandy1219/ypf/application/components/logging"
	"github.com/sandy1219/ypf/application/components/prometheus"
	appconsts "github.com/sandy1219/ypf/application/consts"
	"github.com/sandy1219/ypf/application/core"
	"github.com/sandy1219/ypf/internal/consts"
	"github.com/sandy1219/ypf/internal/engine"
	"github.com/sandy1219/ypf/internal/handler"
	"github.com/sandy1219/ypf/internal/model"
	"github.com/sandy1219/ypf/internal/store"
)

var (
	ErrNotBound = errors.New("dispatcher not bound to an engine")
	// ErrReservedKey thread.task 指向 supervisor/crontab 自用的 key
	ErrReservedKey = errors.New("reserved store key")
)

func reservedKey(key string) bool {
	switch key {
	case consts.KEY_WORKER_PID, consts.KEY_WORKER_CRON_QUEUE, consts.KEY_WORKER_CRON_READY:
		return true
	}
	return strings.HasPrefix(key, consts.KEY_HEARTBEAT_PREFIX)
}

type Dispatcher struct {
	*core.BaseComponent

	Handlers *handler.Registry     `infra:"dep:handler_registry"`
	Store    store.Store           `infra:"dep:state_store"`
	Metrics  *prometheus.Component `infra:"dep:prometheus?"`

	engine engine.Engine
	tracer trace.Tracer

	tasksTotal   *prom.CounterVec
	taskDuration *prom.HistogramVec
	joinDropped  *prom.CounterVec
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		BaseComponent: core.NewBaseComponent(consts.COMP_DISPATCHER, appconsts.COMPONENT_LOGGING),
		tracer:        otel.Tracer("ypf/dispatch"),
	}
}

// BindEngine engine 反过来依赖 dispatcher (经由 lifecycle router), 不能走注入
func (d *Dispatcher) BindEngine(e engine.Engine) {
	d.engine = e
}

func (d *Dispatcher) Start(ctx context.Context) error {
	if err := d.BaseComponent.Start(ctx); err != nil {
		return err
	}
	if d.Handlers == nil || d.Store == nil {
		return fmt.Errorf("dispatcher requires handler registry and state store")
	}
	if d.Metrics != nil {
		d.tasksTotal = d.Metrics.NewCounter(consts.METRIC_TASKS, "Tasks executed by task workers.", []string{"func", "status"})
		d.taskDuration = d.Metrics.NewHistogram(consts.METRIC_TASK_DURATION, "Task handler duration.", []string{"func"}, nil)
		d.joinDropped = d.Metrics.NewCounter(consts.METRIC_JOIN_DROPPED, "Completions whose fan-in record no longer exists.", nil)
	}
	return nil
}

// Submit 校验后非阻塞投递; 队列满时返回 engine.ErrPoolSaturated
func (d *Dispatcher) Submit(ctx context.Context, fn string, args map[string]any, callback string, thread *model.Thread) (int64, error) {
	if d.engine == nil {
		return 0, ErrNotBound
	}
	msg := model.TaskMessage{Func: fn, Args: args, Callback: callback, Thread: thread}
	if err := d.validate(msg); err != nil {
		return 0, err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("encode task message: %w", err)
	}
	id, err := d.engine.Task(ctx, data)
	if err != nil {
		return 0, fmt.Errorf("submit %s: %w", fn, err)
	}
	return id, nil
}

func (d *Dispatcher) validate(msg model.TaskMessage) error {
	if _, err := d.Handlers.Resolve(msg.Func); err != nil {
		return err
	}
	if msg.Callback != "" {
		if _, err := d.Handlers.Resolve(msg.Callback); err != nil {
			return fmt.Errorf("callback: %w", err)
		}
	}
	if msg.Thread != nil && (msg.Thread.Task == "" || msg.Thread.ID == "") {
		return fmt.Errorf("thread requires both task key and subtask id")
	}
	if msg.Thread != nil && reservedKey(msg.Thread.Task) {
		return fmt.Errorf("thread task %q: %w", msg.Thread.Task, ErrReservedKey)
	}
	return nil
}

// Forward 处理 PipeMessage: 消息体即 TaskMessage, 转交 task 池
func (d *Dispatcher) Forward(ctx context.Context, data []byte) (int64, error) {
	var msg model.TaskMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return 0, fmt.Errorf("decode pipe message: %w", err)
	}
	return d.Submit(ctx, msg.Func, msg.Args, msg.Callback, msg.Thread)
}

// run handler panic 转成错误, 保证完成消息总能发回发起方
func (d *Dispatcher) run(ctx context.Context, msg model.TaskMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return d.Handlers.Dispatch(ctx, msg.Func, msg.Args)
}

// Execute 在 task worker 上运行; handler 出错或 panic 时结果为空, Err 记录原因, 汇总照常进行
func (d *Dispatcher) Execute(ctx context.Context, taskID int64, data []byte) []byte {
	var msg model.TaskMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logging.Error(ctx, "decode task message failed", zap.Int64("task_id", taskID), zap.Error(err))
		return encodeCompletion(ctx, model.Completion{TaskID: taskID, Err: err.Error()})
	}

	ctx, span := d.tracer.Start(ctx, "task "+msg.Func, trace.WithAttributes(
		attribute.String("ypf.task.func", msg.Func),
		attribute.Int64("ypf.task.id", taskID),
	))
	defer span.End()

	begin := time.Now()
	result, err := d.run(ctx, msg)
	elapsed := time.Since(begin)

	comp := model.Completion{TaskID: taskID, Callback: msg.Callback, Thread: msg.Thread}
	status := "ok"
	if err != nil {
		status = "error"
		comp.Err = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logging.Error(ctx, "task handler failed",
			zap.String("func", msg.Func),
			zap.Int64("task_id", taskID),
			zap.Error(err),
		)
	} else {
		comp.Result = result
	}
	if d.tasksTotal != nil {
		d.tasksTotal.WithLabelValues(msg.Func, status).Inc()
		d.taskDuration.WithLabelValues(msg.Func).Observe(elapsed.Seconds())
	}
	return encodeCompletion(ctx, comp)
}

func encodeCompletion(ctx context.Context, comp model.Completion) []byte {
	out, err := json.Marshal(comp)
	if err == nil {
		return out
	}
	logging.Error(ctx, "encode task result failed", zap.Int64("task_id", comp.TaskID), zap.Error(err))
	comp.Result = nil
	comp.Err = fmt.Sprintf("encode result: %v", err)
	out, _ = json.Marshal(comp)
	return out
}

// Complete 在发起方 loop 上处理完成消息: 先回填 fan-in 记录, 再调用回调
func (d *Dispatcher) Complete(ctx context.Context, taskID int64, data []byte) {
	var comp model.Completion
	if err := json.Unmarshal(data, &comp); err != nil {
		logging.Error(ctx, "decode completion failed", zap.Int64("task_id", taskID), zap.Error(err))
		return
	}

	if th := comp.Thread; th != nil {
		remaining, err := d.Store.ApplyJoin(ctx, th.Task, th.ID, comp.Result)
		switch {
		case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrNotJoinRecord):
			logging.Warn(ctx, "fan-in record missing, result dropped",
				zap.String("job", th.Task),
				zap.String("subtask", th.ID),
				zap.Int64("task_id", taskID),
				zap.Error(err),
			)
			if d.joinDropped != nil {
				d.joinDropped.WithLabelValues().Inc()
			}
		case err != nil:
			logging.Error(ctx, "apply fan-in result failed", zap.String("job", th.Task), zap.Error(err))
		default:
			logging.Debug(ctx, "fan-in result applied",
				zap.String("job", th.Task),
				zap.String("subtask", th.ID),
				zap.Int("remaining", remaining),
			)
		}
	}

	if comp.Callback == "" {
		return
	}
	args := map[string]any{
		consts.ARG_TASK_ID: taskID,
		consts.ARG_RESULT:  comp.Result,
	}
	if _, err := d.Handlers.Dispatch(ctx, comp.Callback, args); err != nil {
		logging.Error(ctx, "task callback failed",
			zap.String("callback", comp.Callback),
			zap.Int64("task_id", taskID),
			zap.Error(err),
		)
	}
}

// NewJob 创建 fan-in 记录 {results:{}, tasks:n}, 返回其 key
func (d *Dispatcher) NewJob(ctx context.Context, tasks int) (string, error) {
	if tasks < 1 {
		return "", fmt.Errorf("fan-in job needs at least one subtask, got %d", tasks)
	}
	key := consts.KEY_FANIN_PREFIX + uuid.NewString()
	job := model.FanInJob{Results: map[string]any{}, Tasks: tasks}
	if err := d.Store.Set(ctx, key, job); err != nil {
		return "", fmt.Errorf("create fan-in job: %w", err)
	}
	return key, nil
}

// Job 读取 fan-in 记录; 非 fan-in 形状的值返回 store.ErrNotJoinRecord
func (d *Dispatcher) Job(ctx context.Context, key string) (model.FanInJob, error) {
	if reservedKey(key) {
		return model.FanInJob{}, fmt.Errorf("job %q: %w", key, store.ErrNotJoinRecord)
	}
	var rec struct {
		Results map[string]any `json:"results"`
		Tasks   *int           `json:"tasks"`
	}
	if err := d.Store.Get(ctx, key, &rec); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return model.FanInJob{}, fmt.Errorf("job %q: %w: %v", key, store.ErrNotJoinRecord, err)
		}
		return model.FanInJob{}, err
	}
	if rec.Tasks == nil {
		return model.FanInJob{}, fmt.Errorf("job %q: %w", key, store.ErrNotJoinRecord)
	}
	return model.FanInJob{Results: rec.Results, Tasks: *rec.Tasks}, nil
}

// FanOut 为每组参数提交一个子任务, 子任务编号为 "0".."n-1"。
// 中途投递失败时返回已提交的 task id 与错误, 记录不会自动清理
func (d *Dispatcher) FanOut(ctx context.Context, fn string, argsList []map[string]any, callback string) (string, []int64, error) {
	if len(argsList) == 0 {
		return "", nil, fmt.Errorf("fan-out needs at least one argument set")
	}
	if err := d.validate(model.TaskMessage{Func: fn, Callback: callback}); err != nil {
		return "", nil, err
	}
	key, err := d.NewJob(ctx, len(argsList))
	if err != nil {
		return "", nil, err
	}
	ids := make([]int64, 0, len(argsList))
	for i, args := range argsList {
		id, err := d.Submit(ctx, fn, args, callback, &model.Thread{Task: key, ID: strconv.Itoa(i)})
		if err != nil {
			return key, ids, fmt.Errorf("subtask %d of %s: %w", i, key, err)
		}
		ids = append(ids, id)
	}
	return key, ids, nil
}
