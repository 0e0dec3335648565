package model

// Thread 标识一个 fan-in 子任务: Task 为汇总记录的 key, ID 为子任务编号
type Thread struct {
	Task string `json:"task"`
	ID   string `json:"id"`
}

// TaskMessage 投递给 task worker 的消息, 只包含可序列化数据
type TaskMessage struct {
	Func     string         `json:"func"`
	Args     map[string]any `json:"args,omitempty"`
	Callback string         `json:"callback,omitempty"`
	Thread   *Thread        `json:"thread,omitempty"`
}

// Completion task worker 执行完毕后送回发起方 loop 的结果
type Completion struct {
	TaskID   int64   `json:"task_id"`
	Callback string  `json:"callback,omitempty"`
	Result   any     `json:"result"`
	Thread   *Thread `json:"thread,omitempty"`
	Err      string  `json:"err,omitempty"`
}

// FanInJob 扇出任务的汇总记录; Tasks 为剩余未完成的子任务数
type FanInJob struct {
	Results map[string]any `json:"results"`
	Tasks   int            `json:"tasks"`
}

// Done 所有子任务都已回填
func (j FanInJob) Done() bool {
	return j.Tasks <= 0
}
