// Package worker 子进程里的运行体: custom worker 执行单个长驻 action,
// cron worker 运行 crontab 调度器。配置由 master 通过 stdin 以 JSON 传入。
package worker

import (
	"encoding/json"
	"fmt"
	"io"
)

func decodePayload(in io.Reader, dst any) error {
	if in == nil {
		return fmt.Errorf("no payload reader")
	}
	if err := json.NewDecoder(in).Decode(dst); err != nil {
		return fmt.Errorf("decode worker payload: %w", err)
	}
	return nil
}
