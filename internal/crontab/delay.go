package crontab

import (
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// 严格 5 段: 分 时 日 月 周, 不支持 @every 之类的描述符
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Delay 距下次执行的整秒数。text 是合法 cron 表达式时按下一个触发时刻计算,
// 否则按整数秒解析; 都不是时返回 0
func Delay(text string, now time.Time) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	if sched, err := parser.Parse(text); err == nil {
		nowSec := now.Truncate(time.Second)
		return int(sched.Next(nowSec).Sub(nowSec) / time.Second)
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0
	}
	return n
}
