package crontab

import (
	"testing"
	"time"
)

func TestDelay(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 30, 400_000_000, time.UTC)
	cases := []struct {
		text string
		want int
	}{
		{"120", 120},
		{" 45 ", 45},
		{"0", 0},
		{"-5", -5},
		{"abc", 0},
		{"", 0},
		{"* * * * *", 30},       // 下一分钟整点
		{"*/5 * * * *", 270},    // 10:05:00
		{"0 11 * * *", 3570},    // 11:00:00
		{"@every 1m", 0},        // 不支持描述符
		{"* * * * * *", 0},      // 6 段不合法, 也不是整数
		{"0 0 1 1 *", 21131970}, // 次年 1 月 1 日
	}
	for _, c := range cases {
		if got := Delay(c.text, now); got != c.want {
			t.Errorf("Delay(%q) = %d, want %d", c.text, got, c.want)
		}
	}
}

func TestDelayIsWholeSeconds(t *testing.T) {
	// 亚秒部分被截掉, 结果与整秒时刻一致
	a := Delay("* * * * *", time.Date(2024, 5, 1, 10, 0, 59, 999_000_000, time.UTC))
	if a != 1 {
		t.Fatalf("expected 1, got %d", a)
	}
}
