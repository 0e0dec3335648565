package handler

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Float 数值参数; JSON 解出 float64, YAML 解出 int, 字符串也尝试解析
func (a Args) Float(key string) (float64, error) {
	v, ok := a[key]
	if !ok {
		return 0, fmt.Errorf("arg %s missing", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("arg %s: %w", key, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("arg %s: unexpected type %T", key, v)
	}
}

func (a Args) Str(key string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Seconds 以秒为单位的时长参数, 缺失或非法时取 def
func (a Args) Seconds(key string, def time.Duration) time.Duration {
	f, err := a.Float(key)
	if err != nil || f <= 0 {
		return def
	}
	return time.Duration(f * float64(time.Second))
}
