//go:build !linux

package engine

// SetProcessTitle 非 Linux 平台只记录标题
func SetProcessTitle(string) error { return nil }
