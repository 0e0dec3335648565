//go:build linux || darwin

package engine

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// 子进程单独成组, 终端的 Ctrl-C 不会直接打到子进程
func childProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func killProcess(pid int) error {
	return unix.Kill(pid, unix.SIGKILL)
}
