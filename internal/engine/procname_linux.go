//go:build linux

package engine

import (
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// 内核 comm 最长 15 字节
const commMaxLen = 15

// SetProcessTitle 修改进程名 (ps -o comm / top 可见)。prctl 只作用于调用线程,
// 当前线程不是主线程时改写主线程的 /proc/self/task/<pid>/comm
func SetProcessTitle(title string) error {
	name := title
	if len(name) > commMaxLen {
		name = name[:commMaxLen]
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if unix.Gettid() == unix.Getpid() {
		p, err := unix.BytePtrFromString(name)
		if err != nil {
			return err
		}
		if err := unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(p)), 0, 0, 0); err != nil {
			return fmt.Errorf("prctl PR_SET_NAME: %w", err)
		}
		return nil
	}
	path := fmt.Sprintf("/proc/self/task/%d/comm", unix.Getpid())
	if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
