package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"github.com/sandy1219/ypf/application/components/logging"
)

// SpawnSpec 拉起子进程所需的信息; Payload 通过子进程 stdin 一次性写入
type SpawnSpec struct {
	Name    string
	Command string
	Payload []byte
}

// Spawner 子进程的创建与终止
type Spawner interface {
	Spawn(ctx context.Context, spec SpawnSpec) (int, error)
	Kill(pid int) error
}

// ExecSpawner 以子命令重新执行当前二进制
type ExecSpawner struct {
	path     string
	baseArgs []string

	mu       sync.Mutex
	children map[int]string
}

var _ Spawner = (*ExecSpawner)(nil)

// NewExecSpawner baseArgs 追加在子命令之后, 一般是 -config/-env
func NewExecSpawner(baseArgs ...string) (*ExecSpawner, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	return &ExecSpawner{path: exe, baseArgs: baseArgs, children: map[int]string{}}, nil
}

func (s *ExecSpawner) Spawn(ctx context.Context, spec SpawnSpec) (int, error) {
	args := append([]string{spec.Command}, s.baseArgs...)
	// 子进程生命周期与 ctx 无关, 由 Kill 结束
	cmd := exec.Command(s.path, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = childProcAttr()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return 0, fmt.Errorf("stdin pipe for %s: %w", spec.Name, err)
	}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", spec.Name, err)
	}
	pid := cmd.Process.Pid

	_, werr := stdin.Write(spec.Payload)
	cerr := stdin.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return 0, fmt.Errorf("send payload to %s: %w", spec.Name, err)
	}
	if pid <= 0 {
		_ = cmd.Wait()
		return 0, fmt.Errorf("spawn %s: invalid pid %d", spec.Name, pid)
	}

	s.mu.Lock()
	s.children[pid] = spec.Name
	s.mu.Unlock()

	// 每个子进程一个 goroutine 负责回收
	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		delete(s.children, pid)
		s.mu.Unlock()
		fields := []zap.Field{zap.String("worker", spec.Name), zap.Int("pid", pid)}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		logging.Info(context.WithoutCancel(ctx), "child process exited", fields...)
	}()
	return pid, nil
}

// Kill 发送 SIGKILL; pid <= 0 直接拒绝, 避免误杀进程组
func (s *ExecSpawner) Kill(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("refuse to kill pid %d", pid)
	}
	return killProcess(pid)
}

// Running 仍在运行的子进程数
func (s *ExecSpawner) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.children)
}
