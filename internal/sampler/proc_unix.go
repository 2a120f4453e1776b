//go:build unix

package sampler

import (
	"os/exec"
	"syscall"
)

// killProcessGroup 让 ffmpeg 在独立进程组中运行，超时时整组杀掉（包装脚本派生的子进程一并结束）。
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
