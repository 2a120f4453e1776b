//go:build !unix

package sampler

import "os/exec"

// killProcessGroup 在非 unix 平台只依赖 CommandContext 的默认行为与 WaitDelay。
func killProcessGroup(cmd *exec.Cmd) {}
