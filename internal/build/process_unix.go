//go:build !windows

package build

import (
	"os"
	"os/exec"
	"syscall"
)

// processTree is the compiler's process group.
type processTree struct {
	pgid int
}

func prepareTree(cmd *exec.Cmd) *processTree {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return &processTree{}
}

func (t *processTree) attach(pid int) {
	if pgid, err := syscall.Getpgid(pid); err == nil {
		t.pgid = pgid
	}
}

// terminate sends SIGTERM to the whole group.
func (t *processTree) terminate(proc *os.Process) {
	t.signal(proc, syscall.SIGTERM)
}

func (t *processTree) kill(proc *os.Process) {
	t.signal(proc, syscall.SIGKILL)
}

func (t *processTree) signal(proc *os.Process, sig syscall.Signal) {
	if t.pgid > 0 {
		_ = syscall.Kill(-t.pgid, sig)
		return
	}
	_ = proc.Signal(sig)
}

func (t *processTree) release() {}
