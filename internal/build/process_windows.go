//go:build windows

package build

import (
	"os"
	"os/exec"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// processTree is a job object that holds the compiler and its children.
// Without a job only the compiler itself can be killed.
type processTree struct {
	mu  sync.Mutex
	job windows.Handle
}

func prepareTree(cmd *exec.Cmd) *processTree {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP,
	}
	job, err := newKillOnCloseJob()
	if err != nil {
		return &processTree{}
	}
	return &processTree{job: job}
}

func (t *processTree) attach(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job == 0 {
		return
	}

	handle, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(pid))
	if err == nil {
		err = windows.AssignProcessToJobObject(t.job, handle)
		windows.CloseHandle(handle)
	}
	if err != nil {
		windows.CloseHandle(t.job)
		t.job = 0
	}
}

// terminate kills the job at once; Windows has no SIGTERM equivalent for
// console compilers.
func (t *processTree) terminate(proc *os.Process) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job != 0 {
		_ = windows.TerminateJobObject(t.job, 1)
		return
	}
	_ = proc.Kill()
}

func (t *processTree) kill(proc *os.Process) {
	_ = proc.Kill()
}

func (t *processTree) release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job != 0 {
		windows.CloseHandle(t.job)
		t.job = 0
	}
}

func newKillOnCloseJob() (windows.Handle, error) {
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return 0, err
	}

	var limits windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION
	limits.BasicLimitInformation.LimitFlags = windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE
	if _, err := windows.SetInformationJobObject(
		job,
		windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&limits)),
		uint32(unsafe.Sizeof(limits)),
	); err != nil {
		windows.CloseHandle(job)
		return 0, err
	}
	return job, nil
}
