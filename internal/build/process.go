package build

import (
	"io"
	"os/exec"
	"time"
)

// killGrace is how long a stopped compiler gets to exit before it is killed.
const killGrace = 5 * time.Second

// processHandle is a running compiler together with the OS handle that
// reaches every process it spawned.
type processHandle struct {
	cmd  *exec.Cmd
	tree *processTree
	done chan struct{}
	err  error
}

func startProcess(name string, args []string, dir string, env []string, stdout, stderr io.Writer) (*processHandle, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	tree := prepareTree(cmd)
	if err := cmd.Start(); err != nil {
		tree.release()
		return nil, err
	}
	tree.attach(cmd.Process.Pid)

	p := &processHandle{cmd: cmd, tree: tree, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		p.tree.release()
		close(p.done)
	}()
	return p, nil
}

// wait blocks until the process exits and returns its exit error.
func (p *processHandle) wait() error {
	<-p.done
	return p.err
}

func (p *processHandle) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// stopProcess asks the process tree to exit, kills it after killGrace and
// returns once the compiler has been reaped.
func stopProcess(p *processHandle) {
	if p == nil || p.exited() {
		return
	}
	p.tree.terminate(p.cmd.Process)

	select {
	case <-p.done:
	case <-time.After(killGrace):
		p.tree.kill(p.cmd.Process)
		<-p.done
	}
}
