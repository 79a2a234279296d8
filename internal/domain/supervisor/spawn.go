package supervisor

import (
	"errors"
	"io"
	"os/exec"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

// Process is a started child
type Process interface {
	PID() int
	Signal(sig syscall.Signal) error
	// Wait blocks until the process is gone. It is called exactly once.
	Wait() Termination
	Alive() bool
}

// Spawner starts the executable of a definition
type Spawner interface {
	Spawn(def *types.AppDefinition) (Process, error)
}

// ExecSpawner starts children with os/exec, each in a new session
type ExecSpawner struct {
	Env    []string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// Spawn starts def's executable. Exec failures are reported synchronously by
// the runtime and surface as an error here.
func (s *ExecSpawner) Spawn(def *types.AppDefinition) (Process, error) {
	argv := def.Argv()
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Env = s.Env
	cmd.Dir = s.Dir
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	exited atomic.Bool
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Signal(sig syscall.Signal) error {
	if p.exited.Load() {
		return unix.ESRCH
	}
	return unix.Kill(p.PID(), sig)
}

func (p *execProcess) Wait() Termination {
	err := p.cmd.Wait()
	p.exited.Store(true)

	state := p.cmd.ProcessState
	if state == nil {
		return Termination{Kind: Exited, Code: -1}
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok {
		return Classify(ws)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Termination{Kind: Exited, Code: exitErr.ExitCode()}
	}
	return Termination{Kind: Exited, Code: state.ExitCode()}
}

// Alive probes with signal 0 unless the watcher already reaped the child
func (p *execProcess) Alive() bool {
	if p.exited.Load() {
		return false
	}
	return unix.Kill(p.PID(), 0) == nil
}
