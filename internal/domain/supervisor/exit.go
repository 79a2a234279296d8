package supervisor

import (
	"syscall"

	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

// TerminationKind is the outcome class of a dead process
type TerminationKind int

const (
	Exited TerminationKind = iota
	Crashed
)

func (k TerminationKind) String() string {
	if k == Crashed {
		return "crashed"
	}
	return "exited"
}

// Termination describes how a process ended
type Termination struct {
	Kind     TerminationKind
	Code     int
	Signal   syscall.Signal
	CoreDump bool
}

// gracefulSignals are requests to terminate, not faults
var gracefulSignals = map[syscall.Signal]bool{
	syscall.SIGTERM: true,
	syscall.SIGINT:  true,
	syscall.SIGHUP:  true,
	syscall.SIGPIPE: true,
}

// Classify maps a raw wait status to a Termination
func Classify(ws syscall.WaitStatus) Termination {
	switch {
	case ws.Exited():
		return Termination{Kind: Exited, Code: ws.ExitStatus()}
	case ws.Signaled():
		return ClassifySignal(ws.Signal(), ws.CoreDump())
	default:
		return Termination{Kind: Exited, Code: -1}
	}
}

// ClassifySignal classifies death by sig
func ClassifySignal(sig syscall.Signal, core bool) Termination {
	t := Termination{Code: -1, Signal: sig, CoreDump: core}
	if core || !gracefulSignals[sig] {
		t.Kind = Crashed
	}
	return t
}

// Event converts the termination of inst to a loop event
func (t Termination) Event(inst *Instance) types.Event {
	ev := types.Event{Kind: types.EventProcessExited, PID: inst.PID, Gen: inst.Gen, Status: t.Code}
	if t.Signal != 0 {
		ev.Signal = t.Signal.String()
	}
	if t.Kind == Crashed {
		ev.Kind = types.EventProcessCrashed
	}
	return ev
}
