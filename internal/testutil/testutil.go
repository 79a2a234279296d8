// Package testutil provides fakes and helpers shared by the shell's tests.
package testutil

import (
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ilixi/ilixi-sub001/internal/domain/supervisor"
	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

// FakeProcess is a child whose lifetime is driven by the test
type FakeProcess struct {
	pid          int
	Name         string
	exitOnSignal bool
	exitOnKill   bool

	mu      sync.Mutex
	signals []syscall.Signal
	exit    chan supervisor.Termination
	exited  atomic.Bool
}

// PID returns the fake pid
func (p *FakeProcess) PID() int { return p.pid }

// Signal records sig. With ExitOnSignal set on the spawner the process dies
// from it.
func (p *FakeProcess) Signal(sig syscall.Signal) error {
	if p.exited.Load() {
		return syscall.ESRCH
	}
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	p.mu.Unlock()
	if p.exitOnSignal || (p.exitOnKill && sig == syscall.SIGKILL) {
		p.finish(supervisor.ClassifySignal(sig, false))
	}
	return nil
}

// Wait blocks until Exit, Crash or a fatal Signal
func (p *FakeProcess) Wait() supervisor.Termination {
	return <-p.exit
}

// Alive reports whether the process has not finished
func (p *FakeProcess) Alive() bool { return !p.exited.Load() }

// Exit ends the process normally with code
func (p *FakeProcess) Exit(code int) {
	p.finish(supervisor.Termination{Kind: supervisor.Exited, Code: code})
}

// Crash ends the process by a fault signal with a core dump
func (p *FakeProcess) Crash(sig syscall.Signal) {
	p.finish(supervisor.ClassifySignal(sig, true))
}

// Signals returns the signals received so far
func (p *FakeProcess) Signals() []syscall.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]syscall.Signal(nil), p.signals...)
}

func (p *FakeProcess) finish(t supervisor.Termination) {
	if p.exited.Swap(true) {
		return
	}
	p.exit <- t
}

// FakeSpawner hands out FakeProcesses with increasing pids
type FakeSpawner struct {
	mu      sync.Mutex
	nextPID int
	procs   []*FakeProcess

	// Err, when set, fails every spawn
	Err error
	// ExitOnSignal makes spawned processes die from any signal they receive
	ExitOnSignal bool
	// ExitOnKill makes spawned processes die from SIGKILL only
	ExitOnKill bool
}

// NewFakeSpawner creates a spawner whose first pid is 1000
func NewFakeSpawner() *FakeSpawner {
	return &FakeSpawner{nextPID: 1000}
}

// Spawn implements supervisor.Spawner
func (s *FakeSpawner) Spawn(def *types.AppDefinition) (supervisor.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	p := &FakeProcess{
		pid:          s.nextPID,
		Name:         def.Name,
		exitOnSignal: s.ExitOnSignal,
		exitOnKill:   s.ExitOnKill,
		exit:         make(chan supervisor.Termination, 1),
	}
	s.nextPID++
	s.procs = append(s.procs, p)
	return p, nil
}

// ReusePID makes the next spawned process get pid
func (s *FakeSpawner) ReusePID(pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPID = pid
}

// Process returns the newest process with pid
func (s *FakeSpawner) Process(pid int) *FakeProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.procs) - 1; i >= 0; i-- {
		if s.procs[i].pid == pid {
			return s.procs[i]
		}
	}
	return nil
}

// Spawned returns every process started for name
func (s *FakeSpawner) Spawned(name string) []*FakeProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*FakeProcess
	for _, p := range s.procs {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

// Count returns the number of spawned processes
func (s *FakeSpawner) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

// EventCollector is a supervisor.EventSink and supervisor.ProcessSink
// backed by a buffered channel
type EventCollector struct {
	ch        chan types.Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewEventCollector creates a collector holding up to size events
func NewEventCollector(size int) *EventCollector {
	return &EventCollector{ch: make(chan types.Event, size), done: make(chan struct{})}
}

// Post queues ev unless the collector is closed or full
func (c *EventCollector) Post(ev types.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.ch <- ev:
		return true
	default:
		return false
	}
}

// Send queues ev, waiting for room until the collector is closed
func (c *EventCollector) Send(ev types.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.ch <- ev:
		return true
	case <-c.done:
		return false
	}
}

// Close makes every later Post and Send fail
func (c *EventCollector) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Len returns the number of queued events
func (c *EventCollector) Len() int {
	return len(c.ch)
}

// Next waits for the next event
func (c *EventCollector) Next(t *testing.T) types.Event {
	t.Helper()
	select {
	case ev := <-c.ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return types.Event{}
	}
}

// Recorder collects published notifications
type Recorder struct {
	mu   sync.Mutex
	seen []types.Notification
}

// Publish implements notify.Publisher
func (r *Recorder) Publish(n types.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
}

// OnNotification implements notify.Listener
func (r *Recorder) OnNotification(n types.Notification) {
	r.Publish(n)
}

// All returns every notification seen
func (r *Recorder) All() []types.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Notification(nil), r.seen...)
}

// OfKind returns the notifications of kind k
func (r *Recorder) OfKind(k types.NotificationKind) []types.Notification {
	var out []types.Notification
	for _, n := range r.All() {
		if n.Kind == k {
			out = append(out, n)
		}
	}
	return out
}

// Reset forgets everything seen so far
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = nil
}

// ManualClock is a clock advanced by the test
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock starts at a fixed instant
func NewManualClock() *ManualClock {
	return &ManualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockWindowSystem is a testify mock of types.WindowSystem
type MockWindowSystem struct {
	mock.Mock
}

func (m *MockWindowSystem) Configure(h types.WindowHandle, bounds types.Rect) { m.Called(h, bounds) }
func (m *MockWindowSystem) Focus(h types.WindowHandle)                        { m.Called(h) }
func (m *MockWindowSystem) SetOpacity(h types.WindowHandle, opacity float64)  { m.Called(h, opacity) }
func (m *MockWindowSystem) SetPosition(h types.WindowHandle, p types.Point)   { m.Called(h, p) }
func (m *MockWindowSystem) SetScale(h types.WindowHandle, scale float64)      { m.Called(h, scale) }
func (m *MockWindowSystem) SetVisible(h types.WindowHandle, visible bool)     { m.Called(h, visible) }
func (m *MockWindowSystem) SendKey(h types.WindowHandle, key string)          { m.Called(h, key) }
func (m *MockWindowSystem) SuspendSync(d time.Duration)                       { m.Called(d) }

// NewMockWindowSystem creates a mock that accepts every command
func NewMockWindowSystem(t *testing.T) *MockWindowSystem {
	t.Helper()
	m := new(MockWindowSystem)
	for _, method := range []string{"Configure", "SetOpacity", "SetPosition", "SetScale", "SetVisible", "SendKey"} {
		m.On(method, mock.Anything, mock.Anything).Return().Maybe()
	}
	m.On("Focus", mock.Anything).Return().Maybe()
	m.On("SuspendSync", mock.Anything).Return().Maybe()
	return m
}
