package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/ilixi/ilixi-sub001/internal/domain/catalog"
	"github.com/ilixi/ilixi-sub001/internal/domain/notify"
	"github.com/ilixi/ilixi-sub001/internal/infrastructure/monitoring"
	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

// Sentinel errors returned by the supervisor
var (
	ErrNotFound         = errors.New("application not found")
	ErrBusy             = errors.New("application already running")
	ErrForkFailure      = errors.New("failed to start process")
	ErrInstanceNotFound = errors.New("instance not found")
)

// Result is the outcome of a start request
type Result int

const (
	ResultOK Result = iota
	ResultBusy
	ResultNotFound
	ResultForkFailure
)

func (r Result) String() string {
	switch r {
	case ResultBusy:
		return "busy"
	case ResultNotFound:
		return "not_found"
	case ResultForkFailure:
		return "fork_failure"
	default:
		return "ok"
	}
}

// EventSink queues events for the compositor loop. Post must not block; it
// reports false when the event could not be queued.
type EventSink interface {
	Post(ev types.Event) bool
}

// ProcessSink receives exit events from watcher goroutines. Send blocks until
// the event is queued and reports false only once the sink has shut down.
type ProcessSink interface {
	Send(ev types.Event) bool
}

// Supervisor starts applications from the catalog and tracks their instances
type Supervisor struct {
	catalog   *catalog.Catalog
	registry  *Registry
	spawner   Spawner
	sink      ProcessSink
	publisher notify.Publisher
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	now       func() time.Time

	startMu  sync.Mutex
	watchers sync.WaitGroup
	gen      atomic.Uint64

	liveMu sync.Mutex
	live   map[*Instance]struct{} // Protected by liveMu; watched until reaped
}

// New creates a supervisor for cat
func New(cat *catalog.Catalog, spawner Spawner, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if spawner == nil {
		spawner = &ExecSpawner{}
	}
	return &Supervisor{
		catalog:  cat,
		registry: NewRegistry(),
		spawner:  spawner,
		logger:   logger.Named("supervisor"),
		now:      time.Now,
		live:     make(map[*Instance]struct{}),
	}
}

// WithSink sets where watcher goroutines send process events
func (s *Supervisor) WithSink(sink ProcessSink) *Supervisor {
	s.sink = sink
	return s
}

// WithPublisher sets the notification target for app-starting
func (s *Supervisor) WithPublisher(p notify.Publisher) *Supervisor {
	s.publisher = p
	return s
}

// WithMetrics adds metrics tracking to the supervisor
func (s *Supervisor) WithMetrics(metrics *monitoring.Metrics) *Supervisor {
	s.metrics = metrics
	return s
}

// WithClock overrides the time source
func (s *Supervisor) WithClock(now func() time.Time) *Supervisor {
	s.now = now
	return s
}

// Catalog returns the catalog the supervisor starts from
func (s *Supervisor) Catalog() *catalog.Catalog {
	return s.catalog
}

// Registry returns the instance registry
func (s *Supervisor) Registry() *Registry {
	return s.registry
}

// Start launches the application called name. When a live instance of a
// single-instance application exists it is returned with ResultBusy and
// ErrBusy, and nothing is spawned.
func (s *Supervisor) Start(name string) (Result, *Instance, error) {
	def, ok := s.catalog.Lookup(name)
	if !ok {
		s.metrics.RecordStart(ResultNotFound.String())
		return ResultNotFound, nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()

	if !def.Flags.Has(types.AppMultiple) {
		if inst := s.liveInstanceOf(def); inst != nil {
			s.logger.Debug("Application already running",
				zap.String("app", def.Name), zap.Int("pid", inst.PID))
			s.metrics.RecordStart(ResultBusy.String())
			return ResultBusy, inst, ErrBusy
		}
	}

	proc, err := s.spawner.Spawn(def)
	if err != nil {
		s.logger.Error("Failed to start application", zap.String("app", def.Name), zap.Error(err))
		s.metrics.RecordStart(ResultForkFailure.String())
		return ResultForkFailure, nil, fmt.Errorf("%w: %s: %v", ErrForkFailure, def.Name, err)
	}

	inst := newInstance(proc, def, s.now(), s.gen.Add(1))
	if stale := s.registry.Insert(inst); stale != nil {
		s.logger.Warn("Replacing stale instance with reused pid", zap.Int("pid", inst.PID), zap.String("app", stale.Name()))
	}
	s.watch(inst)

	s.logger.Info("Application started", zap.String("app", def.Name), zap.Int("pid", inst.PID))
	s.metrics.RecordStart(ResultOK.String())
	s.metrics.SetInstancesActive(s.registry.Len())
	s.publish(types.Notification{Kind: types.NotifyAppStarting, App: def.Name, PID: inst.PID})

	return ResultOK, inst, nil
}

func (s *Supervisor) liveInstanceOf(def *types.AppDefinition) *Instance {
	return s.registry.Find(func(inst *Instance) bool {
		return inst.Def == def && inst.Alive()
	})
}

// watch starts the wait goroutine for inst. The goroutine only records the
// termination on the instance and sends one event. The event is dropped only
// when the sink has shut down.
func (s *Supervisor) watch(inst *Instance) {
	s.liveMu.Lock()
	s.live[inst] = struct{}{}
	s.liveMu.Unlock()

	s.watchers.Add(1)
	go func() {
		defer s.watchers.Done()

		term := inst.proc.Wait()
		inst.markExited(term)

		s.liveMu.Lock()
		delete(s.live, inst)
		s.liveMu.Unlock()

		ev := term.Event(inst)
		if s.sink == nil || !s.sink.Send(ev) {
			s.logger.Warn("Dropping process event",
				zap.Int("pid", inst.PID), zap.Stringer("kind", ev.Kind))
			s.metrics.RecordDropped("process_event")
		}
	}()
}

// running returns every instance whose process has not been reaped,
// including instances already removed from the registry
func (s *Supervisor) running() []*Instance {
	s.liveMu.Lock()
	defer s.liveMu.Unlock()
	out := make([]*Instance, 0, len(s.live))
	for inst := range s.live {
		out = append(out, inst)
	}
	return out
}

// Stop asks the instance with pid to terminate and forgets it immediately.
// It does not wait for the process to exit.
func (s *Supervisor) Stop(pid int) error {
	return s.terminate(pid, syscall.SIGTERM, "stopped")
}

// Kill sends SIGKILL to the instance with pid and forgets it immediately
func (s *Supervisor) Kill(pid int) error {
	return s.terminate(pid, syscall.SIGKILL, "killed")
}

func (s *Supervisor) terminate(pid int, sig syscall.Signal, kind string) error {
	inst, ok := s.registry.Remove(pid)
	if !ok {
		return fmt.Errorf("%w: pid %d", ErrInstanceNotFound, pid)
	}

	if err := inst.proc.Signal(sig); err != nil && !errors.Is(err, unix.ESRCH) {
		s.logger.Warn("Failed to signal instance", zap.Int("pid", pid), zap.Stringer("signal", sig), zap.Error(err))
	}

	s.logger.Info("Instance terminated", zap.String("app", inst.Name()), zap.Int("pid", pid), zap.Stringer("signal", sig))
	s.metrics.RecordTermination(kind)
	s.metrics.SetInstancesActive(s.registry.Len())
	return nil
}

// Reap removes the instance with pid and generation gen after its exit event
// reached the loop. It reports false when that instance was already removed,
// including when pid now belongs to a newer instance.
func (s *Supervisor) Reap(pid int, gen uint64, kind TerminationKind) (*Instance, bool) {
	inst, ok := s.registry.Get(pid)
	if !ok || inst.Gen != gen || !s.registry.RemoveInstance(inst) {
		return nil, false
	}
	s.metrics.RecordTermination(kind.String())
	s.metrics.SetInstancesActive(s.registry.Len())
	return inst, true
}

// Instance returns the live registry entry for pid
func (s *Supervisor) Instance(pid int) (*Instance, bool) {
	return s.registry.Get(pid)
}

// Instances returns every registered instance in start order
func (s *Supervisor) Instances() []*Instance {
	return s.registry.List()
}

// StopAll sends SIGTERM to every instance, waits until they exit or ctx is
// done, then kills the rest. Instances stopped earlier that are still running
// are waited for and killed as well.
func (s *Supervisor) StopAll(ctx context.Context) {
	for _, inst := range s.registry.List() {
		_ = s.Stop(inst.PID)
	}

	for _, inst := range s.running() {
		select {
		case <-inst.Done():
		case <-ctx.Done():
			if inst.Alive() {
				s.logger.Warn("Instance ignored SIGTERM, killing", zap.String("app", inst.Name()), zap.Int("pid", inst.PID))
				_ = inst.proc.Signal(syscall.SIGKILL)
			}
		}
	}
}

// Wait blocks until every watcher goroutine has returned or ctx is done
func (s *Supervisor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.watchers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("Processes still running after shutdown", zap.Int("count", len(s.running())))
		return ctx.Err()
	}
}

func (s *Supervisor) publish(n types.Notification) {
	if s.publisher != nil {
		s.publisher.Publish(n)
	}
}
