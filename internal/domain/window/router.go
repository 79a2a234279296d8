package window

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ilixi/ilixi-sub001/internal/domain/supervisor"
	"github.com/ilixi/ilixi-sub001/internal/infrastructure/monitoring"
	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

// Router turns window-system callbacks into loop events. Its methods are
// safe to call from the bridge goroutine.
type Router struct {
	owners   OwnerLookup
	parents  ParentResolver
	maxDepth int
	geometry Geometry
	sink     supervisor.EventSink
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	mu      sync.Mutex
	handles map[types.WindowHandle]int // Protected by mu
	counts  map[int]int                // Protected by mu
}

// NewRouter creates a router posting to sink
func NewRouter(owners OwnerLookup, sink supervisor.EventSink, geometry Geometry, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		owners:   owners,
		maxDepth: DefaultMaxDepth,
		geometry: geometry,
		sink:     sink,
		logger:   logger.Named("window"),
		handles:  make(map[types.WindowHandle]int),
		counts:   make(map[int]int),
	}
}

// WithParents enables the parent walk for windows of unregistered pids
func (r *Router) WithParents(parents ParentResolver, maxDepth int) *Router {
	r.parents = parents
	if maxDepth > 0 {
		r.maxDepth = maxDepth
	}
	return r
}

// WithMetrics adds metrics tracking to the router
func (r *Router) WithMetrics(metrics *monitoring.Metrics) *Router {
	r.metrics = metrics
	return r
}

// Geometry returns the reserved regions
func (r *Router) Geometry() Geometry {
	return r.geometry
}

// Added handles a new window and returns the bounds the window system must
// apply. Windows without a resolvable owner keep their requested bounds and
// are not tracked.
func (r *Router) Added(h types.WindowHandle, ownerPID int, bounds types.Rect, fields types.ConfigFields) (types.Rect, error) {
	inst, err := resolveOwner(r.owners, r.parents, ownerPID, r.maxDepth)
	if err != nil {
		r.logger.Warn("Dropping window", zap.Uint32("handle", uint32(h)), zap.Int("pid", ownerPID), zap.Error(err))
		r.metrics.RecordDropped("unresolved_owner")
		return bounds, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if pid, known := r.handles[h]; known {
		r.logger.Warn("Window added twice", zap.Uint32("handle", uint32(h)), zap.Int("pid", pid))
		return bounds, nil
	}

	first := r.counts[inst.PID] == 0
	granted := r.geometry.grant(inst.Def, bounds, fields, first)

	ev := types.Event{Kind: types.EventWindowAdded, PID: inst.PID, Handle: h, Bounds: granted, Fields: fields}
	if !r.post(ev) {
		return bounds, nil
	}

	r.handles[h] = inst.PID
	r.counts[inst.PID]++
	r.metrics.SetWindowsTracked(len(r.handles))

	r.logger.Debug("Window added",
		zap.Uint32("handle", uint32(h)),
		zap.String("app", inst.Name()),
		zap.Int("pid", inst.PID),
		zap.Stringer("bounds", granted))
	return granted, nil
}

// Removed handles a destroyed window. The handle stays known until the
// removal has been queued, so a dropped removal can be reported again.
func (r *Router) Removed(h types.WindowHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pid, ok := r.handles[h]
	if !ok {
		r.logger.Debug("Ignoring removal of unknown window", zap.Uint32("handle", uint32(h)))
		return
	}
	if r.post(types.Event{Kind: types.EventWindowRemoved, PID: pid, Handle: h}) {
		r.forgetLocked(h, pid)
	}
}

// Reconfigured handles a geometry or attribute change of a window
func (r *Router) Reconfigured(h types.WindowHandle, bounds types.Rect, fields types.ConfigFields) {
	r.mu.Lock()
	pid, ok := r.handles[h]
	r.mu.Unlock()
	if !ok {
		r.logger.Debug("Ignoring reconfigure of unknown window", zap.Uint32("handle", uint32(h)))
		return
	}

	var def *types.AppDefinition
	if inst, found := r.owners.Instance(pid); found {
		def = inst.Def
	}
	fields = filterReconfigure(def, fields)
	if fields == 0 {
		return
	}
	r.post(types.Event{Kind: types.EventWindowConfig, PID: pid, Handle: h, Bounds: bounds, Fields: fields})
}

// Restacked handles a z-order change of a window relative to another
func (r *Router) Restacked(h, relative types.WindowHandle, order types.StackOrder) {
	r.mu.Lock()
	pid, ok := r.handles[h]
	r.mu.Unlock()
	if !ok {
		r.logger.Debug("Ignoring restack of unknown window", zap.Uint32("handle", uint32(h)))
		return
	}
	r.post(types.Event{Kind: types.EventWindowRestack, PID: pid, Handle: h, Relative: relative, Order: order})
}

// Forget drops every handle owned by pid. The loop calls it when an instance
// is torn down, since a dead process never reports its windows removed.
func (r *Router) Forget(pid int) []types.WindowHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dropped []types.WindowHandle
	for h, owner := range r.handles {
		if owner == pid {
			dropped = append(dropped, h)
		}
	}
	for _, h := range dropped {
		r.forgetLocked(h, pid)
	}
	return dropped
}

// Owner returns the pid that owns h
func (r *Router) Owner(h types.WindowHandle) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pid, ok := r.handles[h]
	return pid, ok
}

// Len returns the number of tracked handles
func (r *Router) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

func (r *Router) forgetLocked(h types.WindowHandle, pid int) {
	delete(r.handles, h)
	if r.counts[pid]--; r.counts[pid] <= 0 {
		delete(r.counts, pid)
	}
	r.metrics.SetWindowsTracked(len(r.handles))
}

func (r *Router) post(ev types.Event) bool {
	if r.sink != nil && r.sink.Post(ev) {
		return true
	}
	r.logger.Warn("Dropping window event", zap.Stringer("kind", ev.Kind), zap.Uint32("handle", uint32(ev.Handle)))
	r.metrics.RecordDropped("window_event")
	return false
}
