package pressure

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ilixi/ilixi-sub001/internal/domain/notify"
	"github.com/ilixi/ilixi-sub001/internal/infrastructure/monitoring"
	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

// Candidate is an instance considered for eviction
type Candidate struct {
	PID         int
	App         string
	System      bool
	Visible     bool
	LastVisible time.Time
}

// Evictor lists eviction candidates and kills the chosen one
type Evictor interface {
	Candidates() []Candidate
	Evict(pid int) error
}

// Governor turns pressure level changes into at most one eviction each
type Governor struct {
	evictor   Evictor
	publisher notify.Publisher
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	level     types.PressureLevel
}

// NewGovernor creates a governor that evicts through evictor
func NewGovernor(evictor Evictor, logger *zap.Logger) *Governor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Governor{
		evictor: evictor,
		logger:  logger.Named("pressure"),
	}
}

// WithPublisher sets where eviction and level notifications go
func (g *Governor) WithPublisher(p notify.Publisher) *Governor {
	g.publisher = p
	return g
}

// WithMetrics adds metrics tracking to the governor
func (g *Governor) WithMetrics(metrics *monitoring.Metrics) *Governor {
	g.metrics = metrics
	return g
}

// Level returns the last level handled
func (g *Governor) Level() types.PressureLevel {
	return g.level
}

// Handle reacts to a new pressure level. Only a rise into Low or Critical
// evicts, and at most one instance. The victim is notified before it is
// killed.
func (g *Governor) Handle(level types.PressureLevel) (Candidate, bool) {
	prev := g.level
	if level == prev {
		return Candidate{}, false
	}
	g.level = level
	g.metrics.SetPressure(int(level))
	g.publish(types.Notification{Kind: types.NotifyPressureChanged, Reason: level.String()})
	g.logger.Info("Memory pressure changed", zap.Stringer("from", prev), zap.Stringer("to", level))

	if level <= prev {
		return Candidate{}, false
	}

	victim, ok := SelectVictim(g.evictor.Candidates(), level)
	if !ok {
		g.logger.Warn("No instance can be evicted", zap.Stringer("level", level))
		return Candidate{}, false
	}

	g.publish(types.Notification{
		Kind:   types.NotifyAppEvicted,
		App:    victim.App,
		PID:    victim.PID,
		Reason: reason(level),
	})
	if err := g.evictor.Evict(victim.PID); err != nil {
		g.logger.Warn("Eviction failed", zap.Int("pid", victim.PID), zap.Error(err))
		return victim, false
	}

	g.logger.Info("Instance evicted",
		zap.String("app", victim.App),
		zap.Int("pid", victim.PID),
		zap.Stringer("level", level))
	g.metrics.RecordEviction(level.String())
	return victim, true
}

// SelectVictim picks the least recently visible non-system instance,
// preferring invisible ones. At Critical a visible instance is taken when no
// invisible one exists; at Low it is not.
func SelectVictim(cands []Candidate, level types.PressureLevel) (Candidate, bool) {
	var hidden, shown []Candidate
	for _, c := range cands {
		if c.System {
			continue
		}
		if c.Visible {
			shown = append(shown, c)
		} else {
			hidden = append(hidden, c)
		}
	}

	if v, ok := leastRecent(hidden); ok {
		return v, true
	}
	if level >= types.PressureCritical {
		return leastRecent(shown)
	}
	return Candidate{}, false
}

func leastRecent(cands []Candidate) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].LastVisible.Equal(cands[j].LastVisible) {
			return cands[i].PID < cands[j].PID
		}
		return cands[i].LastVisible.Before(cands[j].LastVisible)
	})
	return cands[0], true
}

func reason(level types.PressureLevel) string {
	if level >= types.PressureCritical {
		return "critical memory pressure"
	}
	return "low memory"
}

func (g *Governor) publish(n types.Notification) {
	if g.publisher != nil {
		g.publisher.Publish(n)
	}
}
