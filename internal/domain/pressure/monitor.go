package pressure

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/procfs"
	"go.uber.org/zap"

	"github.com/ilixi/ilixi-sub001/internal/infrastructure/monitoring"
	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

// MeminfoReader reads the kernel memory counters. procfs.FS implements it.
type MeminfoReader interface {
	Meminfo() (procfs.Meminfo, error)
}

// MonitorConfig holds the thresholds on the used-memory ratio and the poll
// interval used at each level
type MonitorConfig struct {
	LowRatio         float64
	CriticalRatio    float64
	NormalInterval   time.Duration
	LowInterval      time.Duration
	CriticalInterval time.Duration
}

// DefaultMonitorConfig returns the stock thresholds
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		LowRatio:         0.85,
		CriticalRatio:    0.95,
		NormalInterval:   4 * time.Second,
		LowInterval:      time.Second,
		CriticalInterval: 500 * time.Millisecond,
	}
}

// Monitor polls memory usage and reports level changes
type Monitor struct {
	reader  MeminfoReader
	cfg     MonitorConfig
	logger  *zap.Logger
	metrics *monitoring.Metrics
	level   types.PressureLevel
}

// NewMonitor creates a monitor over reader
func NewMonitor(reader MeminfoReader, cfg MonitorConfig, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		reader: reader,
		cfg:    cfg,
		logger: logger.Named("meminfo"),
	}
}

// NewProcMonitor creates a monitor reading meminfo under mountPoint
func NewProcMonitor(mountPoint string, cfg MonitorConfig, logger *zap.Logger) (*Monitor, error) {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	return NewMonitor(fs, cfg, logger), nil
}

// WithMetrics adds metrics tracking to the monitor
func (m *Monitor) WithMetrics(metrics *monitoring.Metrics) *Monitor {
	m.metrics = metrics
	return m
}

// Sample reads meminfo once and returns the used ratio and its level
func (m *Monitor) Sample() (float64, types.PressureLevel, error) {
	info, err := m.reader.Meminfo()
	if err != nil {
		return 0, types.PressureNormal, fmt.Errorf("read meminfo: %w", err)
	}
	ratio, err := usedRatio(info)
	if err != nil {
		return 0, types.PressureNormal, err
	}
	return ratio, m.classify(ratio), nil
}

func (m *Monitor) classify(ratio float64) types.PressureLevel {
	switch {
	case ratio >= m.cfg.CriticalRatio:
		return types.PressureCritical
	case ratio >= m.cfg.LowRatio:
		return types.PressureLow
	default:
		return types.PressureNormal
	}
}

func usedRatio(info procfs.Meminfo) (float64, error) {
	if info.MemTotal == nil || *info.MemTotal == 0 {
		return 0, fmt.Errorf("meminfo has no MemTotal")
	}
	total := float64(*info.MemTotal)

	var avail float64
	if info.MemAvailable != nil {
		avail = float64(*info.MemAvailable)
	} else {
		for _, v := range []*uint64{info.MemFree, info.Buffers, info.Cached} {
			if v != nil {
				avail += float64(*v)
			}
		}
	}
	if avail > total {
		avail = total
	}
	return (total - avail) / total, nil
}

func (m *Monitor) interval() time.Duration {
	switch m.level {
	case types.PressureCritical:
		return m.cfg.CriticalInterval
	case types.PressureLow:
		return m.cfg.LowInterval
	default:
		return m.cfg.NormalInterval
	}
}

// Run polls until ctx is done and sends every level change to levels
func (m *Monitor) Run(ctx context.Context, levels chan<- types.PressureLevel) error {
	m.logger.Info("Memory monitor started",
		zap.Float64("low_ratio", m.cfg.LowRatio),
		zap.Float64("critical_ratio", m.cfg.CriticalRatio))

	timer := time.NewTimer(m.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		ratio, level, err := m.Sample()
		if err != nil {
			m.logger.Warn("Memory sample failed", zap.Error(err))
		} else {
			m.metrics.SetMemoryUsed(ratio)
			if level != m.level {
				m.logger.Debug("Memory level changed",
					zap.Float64("used", ratio),
					zap.Stringer("level", level))
				m.level = level
				select {
				case levels <- level:
				case <-ctx.Done():
					return nil
				}
			}
		}
		timer.Reset(m.interval())
	}
}
