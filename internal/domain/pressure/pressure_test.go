package pressure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/procfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilixi/ilixi-sub001/internal/shared/types"
	"github.com/ilixi/ilixi-sub001/internal/testutil"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(min int) time.Time {
	return epoch.Add(time.Duration(min) * time.Minute)
}

func TestSelectVictim(t *testing.T) {
	home := Candidate{PID: 1, App: "Home", System: true, LastVisible: at(0)}
	bar := Candidate{PID: 2, App: "Bar", System: true, Visible: true, LastVisible: at(9)}
	old := Candidate{PID: 3, App: "Old", LastVisible: at(1)}
	recent := Candidate{PID: 4, App: "Recent", LastVisible: at(5)}
	fg := Candidate{PID: 5, App: "Foreground", Visible: true, LastVisible: at(9)}
	fgOld := Candidate{PID: 6, App: "Overlay", Visible: true, LastVisible: at(2)}

	tests := []struct {
		name   string
		cands  []Candidate
		level  types.PressureLevel
		want   int
		wantOK bool
	}{
		{"low picks oldest hidden", []Candidate{home, recent, old, fg}, types.PressureLow, 3, true},
		{"low spares visible", []Candidate{home, bar, fg}, types.PressureLow, 0, false},
		{"critical prefers hidden", []Candidate{fg, recent}, types.PressureCritical, 4, true},
		{"critical falls back to visible", []Candidate{home, fg, fgOld}, types.PressureCritical, 6, true},
		{"critical never picks system", []Candidate{home, bar}, types.PressureCritical, 0, false},
		{"empty", nil, types.PressureCritical, 0, false},
		{"ties broken by pid", []Candidate{{PID: 9, LastVisible: at(1)}, {PID: 8, LastVisible: at(1)}}, types.PressureLow, 8, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectVictim(tt.cands, tt.level)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got.PID)
			}
		})
	}
}

type fakeEvictor struct {
	cands   []Candidate
	evicted []int
	err     error
}

func (f *fakeEvictor) Candidates() []Candidate { return f.cands }

func (f *fakeEvictor) Evict(pid int) error {
	if f.err != nil {
		return f.err
	}
	f.evicted = append(f.evicted, pid)
	return nil
}

func TestGovernorHandle(t *testing.T) {
	ev := &fakeEvictor{cands: []Candidate{
		{PID: 10, App: "A", LastVisible: at(1)},
		{PID: 11, App: "B", LastVisible: at(2)},
	}}
	rec := &testutil.Recorder{}
	g := NewGovernor(ev, nil).WithPublisher(rec)

	victim, ok := g.Handle(types.PressureLow)
	require.True(t, ok)
	assert.Equal(t, 10, victim.PID)
	assert.Equal(t, []int{10}, ev.evicted)
	assert.Equal(t, types.PressureLow, g.Level())

	evicted := rec.OfKind(types.NotifyAppEvicted)
	require.Len(t, evicted, 1)
	assert.Equal(t, "A", evicted[0].App)
	assert.Equal(t, "low memory", evicted[0].Reason)

	_, ok = g.Handle(types.PressureLow)
	assert.False(t, ok, "no eviction without a level change")

	_, ok = g.Handle(types.PressureNormal)
	assert.False(t, ok, "falling pressure never evicts")

	_, ok = g.Handle(types.PressureCritical)
	assert.True(t, ok)
	assert.Len(t, ev.evicted, 2)
	assert.Len(t, rec.OfKind(types.NotifyPressureChanged), 3)
}

func TestGovernorEvictFailure(t *testing.T) {
	ev := &fakeEvictor{
		cands: []Candidate{{PID: 10, App: "A"}},
		err:   errors.New("gone"),
	}
	g := NewGovernor(ev, nil)

	victim, ok := g.Handle(types.PressureLow)
	assert.False(t, ok)
	assert.Equal(t, 10, victim.PID)
}

type fakeMeminfo struct {
	infos []procfs.Meminfo
	err   error
	calls int
}

func (f *fakeMeminfo) Meminfo() (procfs.Meminfo, error) {
	if f.err != nil {
		return procfs.Meminfo{}, f.err
	}
	i := min(f.calls, len(f.infos)-1)
	f.calls++
	return f.infos[i], nil
}

func kb(v uint64) *uint64 { return &v }

func meminfo(total, avail uint64) procfs.Meminfo {
	return procfs.Meminfo{MemTotal: kb(total), MemAvailable: kb(avail)}
}

func TestMonitorSample(t *testing.T) {
	tests := []struct {
		name  string
		info  procfs.Meminfo
		ratio float64
		level types.PressureLevel
	}{
		{"normal", meminfo(1000, 600), 0.4, types.PressureNormal},
		{"low", meminfo(1000, 100), 0.9, types.PressureLow},
		{"critical", meminfo(1000, 20), 0.98, types.PressureCritical},
		{"no MemAvailable", procfs.Meminfo{MemTotal: kb(1000), MemFree: kb(100), Buffers: kb(100), Cached: kb(300)}, 0.5, types.PressureNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(&fakeMeminfo{infos: []procfs.Meminfo{tt.info}}, DefaultMonitorConfig(), nil)
			ratio, level, err := m.Sample()
			require.NoError(t, err)
			assert.InDelta(t, tt.ratio, ratio, 1e-9)
			assert.Equal(t, tt.level, level)
		})
	}
}

func TestMonitorSampleErrors(t *testing.T) {
	m := NewMonitor(&fakeMeminfo{err: errors.New("boom")}, DefaultMonitorConfig(), nil)
	_, _, err := m.Sample()
	assert.Error(t, err)

	m = NewMonitor(&fakeMeminfo{infos: []procfs.Meminfo{{}}}, DefaultMonitorConfig(), nil)
	_, _, err = m.Sample()
	assert.Error(t, err)
}

func TestMonitorRunReportsChanges(t *testing.T) {
	reader := &fakeMeminfo{infos: []procfs.Meminfo{
		meminfo(1000, 600),
		meminfo(1000, 100),
		meminfo(1000, 100),
		meminfo(1000, 10),
		meminfo(1000, 700),
	}}
	cfg := MonitorConfig{
		LowRatio:         0.85,
		CriticalRatio:    0.95,
		NormalInterval:   time.Millisecond,
		LowInterval:      time.Millisecond,
		CriticalInterval: time.Millisecond,
	}
	m := NewMonitor(reader, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	levels := make(chan types.PressureLevel)
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, levels) }()

	var got []types.PressureLevel
	for len(got) < 3 {
		select {
		case l := <-levels:
			got = append(got, l)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for level")
		}
	}
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []types.PressureLevel{types.PressureLow, types.PressureCritical, types.PressureNormal}, got)
}
