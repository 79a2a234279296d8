package window

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilixi/ilixi-sub001/internal/domain/catalog"
	"github.com/ilixi/ilixi-sub001/internal/domain/supervisor"
	"github.com/ilixi/ilixi-sub001/internal/shared/types"
	"github.com/ilixi/ilixi-sub001/internal/testutil"
)

type fakeParents map[int]int

func (f fakeParents) Parent(pid int) (int, error) {
	if ppid, ok := f[pid]; ok {
		return ppid, nil
	}
	return 0, errors.New("no such process")
}

var testGeometry = DefaultGeometry(800, 480, 50, 200)

func setup(t *testing.T) (*Router, *supervisor.Supervisor, *testutil.EventCollector) {
	t.Helper()
	cat := catalog.New(
		&types.AppDefinition{Name: "Bar", Flags: types.AppStatusBar | types.AppSystem},
		&types.AppDefinition{Name: "Keyboard", Flags: types.AppOSK},
		&types.AppDefinition{Name: "Browser"},
		&types.AppDefinition{Name: "Painter", Flags: types.AppAllowGeometry},
	)
	sup := supervisor.New(cat, testutil.NewFakeSpawner(), nil)
	events := testutil.NewEventCollector(32)
	return NewRouter(sup, events, testGeometry, nil), sup, events
}

func start(t *testing.T, sup *supervisor.Supervisor, name string) *supervisor.Instance {
	t.Helper()
	_, inst, err := sup.Start(name)
	require.NoError(t, err)
	return inst
}

func TestAddedGeometryPolicy(t *testing.T) {
	router, sup, events := setup(t)
	bar := start(t, sup, "Bar")
	kb := start(t, sup, "Keyboard")
	browser := start(t, sup, "Browser")
	painter := start(t, sup, "Painter")

	requested := types.Rect{X: 10, Y: 10, W: 100, H: 100}

	tests := []struct {
		name   string
		handle types.WindowHandle
		pid    int
		fields types.ConfigFields
		want   types.Rect
	}{
		{name: "status bar strip", handle: 1, pid: bar.PID, want: testGeometry.StatusBar},
		{name: "keyboard strip", handle: 2, pid: kb.PID, want: testGeometry.OSK},
		{name: "first app window", handle: 3, pid: browser.PID, want: testGeometry.App},
		{name: "second app window keeps request", handle: 4, pid: browser.PID, want: requested},
		{name: "allow geometry", handle: 5, pid: painter.PID, want: requested},
		{name: "keep size request", handle: 6, pid: kb.PID, fields: types.ConfigKeepSize, want: requested},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := router.Added(tt.handle, tt.pid, requested, tt.fields)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			ev := events.Next(t)
			assert.Equal(t, types.EventWindowAdded, ev.Kind)
			assert.Equal(t, tt.handle, ev.Handle)
			assert.Equal(t, tt.pid, ev.PID)
			assert.Equal(t, tt.want, ev.Bounds)
		})
	}
	assert.Equal(t, 6, router.Len())
}

func TestAddedResolvesThroughParents(t *testing.T) {
	router, sup, events := setup(t)
	browser := start(t, sup, "Browser")
	router.WithParents(fakeParents{5001: 5000, 5000: browser.PID, 7001: 7000, 7000: 1}, 4)

	_, err := router.Added(9, 5001, types.Rect{}, 0)
	require.NoError(t, err)
	assert.Equal(t, browser.PID, events.Next(t).PID)

	_, err = router.Added(10, 7001, types.Rect{}, 0)
	assert.ErrorIs(t, err, ErrUnresolvedWindowOwner)
	_, known := router.Owner(10)
	assert.False(t, known)
}

func TestParentWalkIsBounded(t *testing.T) {
	router, sup, _ := setup(t)
	browser := start(t, sup, "Browser")
	chain := fakeParents{}
	pid := 6000
	for i := 0; i < 6; i++ {
		chain[pid+i] = pid + i + 1
	}
	chain[pid+6] = browser.PID
	router.WithParents(chain, 2)

	_, err := router.Added(1, pid, types.Rect{}, 0)
	assert.ErrorIs(t, err, ErrUnresolvedWindowOwner)
}

func TestRemovedNeverPrecedesAdded(t *testing.T) {
	router, sup, events := setup(t)
	browser := start(t, sup, "Browser")

	router.Removed(42)
	router.Reconfigured(42, types.Rect{}, types.ConfigSize)
	router.Restacked(42, 1, types.StackAbove)

	_, err := router.Added(42, browser.PID, types.Rect{}, 0)
	require.NoError(t, err)
	router.Removed(42)
	router.Removed(42)

	assert.Equal(t, types.EventWindowAdded, events.Next(t).Kind)
	ev := events.Next(t)
	assert.Equal(t, types.EventWindowRemoved, ev.Kind)
	assert.Equal(t, browser.PID, ev.PID)

	assert.True(t, events.Post(types.Event{Kind: types.EventKillRequest}))
	assert.Equal(t, types.EventKillRequest, events.Next(t).Kind, "no stray events queued")
	assert.Equal(t, 0, router.Len())
}

func TestReconfiguredStripsPosition(t *testing.T) {
	router, sup, events := setup(t)
	browser := start(t, sup, "Browser")
	painter := start(t, sup, "Painter")

	_, _ = router.Added(1, browser.PID, types.Rect{}, 0)
	_, _ = router.Added(2, painter.PID, types.Rect{}, 0)
	events.Next(t)
	events.Next(t)

	router.Reconfigured(1, types.Rect{X: 5, Y: 5, W: 10, H: 10}, types.ConfigPosition|types.ConfigSize)
	ev := events.Next(t)
	assert.Equal(t, types.ConfigSize, ev.Fields)

	// position only: nothing left to forward
	router.Reconfigured(1, types.Rect{X: 5, Y: 5}, types.ConfigPosition)

	router.Reconfigured(2, types.Rect{X: 5, Y: 5}, types.ConfigPosition)
	ev = events.Next(t)
	assert.Equal(t, 2, int(ev.Handle))
	assert.Equal(t, types.ConfigPosition, ev.Fields)
}

func TestRestacked(t *testing.T) {
	router, sup, events := setup(t)
	browser := start(t, sup, "Browser")
	_, _ = router.Added(1, browser.PID, types.Rect{}, 0)
	events.Next(t)

	router.Restacked(1, 7, types.StackBelow)
	ev := events.Next(t)
	assert.Equal(t, types.EventWindowRestack, ev.Kind)
	assert.Equal(t, types.WindowHandle(7), ev.Relative)
	assert.Equal(t, types.StackBelow, ev.Order)
}

func TestForget(t *testing.T) {
	router, sup, events := setup(t)
	browser := start(t, sup, "Browser")
	_, _ = router.Added(1, browser.PID, types.Rect{}, 0)
	_, _ = router.Added(2, browser.PID, types.Rect{}, 0)
	events.Next(t)
	events.Next(t)

	dropped := router.Forget(browser.PID)
	assert.ElementsMatch(t, []types.WindowHandle{1, 2}, dropped)
	assert.Equal(t, 0, router.Len())

	// first window again after all were forgotten
	got, err := router.Added(3, browser.PID, types.Rect{W: 1, H: 1}, 0)
	require.NoError(t, err)
	assert.Equal(t, testGeometry.App, got)
}

func TestAddedDroppedWhenLoopClosed(t *testing.T) {
	router, sup, events := setup(t)
	browser := start(t, sup, "Browser")
	events.Close()

	_, err := router.Added(1, browser.PID, types.Rect{}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, router.Len())
}

func TestRemovedRetriedWhenQueueFull(t *testing.T) {
	cat := catalog.New(&types.AppDefinition{Name: "Browser"})
	sup := supervisor.New(cat, testutil.NewFakeSpawner(), nil)
	events := testutil.NewEventCollector(1)
	router := NewRouter(sup, events, testGeometry, nil)
	browser := start(t, sup, "Browser")

	_, err := router.Added(7, browser.PID, types.Rect{}, 0)
	require.NoError(t, err)
	assert.Equal(t, types.EventWindowAdded, events.Next(t).Kind)

	require.True(t, events.Post(types.Event{Kind: types.EventKillRequest}))
	router.Removed(7)
	owner, known := router.Owner(7)
	assert.True(t, known, "a dropped removal keeps the handle")
	assert.Equal(t, browser.PID, owner)

	assert.Equal(t, types.EventKillRequest, events.Next(t).Kind)
	router.Removed(7)
	ev := events.Next(t)
	assert.Equal(t, types.EventWindowRemoved, ev.Kind)
	assert.Equal(t, types.WindowHandle(7), ev.Handle)
	assert.Equal(t, 0, router.Len())
}

func TestProcParents(t *testing.T) {
	if _, err := os.Stat("/proc/self/stat"); err != nil {
		t.Skip("procfs not mounted")
	}
	parents, err := NewProcParents("")
	require.NoError(t, err)

	ppid, err := parents.Parent(os.Getpid())
	require.NoError(t, err)
	assert.Equal(t, os.Getppid(), ppid)
}
