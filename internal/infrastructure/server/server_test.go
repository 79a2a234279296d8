package server

import (
	"context"
	"fmt"
	"net"
	stdhttp "net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ilixi/ilixi-sub001/internal/domain/compositor"
	"github.com/ilixi/ilixi-sub001/internal/infrastructure/config"
	"github.com/ilixi/ilixi-sub001/internal/infrastructure/logging"
	"github.com/ilixi/ilixi-sub001/internal/shared/paths"
)

func TestSettings(t *testing.T) {
	tests := []struct {
		name string
		opts config.Options
		want compositor.Settings
	}{
		{
			name: "defaults match the compositor defaults",
			opts: config.Default().Animation.Options(),
			want: compositor.DefaultSettings(),
		},
		{
			name: "per direction properties",
			opts: config.Options{
				Animations: true,
				Showing:    config.AnimOptions{DurationMS: 100, Opacity: true},
				Hiding:     config.AnimOptions{DurationMS: 200, Zoom: true},
				SlideMS:    50,
			},
			want: compositor.Settings{
				Animations:    true,
				ShowProps:     compositor.AnimOpacity,
				ShowDuration:  100 * time.Millisecond,
				HideProps:     compositor.AnimZoom,
				HideDuration:  200 * time.Millisecond,
				SlideDuration: 50 * time.Millisecond,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Settings(tt.opts))
		})
	}
}

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return strconv.Itoa(l.Addr().(*net.TCPAddr).Port)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	apps := filepath.Join(dir, "apps")
	require.NoError(t, os.Mkdir(apps, 0o755))

	cfg := config.Default()
	cfg.Server.Port = freePort(t)
	cfg.Catalog.Dir = apps
	cfg.Runtime.Dir = filepath.Join(dir, "run")
	cfg.Runtime.ShutdownTimeout = time.Second
	cfg.Pressure.Enabled = false
	cfg.RateLimit.Enabled = false
	cfg.Animation.OptionsFile = filepath.Join(dir, "options.yaml")
	return cfg
}

func nopLogger() *logging.Logger {
	return &logging.Logger{Logger: zap.NewNop()}
}

func TestNewServerWithoutCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.Catalog.Dir = filepath.Join(t.TempDir(), "missing")

	core, logs := observer.New(zap.WarnLevel)
	s, err := NewServer(cfg, &logging.Logger{Logger: zap.New(core)})
	require.NoError(t, err)
	assert.Equal(t, 0, s.catalog.Len())

	warned := logs.FilterMessage("Starting with an empty app catalog").All()
	require.Len(t, warned, 1)
	assert.Equal(t, cfg.Catalog.Dir, warned[0].ContextMap()["dir"])
}

func TestApplyOptionsValidates(t *testing.T) {
	s, err := NewServer(testConfig(t), nopLogger())
	require.NoError(t, err)

	opts := s.Options()
	opts.SlideMS = -1
	assert.Error(t, s.ApplyOptions(context.Background(), opts))
	assert.Equal(t, 400, s.Options().SlideMS)
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)
	s, err := NewServer(cfg, nopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	result := make(chan error, 1)
	go func() { result <- s.Run(ctx) }()

	url := fmt.Sprintf("http://%s/health", cfg.Server.Addr())
	require.Eventually(t, func() bool {
		resp, err := stdhttp.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == stdhttp.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	pid, err := paths.ReadPIDFile(cfg.Runtime.PIDPath())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	// rewritten until the watcher has picked it up
	require.Eventually(t, func() bool {
		_ = os.WriteFile(cfg.Animation.OptionsFile, []byte("slide-ms: 123\n"), 0o644)
		return s.Options().SlideMS == 123
	}, 5*time.Second, 100*time.Millisecond)

	cancel()
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err = os.Stat(cfg.Runtime.PIDPath())
	assert.True(t, os.IsNotExist(err))
}
