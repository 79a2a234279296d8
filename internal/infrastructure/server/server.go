package server

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ilixi/ilixi-sub001/internal/api/http"
	"github.com/ilixi/ilixi-sub001/internal/api/middleware"
	"github.com/ilixi/ilixi-sub001/internal/api/ws"
	"github.com/ilixi/ilixi-sub001/internal/domain/catalog"
	"github.com/ilixi/ilixi-sub001/internal/domain/compositor"
	"github.com/ilixi/ilixi-sub001/internal/domain/notify"
	"github.com/ilixi/ilixi-sub001/internal/domain/pressure"
	"github.com/ilixi/ilixi-sub001/internal/domain/supervisor"
	"github.com/ilixi/ilixi-sub001/internal/domain/transition"
	"github.com/ilixi/ilixi-sub001/internal/domain/window"
	"github.com/ilixi/ilixi-sub001/internal/infrastructure/config"
	"github.com/ilixi/ilixi-sub001/internal/infrastructure/logging"
	"github.com/ilixi/ilixi-sub001/internal/infrastructure/monitoring"
	"github.com/ilixi/ilixi-sub001/internal/infrastructure/watcher"
	"github.com/ilixi/ilixi-sub001/internal/shared/paths"
	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

// Server owns every long-lived component of the shell
type Server struct {
	cfg      *config.Config
	logger   *logging.Logger
	registry *prometheus.Registry
	metrics  *monitoring.Metrics

	bus      *notify.Bus
	webhook  *notify.Webhook
	hub      *ws.Hub
	bridge   *ws.Bridge
	catalog  *catalog.Catalog
	sup      *supervisor.Supervisor
	router   *window.Router
	comp     *compositor.Compositor
	governor *pressure.Governor
	loop     *compositor.Loop
	monitor  *pressure.Monitor
	levels   chan types.PressureLevel
	engine   *gin.Engine

	mu      sync.Mutex
	options config.Options // Protected by mu
}

// NewServer builds the shell from cfg. Nothing runs until Run is called.
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	logger.Info("Initializing shell",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("apps", cfg.Catalog.Dir),
		zap.Int("width", cfg.Display.Width),
		zap.Int("height", cfg.Display.Height),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(registry)

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics,
		options:  cfg.Animation.Options(),
	}

	if path := cfg.Animation.OptionsFile; path != "" {
		opts, err := config.LoadOptions(path, s.options)
		switch {
		case err == nil:
			s.options = opts
		case errors.Is(err, os.ErrNotExist):
			logger.Info("Options file missing, using defaults", zap.String("path", path))
		default:
			logger.Warn("Ignoring options file", zap.String("path", path), zap.Error(err))
		}
	}

	cat, err := catalog.Load(cfg.Catalog.Dir, catalog.Options{
		Pattern: cfg.Catalog.Pattern,
		BinDir:  cfg.Catalog.BinDir,
		DataDir: cfg.Catalog.DataDir,
	}, logger.Logger)
	if err != nil {
		logger.Warn("Starting with an empty app catalog", zap.String("dir", cfg.Catalog.Dir), zap.Error(err))
	}
	s.catalog = cat

	s.bus = notify.NewBus(logger.Logger).WithMetrics(metrics)
	if cfg.Notify.WebhookURL != "" {
		s.webhook = notify.NewWebhook(notify.WebhookConfig{
			URL:        cfg.Notify.WebhookURL,
			Timeout:    cfg.Notify.WebhookTimeout,
			RetryCount: cfg.Notify.WebhookRetries,
			QueueSize:  cfg.Notify.QueueSize,
			Failures:   cfg.Notify.Failures,
			Cooldown:   cfg.Notify.Cooldown,
		}, logger.Logger).WithMetrics(metrics)
		s.bus.Subscribe(s.webhook)
		logger.Info("Webhook notifications enabled", zap.String("url", cfg.Notify.WebhookURL))
	}

	s.sup = supervisor.New(cat, &supervisor.ExecSpawner{Stdout: os.Stdout, Stderr: os.Stderr}, logger.Logger).
		WithPublisher(s.bus).
		WithMetrics(metrics)

	geometry := window.DefaultGeometry(cfg.Display.Width, cfg.Display.Height, cfg.Display.BarHeight, cfg.Display.OSKHeight)
	s.bridge = ws.NewBridge(logger.Logger).WithMetrics(metrics)
	s.comp = compositor.New(compositor.Config{
		Geometry: geometry,
		Settings: Settings(s.options),
		OSKApp:   cfg.Display.OSKApp,
	}, s.sup, s.bridge, transition.SystemClock{}, logger.Logger).
		WithPublisher(s.bus).
		WithMetrics(metrics)

	s.loop = compositor.NewLoop(s.comp, cfg.Runtime.QueueSize, cfg.Runtime.FrameInterval, logger.Logger).
		WithMetrics(metrics)
	s.sup.WithSink(s.loop)

	s.hub = ws.NewHub(s.loop, logger.Logger).WithMetrics(metrics)
	s.bus.Subscribe(s.hub)

	s.router = window.NewRouter(s.sup, s.loop, geometry, logger.Logger).WithMetrics(metrics)
	if parents, err := window.NewProcParents(cfg.Runtime.ProcMount); err == nil {
		s.router.WithParents(parents, cfg.Runtime.OwnerMaxDepth)
	} else {
		logger.Warn("Parent lookup disabled", zap.Error(err))
	}
	s.bridge.WithRouter(s.router)
	s.comp.WithRouter(s.router)

	s.governor = pressure.NewGovernor(s.comp, logger.Logger).
		WithPublisher(s.bus).
		WithMetrics(metrics)
	s.comp.WithGovernor(s.governor)

	if cfg.Pressure.Enabled {
		monitor, err := pressure.NewProcMonitor(cfg.Runtime.ProcMount, pressure.MonitorConfig{
			LowRatio:         cfg.Pressure.LowRatio,
			CriticalRatio:    cfg.Pressure.CriticalRatio,
			NormalInterval:   cfg.Pressure.NormalInterval,
			LowInterval:      cfg.Pressure.LowInterval,
			CriticalInterval: cfg.Pressure.CriticalInterval,
		}, logger.Logger)
		if err != nil {
			logger.Warn("Memory monitor disabled", zap.Error(err))
		} else {
			s.monitor = monitor.WithMetrics(metrics)
			s.levels = make(chan types.PressureLevel, 1)
			s.loop.WithPressure(s.levels)
		}
	}

	s.engine = s.newEngine()
	logger.Info("Shell initialized", zap.Int("apps", cat.Len()))
	return s, nil
}

func (s *Server) newEngine() *gin.Engine {
	if !s.cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(s.logger.Logger))
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if s.cfg.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", s.cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", s.cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = s.cfg.RateLimit.RequestsPerSecond
		limits.Burst = s.cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limits, s.metrics))
	}

	http.NewHandlers(s.loop, s.comp, s.catalog, s.logger.Logger).
		WithOptions(s).
		WithMetrics(s.metrics, s.registry).
		Register(router)

	router.GET("/events", s.hub.HandleConnection)
	router.GET("/wm", s.bridge.HandleConnection)
	return router
}

// Handler returns the HTTP handler serving the API and both websockets
func (s *Server) Handler() stdhttp.Handler {
	return s.engine
}

// Settings converts file and API options to compositor settings
func Settings(opts config.Options) compositor.Settings {
	props := func(a config.AnimOptions) compositor.AnimProps {
		var p compositor.AnimProps
		if a.Opacity {
			p |= compositor.AnimOpacity
		}
		if a.Zoom {
			p |= compositor.AnimZoom
		}
		return p
	}
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }

	return compositor.Settings{
		Animations:    opts.Animations,
		ShowProps:     props(opts.Showing),
		ShowDuration:  ms(opts.Showing.DurationMS),
		HideProps:     props(opts.Hiding),
		HideDuration:  ms(opts.Hiding.DurationMS),
		SlideDuration: ms(opts.SlideMS),
		SyncGrace:     ms(opts.SyncGraceMS),
	}
}

// Options returns the live compositor options
func (s *Server) Options() config.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options
}

// ApplyOptions validates opts and hands them to the compositor loop
func (s *Server) ApplyOptions(ctx context.Context, opts config.Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	settings := Settings(opts)
	if err := s.loop.Call(ctx, func() { s.comp.ApplySettings(settings) }); err != nil {
		return fmt.Errorf("apply options: %w", err)
	}

	s.mu.Lock()
	s.options = opts
	s.mu.Unlock()
	s.logger.Info("Options applied",
		zap.Bool("animations", opts.Animations),
		zap.Int("show_ms", opts.Showing.DurationMS),
		zap.Int("hide_ms", opts.Hiding.DurationMS))
	return nil
}

func (s *Server) reloadOptions(ctx context.Context, path string) {
	opts, err := config.LoadOptions(path, s.Options())
	if err != nil {
		s.logger.Warn("Ignoring options file change", zap.String("path", path), zap.Error(err))
		return
	}
	if err := s.ApplyOptions(ctx, opts); err != nil {
		s.logger.Warn("Failed to apply options", zap.Error(err))
	}
}

// Run serves until ctx is cancelled or a component fails, then stops every
// running application
func (s *Server) Run(ctx context.Context) error {
	pidPath := s.cfg.Runtime.PIDPath()
	if err := os.MkdirAll(s.cfg.Runtime.Dir, 0o755); err != nil {
		return fmt.Errorf("create runtime directory: %w", err)
	}
	if err := paths.WritePIDFile(pidPath); err != nil {
		return err
	}
	defer func() {
		if err := paths.RemovePIDFile(pidPath); err != nil {
			s.logger.Warn("Failed to remove pid file", zap.String("path", pidPath), zap.Error(err))
		}
	}()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.loop.Run(ctx)
	})
	g.Go(func() error {
		if err := s.loop.Call(ctx, s.comp.AutoStart); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("auto-start: %w", err)
		}
		return nil
	})

	if s.monitor != nil {
		g.Go(func() error {
			return s.monitor.Run(ctx, s.levels)
		})
	}
	if s.webhook != nil {
		g.Go(func() error {
			return s.webhook.Run(ctx)
		})
	}
	if path := s.cfg.Animation.OptionsFile; path != "" {
		w := watcher.New(path, watcher.DefaultDebounce, func(p string) { s.reloadOptions(ctx, p) }, s.logger.Logger)
		g.Go(func() error {
			return w.Run(ctx)
		})
	}

	srv := &stdhttp.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		s.logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Runtime.ShutdownTimeout)
		defer cancel()
		s.hub.Close()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	s.Close()
	return err
}

// Close stops every running application, waiting up to the shutdown
// timeout before killing the rest. It gives killed processes one more
// timeout to be reaped and then returns regardless.
func (s *Server) Close() {
	s.logger.Info("Shutting down shell...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Runtime.ShutdownTimeout)
	defer cancel()
	s.sup.StopAll(ctx)

	waitCtx, cancelWait := context.WithTimeout(context.Background(), s.cfg.Runtime.ShutdownTimeout)
	defer cancelWait()
	if err := s.sup.Wait(waitCtx); err != nil {
		s.logger.Warn("Giving up on unreaped processes", zap.Error(err))
	}

	_ = s.logger.Sync()
}
