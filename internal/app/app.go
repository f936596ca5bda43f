package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"facewatch/internal/config"
	"facewatch/internal/logger"
	"facewatch/internal/metrics"
	"facewatch/internal/middleware"
	"facewatch/internal/repository/sqlite"
	"facewatch/internal/routes"
	"facewatch/internal/services"
	"facewatch/internal/services/ai"
	"facewatch/internal/services/alert"
	"facewatch/internal/services/display"
	"facewatch/internal/services/eventlog"
	"facewatch/internal/services/motion"
	"facewatch/internal/services/notify"
	"facewatch/internal/services/recognition"
	"facewatch/internal/services/storage"
	"facewatch/internal/services/stream"
	"facewatch/internal/services/websocket"
	"facewatch/internal/supervisor"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const drainTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger *logger.Logger

	db        *sqlite.DB
	events    *eventlog.EventLog
	engine    *ai.FaceEngine
	frames    *stream.FrameSlot
	gate      *motion.Gate
	window    *display.Window
	tree      *supervisor.Tree
	closeMQTT func()
}

// NewApp wires the pipeline. Only a missing stream URL stops the process
// here.
func NewApp(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.NewLogger(cfg)
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	a := &App{config: cfg, logger: log}

	db, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open event database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		log.Error("Event database schema setup failed, events will be dropped: %v", err)
	}
	a.db = db
	repo := sqlite.NewEventRepository(db)

	a.events = eventlog.New(repo, cfg.EventQueueSize, log.With("eventlog"), m)

	engine, catalog := loadRecognition(cfg, log)
	if fe, ok := engine.(*ai.FaceEngine); ok {
		a.engine = fe
	}
	log.Info("System Active. Monitoring %d known identities.", len(catalog.Names()))
	matcher := recognition.NewMatcher(engine, catalog, cfg.MatchThreshold, log.With("matcher"), m)

	a.gate = motion.NewGate(cfg.MotionThreshold, cfg.MotionIdleWindow)
	evidence := storage.NewEvidenceService(cfg.UnknownDir, log.With("evidence"))
	throttle := alert.NewThrottle(cfg.LogCooldown, cfg.UnknownCooldown, a.events, evidence, log.With("alert"), m)

	if cfg.MQTTBroker != "" {
		notifier, closeFn, err := notify.Connect(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic, log.With("mqtt"))
		if err != nil {
			log.Warning("MQTT alerts disabled: %v", err)
		} else {
			throttle.AddNotifier(notifier)
			a.closeMQTT = closeFn
		}
	}

	a.frames = stream.NewFrameSlot()
	source := stream.NewService(cfg.StreamURL, stream.OpenVideoCapture, a.frames, cfg.ReconnectDelay, log.With("stream"), m)

	results := services.NewResultSlot()
	manager := services.NewManager(a.frames, a.gate, matcher, throttle, results, cfg.AnalysisInterval, cfg.FramePollInterval, log.With("analysis"), m)

	compositor := display.NewCompositor(a.frames, results)
	hub := websocket.NewHubService(log.With("viewer"))
	broadcaster := display.NewBroadcaster(compositor, hub, cfg.DisplayFPS, log.With("viewer"))
	if cfg.DisplayWindow {
		a.window = display.NewWindow(compositor, cfg.DisplayFPS, log.With("window"))
	}

	a.tree = supervisor.NewTree(log.With("supervisor"), supervisor.DefaultTreeConfig())
	a.tree.AddCaptureService(source)
	a.tree.AddAnalysisService(manager)
	a.tree.AddPresentationService(hub)
	a.tree.AddPresentationService(broadcaster)

	if cfg.Port > 0 {
		router := routes.SetupRoutes(routes.Dependencies{
			Config:   cfg,
			Logger:   log.With("http"),
			Auth:     middleware.NewAuth(cfg.ViewerPassword),
			Hub:      hub,
			Results:  results,
			Frames:   a.frames,
			Events:   repo,
			Gatherer: registry,
		})
		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		a.tree.AddPresentationService(supervisor.NewHTTPServerService(server, drainTimeout))
	}

	return a, nil
}

// Run starts the pipeline and blocks until ctx is cancelled or the local
// window is closed with 'q'. It must be called from the main goroutine when
// the window is enabled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.events.Start()
	treeDone := a.tree.ServeBackground(ctx)

	a.logger.Info("Security Camera Server started")
	a.logger.Info("Stream: %s", a.config.StreamURL)
	if a.config.Port > 0 {
		a.logger.Info("URL: http://localhost:%d", a.config.Port)
	}
	if a.config.ViewerPassword == "" && a.config.Port > 0 {
		a.logger.Warning("VIEWER_PASSWORD is empty, the viewer API is open")
	}

	var runErr error
	if a.window != nil {
		if err := a.window.Run(ctx); err != nil && !errors.Is(err, display.ErrQuit) {
			runErr = err
		}
		a.logger.Info("Shutting down...")
		cancel()
	} else {
		<-ctx.Done()
		a.logger.Info("Shutting down...")
	}

	if err := <-treeDone; err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Supervisor stopped with error: %v", err)
	}
	if report, err := a.tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			a.logger.Warning("Service did not stop in time: %s", svc.Name)
		}
	}

	a.close()
	return runErr
}

// loadRecognition loads the face models and the identity catalog. Without
// models, recognition is disabled and the signature cache is left untouched.
func loadRecognition(cfg *config.Config, log *logger.Logger) (recognition.Engine, *recognition.Catalog) {
	engine, err := ai.NewFaceEngine(cfg.ModelDir, log.With("engine"))
	if err != nil {
		log.Error("Face recognition disabled: %v", err)
		return recognition.DisabledEngine{}, recognition.NewCatalog(nil, nil)
	}

	builder := recognition.NewBuilder(engine, nil, log.With("catalog"))
	return engine, builder.LoadOrBuild(cfg.CacheFile, cfg.KnownFacesDir)
}

func (a *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := a.events.Shutdown(ctx); err != nil {
		a.logger.Warning("Event log not drained: %v", err)
	}
	if a.closeMQTT != nil {
		a.closeMQTT()
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing event database: %v", err)
	}
	if a.engine != nil {
		a.engine.Close()
	}
	a.gate.Close()
	a.frames.Close()
}
