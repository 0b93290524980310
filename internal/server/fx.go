// Package server provides the core application server and dependency wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/dictgen/internal/api"
	"github.com/JakeFAU/dictgen/internal/clock/system"
	"github.com/JakeFAU/dictgen/internal/config"
	"github.com/JakeFAU/dictgen/internal/dictionary"
	"github.com/JakeFAU/dictgen/internal/events"
	eventsinks "github.com/JakeFAU/dictgen/internal/events/sinks"
	"github.com/JakeFAU/dictgen/internal/fetcher/wordapi"
	"github.com/JakeFAU/dictgen/internal/hash/sha256"
	"github.com/JakeFAU/dictgen/internal/id/uuid"
	"github.com/JakeFAU/dictgen/internal/jobs"
	"github.com/JakeFAU/dictgen/internal/limiter"
	"github.com/JakeFAU/dictgen/internal/logging"
	"github.com/JakeFAU/dictgen/internal/metrics"
	"github.com/JakeFAU/dictgen/internal/orchestrator"
	"github.com/JakeFAU/dictgen/internal/policy/ratelimit"
	"github.com/JakeFAU/dictgen/internal/registry"
	gcsstorage "github.com/JakeFAU/dictgen/internal/storage/gcs"
	localstorage "github.com/JakeFAU/dictgen/internal/storage/local"
	memorystorage "github.com/JakeFAU/dictgen/internal/storage/memory"
	pgstore "github.com/JakeFAU/dictgen/internal/storage/postgres"
)

// App contains the application's dependencies.
type App struct {
	cfg          *config.Config
	logger       *zap.Logger
	apiServer    *api.Server
	manager      *jobs.Manager
	limiter      *limiter.Limiter
	eventHub     *events.Hub
	pubsubClient *pubsub.Client
	storage      *storage.Client
	pgStore      *pgstore.ArtifactStore
}

// Option customises Build.
type Option func(*buildOptions)

type buildOptions struct {
	logger        *zap.Logger
	registerer    prometheus.Registerer
	httpClient    *http.Client
	gcsOptions    []option.ClientOption
	pubsubOptions []option.ClientOption
}

// WithLogger replaces the logger built from configuration.
func WithLogger(logger *zap.Logger) Option {
	return func(o *buildOptions) { o.logger = logger }
}

// WithRegisterer registers event collectors on reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *buildOptions) { o.registerer = reg }
}

// WithHTTPClient sets the client used for outbound word requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *buildOptions) { o.httpClient = client }
}

// WithGCSOptions passes client options to the Cloud Storage client.
func WithGCSOptions(opts ...option.ClientOption) Option {
	return func(o *buildOptions) { o.gcsOptions = append(o.gcsOptions, opts...) }
}

// WithPubSubOptions passes client options to the Pub/Sub client.
func WithPubSubOptions(opts ...option.ClientOption) Option {
	return func(o *buildOptions) { o.pubsubOptions = append(o.pubsubOptions, opts...) }
}

// Run serves on the configured address until SIGINT/SIGTERM or ctx ends.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Addr(), err)
	}
	return a.Serve(ctx, ln)
}

// Serve reconstructs the registry from storage, serves HTTP on ln and shuts
// everything down once ctx ends.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	if _, err := a.manager.Reconstruct(ctx); err != nil {
		_ = ln.Close()
		a.Close(context.Background())
		return err
	}
	a.apiServer.SetReady(true)

	srv := &http.Server{
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			a.logger.Error("http server error", zap.Error(err))
			runErr = fmt.Errorf("http server: %w", err)
		}
	}
	a.logger.Info("shutdown initiated")
	a.apiServer.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	if err := a.manager.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("outstanding runs cancelled", zap.Error(err))
	}
	a.Close(shutdownCtx)
	return runErr
}

// Close releases infrastructure clients and flushes observability.
func (a *App) Close(ctx context.Context) {
	a.closeInfrastructure(ctx)
	a.closeObservability()
	a.logger.Info("shutdown complete")
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.eventHub != nil {
		if err := a.eventHub.Close(ctx); err != nil {
			a.logger.Warn("event hub close failed", zap.Error(err))
		}
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
}

func (a *App) closeObservability() {
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
}

// Handler exposes the API router.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.Build(logging.Options{
			Development: cfg.Logging.Development,
			Level:       cfg.Logging.Level,
		})
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
		zap.ReplaceGlobals(logger)
	}
	metrics.Init()

	app := &App{cfg: cfg, logger: logger}
	app.logger.Info("building application dependencies",
		zap.String("addr", cfg.Addr()),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("event_sink", cfg.Events.Sink),
		zap.Int("max_concurrent_requests", cfg.Limiter.MaxConcurrentRequests),
	)

	store, err := setupStorage(ctx, app, o.gcsOptions)
	if err != nil {
		app.closeInfrastructure(ctx)
		return nil, err
	}

	if err := setupEvents(ctx, app, o); err != nil {
		app.closeInfrastructure(ctx)
		return nil, err
	}

	app.limiter, err = limiter.New(cfg.Limiter.MaxConcurrentRequests)
	if err != nil {
		app.closeInfrastructure(ctx)
		return nil, fmt.Errorf("limiter init failed: %w", err)
	}
	pacer := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		Burst:             cfg.Fetch.Burst,
	})
	if pacer.Enabled() {
		app.logger.Info("outbound pacing enabled",
			zap.Float64("requests_per_second", cfg.Fetch.RequestsPerSecond),
			zap.Int("burst", cfg.Fetch.Burst),
		)
	}

	fetcher := wordapi.New(wordapi.Config{
		URL:       cfg.Fetch.URL,
		UserAgent: cfg.Fetch.UserAgent,
	}, o.httpClient)
	runner := orchestrator.New(fetcher, app.limiter, pacer, orchestrator.Config{
		FetchTimeout: cfg.FetchTimeout(),
	}, logger)

	var emitter events.Emitter
	if app.eventHub != nil {
		emitter = app.eventHub
	}
	app.manager, err = jobs.New(jobs.Deps{
		Registry: registry.New(),
		Runner:   runner,
		Store:    store,
		Events:   emitter,
		Clock:    system.New(),
		IDs:      uuid.New(),
		Hasher:   sha256.New(),
		Logger:   logger,
	}, jobs.Config{MaxWordCount: cfg.Fetch.MaxWordCount})
	if err != nil {
		app.closeInfrastructure(ctx)
		return nil, fmt.Errorf("job manager init failed: %w", err)
	}

	app.apiServer = api.NewServer(app.manager, *cfg, logger)
	return app, nil
}

func setupStorage(ctx context.Context, app *App, gcsOpts []option.ClientOption) (dictionary.ArtifactStore, error) {
	switch app.cfg.Storage.Backend {
	case config.BackendGCS:
		app.logger.Info("using GCS storage backend")
		client, err := storage.NewClient(ctx, gcsOpts...)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storage = client
		store, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket: app.cfg.Storage.GCS.Bucket,
			Prefix: app.cfg.Storage.GCS.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs artifact store init failed: %w", err)
		}
		app.logger.Debug("GCS storage backend",
			zap.String("bucket", app.cfg.Storage.GCS.Bucket),
			zap.String("prefix", app.cfg.Storage.GCS.Prefix))
		return store, nil
	case config.BackendPostgres:
		app.logger.Info("using postgres storage backend")
		store, err := pgstore.New(ctx, pgstore.Config{
			DSN:      app.cfg.Storage.Postgres.DSN,
			Table:    app.cfg.Storage.Postgres.Table,
			MaxConns: app.cfg.Storage.Postgres.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres artifact store init failed: %w", err)
		}
		app.pgStore = store
		return store, nil
	case config.BackendMemory:
		app.logger.Info("using in-memory storage backend")
		return memorystorage.NewArtifactStore(), nil
	default:
		app.logger.Info("using local storage backend")
		store, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Storage.Local.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local artifact store init failed: %w", err)
		}
		app.logger.Debug("local storage backend", zap.String("path", app.cfg.Storage.Local.BaseDir))
		return store, nil
	}
}

func setupEvents(ctx context.Context, app *App, o buildOptions) error {
	promSink, err := eventsinks.NewPrometheusSink(o.registerer)
	if err != nil {
		return fmt.Errorf("event metrics init failed: %w", err)
	}
	sinkList := []events.Sink{promSink}

	switch app.cfg.Events.Sink {
	case config.SinkLog:
		sinkList = append(sinkList, eventsinks.NewLogSink(app.logger.Named("events_log")))
		app.logger.Debug("added event log sink")
	case config.SinkPubSub:
		ps := app.cfg.Events.PubSub
		app.pubsubClient, err = pubsub.NewClient(ctx, ps.ProjectID, o.pubsubOptions...)
		if err != nil {
			return fmt.Errorf("pubsub client init failed: %w", err)
		}
		sink, err := eventsinks.NewPubSubSink(app.pubsubClient.Topic(ps.TopicID))
		if err != nil {
			return fmt.Errorf("pubsub sink init failed: %w", err)
		}
		sinkList = append(sinkList, sink)
		app.logger.Info("Pub/Sub event sink initialized",
			zap.String("project", ps.ProjectID),
			zap.String("topic", ps.TopicID),
		)
	default:
		app.logger.Info("external event sink disabled")
	}

	hubCfg := events.Config{
		BufferSize:  app.cfg.Events.BufferSize,
		BaseContext: context.WithoutCancel(ctx),
		Logger:      app.logger.Named("events_hub"),
	}
	app.eventHub = events.NewHub(hubCfg, sinkList...)
	app.logger.Info("event hub initialized", zap.Int("sinks", len(sinkList)))
	return nil
}
