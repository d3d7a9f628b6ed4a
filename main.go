package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/isafetyrobo/safety-agent/api/server/config"
	alertHandlers "github.com/isafetyrobo/safety-agent/api/server/handlers/alert"
	feedHandlers "github.com/isafetyrobo/safety-agent/api/server/handlers/feed"
	healthcheckHandlers "github.com/isafetyrobo/safety-agent/api/server/handlers/healthcheck"
	incidentHandlers "github.com/isafetyrobo/safety-agent/api/server/handlers/incident"
	instanceHandlers "github.com/isafetyrobo/safety-agent/api/server/handlers/instance"
	liveHandlers "github.com/isafetyrobo/safety-agent/api/server/handlers/live"
	"github.com/isafetyrobo/safety-agent/internal/adapter"
	"github.com/isafetyrobo/safety-agent/internal/envconf"
	"github.com/isafetyrobo/safety-agent/internal/logger"
	"github.com/isafetyrobo/safety-agent/internal/repository"
	"github.com/isafetyrobo/safety-agent/pkg/alerter"
	"github.com/isafetyrobo/safety-agent/pkg/detection"
	"github.com/isafetyrobo/safety-agent/pkg/feed"
	"github.com/isafetyrobo/safety-agent/pkg/instance"
	"github.com/isafetyrobo/safety-agent/pkg/logstore/memorystore"
	"github.com/isafetyrobo/safety-agent/pkg/metrics"
	"github.com/isafetyrobo/safety-agent/pkg/pulsar"
	"github.com/isafetyrobo/safety-agent/pkg/redis"
	"github.com/isafetyrobo/safety-agent/pkg/vision"
	"github.com/joeshaw/envdecode"
)

// alertRetention bounds how long sent-alert records are kept.
const alertRetention = 30 * 24 * time.Hour

func main() {
	var envDecoderConf envconf.EnvDecoderConf = envconf.EnvDecoderConf{}

	if err := envdecode.StrictDecode(&envDecoderConf); err != nil {
		logger.NewErrorConsole(true).Fatal().Caller().Msgf("could not decode env conf: %v", err)

		os.Exit(1)
	}

	l := logger.NewConsole(envDecoderConf.Debug)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// create database connection through adapter
	db, err := adapter.New(&envDecoderConf.DBConf)

	if err != nil {
		l.Fatal().Caller().Msgf("could not create database connection: %v", err)
	}

	if err := repository.AutoMigrate(db, false); err != nil {
		l.Fatal().Caller().Msgf("auto migration failed: %v", err)
	}

	repo := repository.NewRepository(db)

	m := metrics.New("safety_agent")

	var cache feed.SnapshotCache

	switch envDecoderConf.CacheKind {
	case "memory":
		cache = feed.NewMemoryCache()
	case "redis":
		redisConf := envDecoderConf.RedisConf
		redisClient := redis.NewClient(redisConf.Host, redisConf.Port, redisConf.Username, redisConf.Password, redisConf.DB, redisConf.TTL)

		if err := redisClient.Ping(ctx); err != nil {
			l.Fatal().Caller().Msgf("could not reach redis snapshot cache: %v", err)
		}

		defer redisClient.Close()

		cache = redisClient
	default:
		cache = repo.Snapshot
	}

	incidentFeed := feed.New(
		feed.NewViolationsClient(&envDecoderConf.HTTPClientConf, envDecoderConf.FeedConf.ViolationsURL),
		cache,
		l.With("feed"),
		feed.Options{
			PageSize:     envDecoderConf.FeedConf.PageSize,
			PollInterval: envDecoderConf.FeedConf.PollInterval,
			Metrics:      m,
		},
	)

	if err := incidentFeed.LoadInitial(ctx); err != nil {
		l.Error().Caller().Msgf("starting with an empty incident list: %v", err)
	}

	logStore, err := memorystore.New("detections", memorystore.Options{
		Dir: envDecoderConf.LogStoreConf.LogStoreDir,
	})

	if err != nil {
		l.Fatal().Caller().Msgf("file-based log store setup failed: %v", err)
	}

	stream := detection.New(envDecoderConf.VisionConf.WebSocketURL, logStore, l.With("detection"), detection.Options{
		ReconnectDelay: envDecoderConf.VisionConf.ReconnectDelay,
		Metrics:        m,
	})

	defer stream.Close()

	visionClient := vision.NewClient(
		&envDecoderConf.HTTPClientConf,
		envDecoderConf.VisionConf.BaseURL,
		envDecoderConf.VisionConf.Token,
		l.With("vision"),
	)

	instances := instance.NewManager(visionClient, repo.Instance, stream, l.With("instances"), m)

	defer instances.Close()

	if err := instances.Restore(ctx); err != nil {
		l.Error().Caller().Msgf("could not restore running instances: %v", err)
	}

	if webhookURL := envDecoderConf.AlertConf.WebhookURL; webhookURL != "" {
		a := alerter.New(alerter.NewWebhookNotifier(&envDecoderConf.HTTPClientConf, webhookURL), repo.Alert, l.With("alerter"), m)
		updates, unsubscribe := incidentFeed.Subscribe()

		defer unsubscribe()

		go a.Run(ctx, updates)
	}

	go cleanupAlerts(ctx, repo, l)

	conf, err := config.GetConfig(&envDecoderConf, repo, logStore)

	if err != nil {
		l.Fatal().Caller().Msgf("server config loading failed: %v", err)
	}

	conf.Logger = l
	conf.Context = ctx
	conf.Feed = incidentFeed
	conf.Instances = instances
	conf.Vision = visionClient
	conf.Metrics = m

	if envDecoderConf.FeedConf.Autostart {
		incidentFeed.Start(ctx)
	}

	defer incidentFeed.Stop()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", envDecoderConf.ServerPort),
		Handler: newRouter(conf),
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			l.Error().Caller().Msgf("error shutting down API server: %v", err)
		}
	}()

	l.Info().Caller().Msgf("API server listening on %s", server.Addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error().Caller().Msgf("error starting API server: %v", err)
	}
}

func newRouter(conf *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Mount("/debug", middleware.Profiler())

	r.Method(http.MethodGet, "/livez", healthcheckHandlers.NewLivezHandler(conf))
	r.Method(http.MethodGet, "/readyz", healthcheckHandlers.NewReadyzHandler(conf))
	r.Method(http.MethodGet, "/metrics", conf.Metrics.Handler())

	r.Method(http.MethodGet, "/incidents", incidentHandlers.NewListIncidentsHandler(conf))
	r.Method(http.MethodGet, "/incidents/summary", incidentHandlers.NewGetSummaryHandler(conf))
	r.Method(http.MethodGet, "/incidents/notifications", incidentHandlers.NewListNotificationsHandler(conf))
	r.Method(http.MethodGet, "/incidents/{event_id}", incidentHandlers.NewGetIncidentHandler(conf))

	r.Method(http.MethodGet, "/feed", feedHandlers.NewGetStatusHandler(conf))
	r.Method(http.MethodPost, "/feed/start", feedHandlers.NewStartHandler(conf))
	r.Method(http.MethodPost, "/feed/stop", feedHandlers.NewStopHandler(conf))
	r.Method(http.MethodPost, "/feed/refresh", feedHandlers.NewRefreshHandler(conf))

	r.Method(http.MethodGet, "/instances", instanceHandlers.NewListInstancesHandler(conf))
	r.Method(http.MethodPost, "/instances/{module_id}/{instance_id}/start", instanceHandlers.NewStartInstanceHandler(conf))
	r.Method(http.MethodPost, "/instances/{instance_id}/stop", instanceHandlers.NewStopInstanceHandler(conf))
	r.Method(http.MethodGet, "/instances/{instance_id}/events", instanceHandlers.NewListInstanceEventsHandler(conf))

	r.Method(http.MethodGet, "/alerts", alertHandlers.NewListAlertsHandler(conf))

	r.Method(http.MethodGet, "/live", liveHandlers.NewGetBoardHandler(conf))
	r.Method(http.MethodPost, "/live/interact", liveHandlers.NewInteractHandler(conf))

	return r
}

// cleanupAlerts drops sent-alert records past the retention window once an
// hour until ctx is done.
func cleanupAlerts(ctx context.Context, repo *repository.Repository, l *logger.Logger) {
	p := pulsar.NewPulsar(1, time.Hour)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	for range p.Pulsate() {
		l.Info().Caller().Msgf("cleaning up old alert records")

		numDeleted, err := repo.Alert.DeleteAlertsBefore(time.Now().Add(-alertRetention))

		if err != nil {
			l.Error().Caller().Msgf("error deleting old alert records: %v", err)
			continue
		}

		l.Info().Caller().Msgf("deleted %d alert records from database", numDeleted)
	}
}
