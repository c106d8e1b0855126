// cmd/request-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	awsclient "servicedesk/internal/common/aws"
	"servicedesk/internal/common/camunda"
	"servicedesk/internal/common/config"
	"servicedesk/internal/common/database"
	"servicedesk/internal/common/logger"
	"servicedesk/internal/common/observability"
	"servicedesk/internal/models"

	"servicedesk/internal/assignment"
	"servicedesk/internal/directory"
	"servicedesk/internal/events"
	"servicedesk/internal/notification/delivery"
	"servicedesk/internal/notification/dispatcher"
	"servicedesk/internal/notification/preferences"
	"servicedesk/internal/notification/textgen"
	"servicedesk/internal/search"
	"servicedesk/internal/servicerequest"

	aw "servicedesk/internal/workers/servicerequest/assign-worker"
	cs "servicedesk/internal/workers/servicerequest/change-status"
	cr "servicedesk/internal/workers/servicerequest/create-request"
	sr "servicedesk/internal/workers/servicerequest/search-requests"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// stores groups the persistence backends selected by app.store.
type stores struct {
	requests    servicerequest.Store
	directory   directory.Source
	preferences preferences.Store
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting request manager...",
		zap.String("version", cfg.App.Version),
		zap.String("store", cfg.App.Store),
	)

	obs := observability.New(cfg.App.Name, log)
	defer func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			zapLog.Error("observability shutdown failed", zap.Error(err))
		}
	}()

	ctx := context.Background()

	// --- Redis (caches + in-app inbox) ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Stores ---
	var pg *database.PostgresClient
	var st stores
	switch cfg.App.Store {
	case config.StorePostgres:
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			zapLog.Fatal("schema migration failed", zap.Error(err))
		}
		zapLog.Info("PostgreSQL connected successfully")

		st = stores{
			requests:    servicerequest.NewPostgresStore(pg.DB),
			directory:   directory.NewPostgres(pg.DB),
			preferences: preferences.NewPostgresStore(pg.DB),
		}
	default:
		zapLog.Warn("using in-memory stores, data is lost on restart",
			zap.Int("seededWorkers", len(cfg.Directory.Workers)))
		if len(cfg.Directory.Workers) == 0 {
			zapLog.Warn("directory.workers is empty, every assignment will fail with NOT_FOUND")
		}
		st = stores{
			requests:    servicerequest.NewMemoryStore(),
			directory:   directory.NewMemoryFromConfig(cfg.Directory),
			preferences: preferences.NewMemoryStore(),
		}
	}

	cacheTTL := config.GetDuration(cfg.Database.Redis.CacheTTL)
	dir := directory.NewCached(st.directory, rdb.Client, cacheTTL, log)
	prefs := preferences.NewCachedStore(st.preferences, rdb.Client, cacheTTL, log)

	// --- Delivery channels ---
	router := delivery.NewRouter(log).
		Register(models.ChannelInApp, delivery.NewInboxChannel(rdb.Client, cfg.Notifications.InboxSize))

	if cfg.Integrations.AWS.SES.Enabled || cfg.Integrations.AWS.SNS.Enabled {
		awsCfg, err := awsclient.LoadConfig(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("aws config load failed", zap.Error(err))
		}
		if cfg.Integrations.AWS.SES.Enabled {
			router.Register(models.ChannelEmail,
				delivery.NewEmailChannel(awsclient.NewSESClient(awsCfg), dir, cfg.Integrations.AWS.SES.FromEmail))
		}
		if cfg.Integrations.AWS.SNS.Enabled {
			router.Register(models.ChannelSMS,
				delivery.NewSMSChannel(awsclient.NewSNSClient(awsCfg), dir, cfg.Integrations.AWS.SNS.DefaultSMSSenderID))
		}
		zapLog.Info("AWS delivery channels initialized",
			zap.Bool("ses", cfg.Integrations.AWS.SES.Enabled),
			zap.Bool("sns", cfg.Integrations.AWS.SNS.Enabled),
		)
	}

	// --- Notification dispatcher ---
	dispatchOpts := []dispatcher.Option{
		dispatcher.WithPropertyDirectory(dir),
		dispatcher.WithDefaultTimezone(cfg.Notifications.DefaultTimezone),
	}
	if cfg.APIs.GenAI.Enabled {
		gen := textgen.NewGenAIClient(textgen.Config{
			BaseURL: cfg.APIs.GenAI.BaseURL,
			APIKey:  cfg.APIs.GenAI.APIKey,
		}, log)
		dispatchOpts = append(dispatchOpts,
			dispatcher.WithTextGenerator(gen, config.GetDuration(cfg.Notifications.TextGenTimeout)))
		zapLog.Info("text generation enabled", zap.String("baseUrl", cfg.APIs.GenAI.BaseURL))
	}

	// Every bus subscriber runs behind its own queue so a slow collaborator
	// never holds up the mutation that published the event. Search and Zeebe
	// get one worker each to keep their per-request order.
	var sinks []*events.AsyncSink
	async := func(name string, next models.EventSink, workers int) *events.AsyncSink {
		s := events.NewAsyncSink(name, next, workers, cfg.Notifications.QueueSize, log)
		sinks = append(sinks, s)
		return s
	}

	bus := events.NewBus(log)

	// --- Elasticsearch ---
	var esClient *database.ElasticsearchClient
	var indexer *search.Indexer
	if cfg.Database.Elasticsearch.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		if err := esClient.EnsureIndex(ctx, cfg.Search.Index, search.Mapping); err != nil {
			zapLog.Fatal("search index setup failed", zap.Error(err))
		}
		indexer = search.NewIndexer(esClient.Client, cfg.Search.Index, log)
		bus.Subscribe("search", async("search", indexer, 1))
		zapLog.Info("Elasticsearch connected successfully", zap.String("index", cfg.Search.Index))
	}

	// --- Zeebe ---
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		bus.Subscribe("zeebe", async("zeebe", camunda.NewMessageSink(zeebe, log), 1))
		zapLog.Info("Zeebe client connected successfully")
	}

	bus.Subscribe("notifications", async("notifications",
		dispatcher.New(prefs, router, dir, log, dispatchOpts...),
		cfg.Notifications.AsyncWorkers))

	// --- Lifecycle core ---
	registry := servicerequest.NewRegistry(st.requests, bus, log,
		servicerequest.WithObservability(obs))
	coordinator := assignment.NewCoordinator(st.requests, dir, bus, log,
		assignment.WithObservability(obs))

	// --- Job workers ---
	var workers []*camunda.CamundaWorker
	if zeebe != nil {
		zc := zeebe.GetClient()

		if wc := cr.FromAppConfig(cfg); wc.Enabled {
			if err := wc.Validate(); err != nil {
				zapLog.Fatal("invalid worker config", zap.String("taskType", cr.TaskType), zap.Error(err))
			}
			workers = append(workers, camunda.NewWorker(zc, cr.TaskType, wc.MaxJobsActive, wc.Timeout,
				cr.NewHandler(wc, registry, log), log))
		}
		if wc := cs.FromAppConfig(cfg); wc.Enabled {
			if err := wc.Validate(); err != nil {
				zapLog.Fatal("invalid worker config", zap.String("taskType", cs.TaskType), zap.Error(err))
			}
			workers = append(workers, camunda.NewWorker(zc, cs.TaskType, wc.MaxJobsActive, wc.Timeout,
				cs.NewHandler(wc, registry, log), log))
		}
		if wc := aw.FromAppConfig(cfg); wc.Enabled {
			if err := wc.Validate(); err != nil {
				zapLog.Fatal("invalid worker config", zap.String("taskType", aw.TaskType), zap.Error(err))
			}
			workers = append(workers, camunda.NewWorker(zc, aw.TaskType, wc.MaxJobsActive, wc.Timeout,
				aw.NewHandler(wc, coordinator, log), log))
		}
		if wc := sr.FromAppConfig(cfg); wc.Enabled && indexer != nil {
			if err := wc.Validate(); err != nil {
				zapLog.Fatal("invalid worker config", zap.String("taskType", sr.TaskType), zap.Error(err))
			}
			workers = append(workers, camunda.NewWorker(zc, sr.TaskType, wc.MaxJobsActive, wc.Timeout,
				sr.NewHandler(wc, indexer, log), log))
		}

		for _, w := range workers {
			w.Start()
		}
		zapLog.Info("Workers registered", zap.Int("count", len(workers)))
	}

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"time": time.Now().Format(time.RFC3339)}
		code := http.StatusOK

		check := func(name string, ping func(context.Context) error) {
			pctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(pctx); err != nil {
				checks[name] = err.Error()
				code = http.StatusServiceUnavailable
				return
			}
			checks[name] = "ok"
		}
		check("redis", rdb.Ping)
		if pg != nil {
			check("postgres", pg.Ping)
		}
		if esClient != nil {
			check("elasticsearch", esClient.Ping)
		}
		if zeebe != nil {
			check("zeebe", zeebe.HealthCheck)
		}

		checks["status"] = "ready"
		if code != http.StatusOK {
			checks["status"] = "not_ready"
		}
		writeStatus(w, code, checks)
	})
	if cfg.Metrics.Enabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	server := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop(shutdownCtx)
	}
	for _, s := range sinks {
		if err := s.Close(shutdownCtx); err != nil {
			zapLog.Warn("event sink queue not fully drained", zap.Error(err))
		}
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Health/Metrics server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Request manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
