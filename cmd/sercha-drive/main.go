package main

// @title           Sercha Drive API
// @version         1.0
// @description     Keeps a vector index in sync with Google Drive through push notifications and serves access-controlled retrieval over it.

// @contact.name   Sercha OSS
// @contact.url    https://github.com/custodia-labs/sercha-drive/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	_ "github.com/custodia-labs/sercha-drive/docs"
	"github.com/custodia-labs/sercha-drive/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-drive/internal/adapters/driven/archive"
	"github.com/custodia-labs/sercha-drive/internal/adapters/driven/auth"
	"github.com/custodia-labs/sercha-drive/internal/adapters/driven/gdrive"
	"github.com/custodia-labs/sercha-drive/internal/adapters/driven/ingest"
	"github.com/custodia-labs/sercha-drive/internal/adapters/driven/postgres"
	"github.com/custodia-labs/sercha-drive/internal/adapters/driven/qdrant"
	postgresqueue "github.com/custodia-labs/sercha-drive/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/custodia-labs/sercha-drive/internal/adapters/driven/queue/redis"
	redisadapter "github.com/custodia-labs/sercha-drive/internal/adapters/driven/redis"
	"github.com/custodia-labs/sercha-drive/internal/adapters/driven/vespa"
	"github.com/custodia-labs/sercha-drive/internal/adapters/driving/http"
	"github.com/custodia-labs/sercha-drive/internal/config"
	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-drive/internal/core/services"
	"github.com/custodia-labs/sercha-drive/internal/normalisers"
	"github.com/custodia-labs/sercha-drive/internal/postprocessors"
	"github.com/custodia-labs/sercha-drive/internal/runtime"
	"github.com/custodia-labs/sercha-drive/internal/worker"
)

var version = "dev"

// pingFunc adapts a health check function to http.Pinger
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		os.Exit(1)
	}
	// Command line argument overrides RUN_MODE
	if len(os.Args) > 1 {
		cfg.Mode = os.Args[1]
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
			os.Exit(1)
		}
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("sercha-drive exited", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler).With("service", "sercha-drive", "version", version)
}

func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting", "mode", cfg.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ===== PostgreSQL =====
	dbConfig := postgres.DefaultConfig(cfg.Database.URL)
	dbConfig.MaxOpenConns = cfg.Database.MaxOpenConns
	dbConfig.MaxIdleConns = cfg.Database.MaxIdleConns
	dbConfig.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	dbConfig.ConnMaxIdleTime = cfg.Database.ConnMaxIdleTime
	dbConfig.Logger = logger
	db, err := postgres.Connect(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	logger.Info("postgres connected and schema initialized")

	// ===== Redis (optional) =====
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisClient.Close()
		logger.Info("redis connected")
	}

	// ===== Vector index =====
	var vectorIndex driven.VectorIndex
	var qdrantIndex *qdrant.Index
	switch cfg.Index.Backend {
	case config.IndexVespa:
		vectorIndex = vespa.NewIndex(vespa.DefaultConfig(cfg.Index.VespaURL))
	case config.IndexQdrant:
		qdrantIndex = qdrant.NewIndex(qdrant.Config{
			URL:        cfg.Index.QdrantURL,
			APIKey:     cfg.Index.QdrantAPIKey,
			Collection: cfg.Index.QdrantCollection,
		})
		vectorIndex = qdrantIndex
	default:
		vectorIndex = postgres.NewChunkIndex(db)
	}
	if err := vectorIndex.HealthCheck(ctx); err != nil {
		logger.Warn("vector index health check failed, retrieval and ingestion may fail",
			"backend", cfg.Index.Backend, "error", err)
	}

	// ===== Task queue, lock and notification de-duplication =====
	queueBackend := cfg.QueueBackend()
	var taskQueue driven.TaskQueue
	switch queueBackend {
	case config.QueueRedis:
		q, err := redisqueue.NewQueue(ctx, redisClient, redisqueue.QueueConfig{
			Prefix:       cfg.Redis.Prefix,
			ConsumerName: consumerName(),
			Logger:       logger,
		})
		if err != nil {
			return fmt.Errorf("create task queue: %w", err)
		}
		taskQueue = q
	case config.QueuePostgres:
		taskQueue = postgresqueue.NewQueue(db.DB)
	}
	logger.Info("task queue selected", "backend", queueBackend)

	var lock driven.DistributedLock
	var kv driven.KeyValueStore
	if redisClient != nil {
		lock = redisadapter.NewLock(redisClient, cfg.Redis.Prefix)
		kv = redisadapter.NewKVStore(redisClient, cfg.Redis.Prefix)
	} else {
		lock = postgres.NewAdvisoryLock(db)
		logger.Info("redis not configured, notification de-duplication disabled")
	}

	// ===== Drive =====
	files, err := gdrive.New(ctx, gdrive.Config{
		CredentialsFile: cfg.Drive.CredentialsFile,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("create drive client: %w", err)
	}

	var objectArchive driven.ObjectArchive
	if cfg.Archive.Enabled() {
		s3, err := archive.NewS3Archive(ctx, archive.Config{
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
			Prefix:    cfg.Archive.Prefix,
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Logger:    logger,
		})
		if err != nil {
			return fmt.Errorf("create archive: %w", err)
		}
		objectArchive = s3
		logger.Info("archiving ingested files", "bucket", cfg.Archive.Bucket)
	}

	// ===== AI services =====
	runtimeConfig := domain.NewRuntimeConfig(cfg.Index.Backend, queueBackend)
	runtimeServices := runtime.NewServices(runtimeConfig)
	defer runtimeServices.Close()
	if err := runtimeServices.Configure(ctx, ai.NewFactory(), cfg.AI, logger); err != nil {
		logger.Warn("ai services not fully configured", "error", err)
	}
	logger.Info("runtime config",
		"index_backend", runtimeConfig.IndexBackend,
		"queue_backend", runtimeConfig.QueueBackend,
		"can_ingest", runtimeConfig.CanIngest(),
		"can_answer", runtimeConfig.CanAnswer(),
	)

	dims := cfg.AI.Embedding.Dimensions
	if emb := runtimeServices.EmbeddingService(); dims <= 0 && emb != nil {
		dims = emb.Dimensions()
	}
	if qdrantIndex != nil {
		if err := qdrantIndex.Init(ctx, dims); err != nil {
			logger.Warn("qdrant collection not initialized", "error", err)
		}
	}
	if cfg.Index.Backend == config.IndexVespa && cfg.Index.VespaConfigURL != "" {
		if err := vespa.NewDeployer().Deploy(ctx, cfg.Index.VespaConfigURL, dims); err != nil {
			logger.Warn("vespa schema not deployed", "error", err)
		} else {
			logger.Info("vespa schema deployed", "dimensions", dims)
		}
	}

	ingestion := ingest.NewService(ingest.Config{
		Embedders:   runtimeServices,
		Normalisers: normalisers.DefaultRegistry(),
		Pipeline: postprocessors.DefaultPipeline(postprocessors.ChunkConfig{
			Size:    cfg.Sync.ChunkSize,
			Overlap: cfg.Sync.ChunkOverlap,
		}),
		BatchSize: cfg.Sync.EmbedBatchSize,
		Logger:    logger,
	})

	// ===== Core services =====
	access := services.NewAccessController(logger)

	tracker := services.NewSyncStateTracker(services.SyncStateTrackerConfig{
		Store:  postgres.NewSyncRecordStore(db),
		Logger: logger,
	})

	registry := services.NewChannelRegistry(services.ChannelRegistryConfig{
		Store:      postgres.NewChannelStore(db),
		Files:      files,
		Logger:     logger,
		Prefix:     cfg.Drive.ChannelPrefix,
		Token:      cfg.Drive.WebhookToken,
		WebhookURL: cfg.Drive.WebhookURL,
		TTL:        cfg.Drive.ChannelTTL,
	})

	syncer := services.NewDocumentSync(services.DocumentSyncConfig{
		Tracker:     tracker,
		Files:       files,
		Index:       vectorIndex,
		Ingestion:   ingestion,
		Access:      access,
		Archive:     objectArchive,
		Logger:      logger,
		TempDir:     cfg.Sync.TempDir,
		Concurrency: cfg.Sync.Concurrency,
	})

	retry := services.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.Sync.RetryAttempts
	retry.BaseDelay = cfg.Sync.RetryBaseDelay
	preDelay := cfg.Sync.PreDelay
	processor := services.NewNotificationProcessor(services.NotificationProcessorConfig{
		Registry:   registry,
		Syncer:     syncer,
		Files:      files,
		KV:         kv,
		Queue:      taskQueue,
		Logger:     logger,
		Token:      cfg.Drive.WebhookToken,
		Retry:      &retry,
		PreDelay:   &preDelay,
		ScanWindow: cfg.Sync.ScanWindow,
		DedupeTTL:  cfg.Sync.DedupeTTL,
	})
	defer processor.Wait()

	retrieval := services.NewRetrievalService(services.RetrievalServiceConfig{
		Services:     runtimeServices,
		Index:        vectorIndex,
		Access:       access,
		Audit:        postgres.NewAuditLog(db),
		Logger:       logger,
		TopKPre:      cfg.Retrieval.TopKPre,
		TopKPost:     cfg.Retrieval.TopKPost,
		SnippetChars: cfg.Retrieval.SnippetChars,
	})

	var authService driving.AuthService
	if cfg.Auth.JWTSecret != "" {
		authService = services.NewAuthService(auth.NewAdapter(cfg.Auth.JWTSecret, cfg.Auth.Issuer))
	} else {
		logger.Warn("JWT_SECRET not set, authenticated routes will answer 503")
	}

	var renewer *services.ChannelRenewer
	if cfg.Renewal.Enabled {
		renewer = services.NewChannelRenewer(services.ChannelRenewerConfig{
			Registry:  registry,
			Lock:      lock,
			Logger:    logger,
			Interval:  cfg.Renewal.Interval,
			Threshold: cfg.Renewal.Threshold,
		})
	}

	// ===== Run =====
	runAPI := cfg.Mode == config.ModeAPI || cfg.Mode == config.ModeAll
	runWorker := cfg.Mode == config.ModeWorker || cfg.Mode == config.ModeAll

	checks := map[string]http.Pinger{
		"database": db,
		"index":    pingFunc(vectorIndex.HealthCheck),
	}
	if redisClient != nil {
		checks["redis"] = pingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	if runWorker {
		if taskQueue == nil {
			logger.Warn("inline queue selected, nothing for the worker to consume")
		} else {
			w := worker.NewWorker(worker.WorkerConfig{
				TaskQueue:        taskQueue,
				Notifications:    processor,
				Syncer:           syncer,
				Channels:         registry,
				Background:       backgroundOf(renewer),
				Logger:           logger,
				Concurrency:      cfg.Queue.Concurrency,
				DequeueTimeout:   cfg.Queue.DequeueTimeout,
				ScanWindow:       cfg.Sync.ScanWindow,
				RenewalThreshold: cfg.Renewal.Threshold,
			})
			if err := w.Start(ctx); err != nil {
				return fmt.Errorf("start worker: %w", err)
			}
			defer w.Stop()
			checks["worker"] = w
		}
	}

	// With the inline queue there is no worker, so the renewal loop runs here
	if renewer != nil && taskQueue == nil {
		if err := renewer.Start(ctx); err != nil {
			return fmt.Errorf("start channel renewer: %w", err)
		}
		defer renewer.Stop()
	}

	if runAPI {
		ensureChannels(ctx, cfg, registry, syncer, taskQueue, logger)

		server := http.NewServer(http.Config{
			Host:              cfg.Host,
			Port:              cfg.Port,
			Version:           version,
			AllowedOrigins:    cfg.AllowedOrigins,
			WebhookURL:        cfg.Drive.WebhookURL,
			DefaultScanWindow: cfg.Sync.ScanWindow,
			RenewalThreshold:  cfg.Renewal.Threshold,
			Logger:            logger,
		}, http.Dependencies{
			Auth:          authService,
			Notifications: processor,
			Channels:      registry,
			Tracker:       tracker,
			Syncer:        syncer,
			Retrieval:     retrieval,
			Access:        access,
			Runtime:       runtimeConfig,
			Queue:         taskQueue,
			Checks:        checks,
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Start(ctx); err != nil {
				errCh <- err
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received, stopping")
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ensureChannels registers a channel for every watched folder that has no
// active one, then schedules an initial scan so changes made while the
// service was down are picked up.
func ensureChannels(
	ctx context.Context,
	cfg *config.Config,
	registry driving.ChannelRegistry,
	syncer driving.DocumentSyncer,
	taskQueue driven.TaskQueue,
	logger *slog.Logger,
) {
	for _, folderID := range cfg.Drive.WatchFolderIDs {
		log := logger.With("folder_id", folderID)

		if cfg.Drive.WatchRecursive {
			report, err := registry.WatchTree(ctx, folderID, cfg.Drive.WebhookURL)
			if err != nil {
				log.Error("failed to watch folder tree", "error", err)
				continue
			}
			if report.Failed > 0 {
				log.Warn("some folders are not watched", "failed", report.Failed, "errors", report.Errors)
			}
			scanInitial(ctx, cfg, syncer, taskQueue, folderID, log)
			continue
		}

		channel, err := registry.GetActiveForFolder(ctx, folderID)
		switch {
		case err == nil && !channel.ExpiresWithin(time.Now(), 0):
			log.Info("folder already watched", "channel_id", channel.ChannelID)
		case err == nil || errors.Is(err, domain.ErrNotFound):
			channel, err = registry.Create(ctx, folderID, cfg.Drive.WebhookURL)
			if err != nil {
				log.Error("failed to create channel", "error", err)
				continue
			}
			log.Info("channel created", "channel_id", channel.ChannelID, "expires_at", channel.Expiration)
		default:
			log.Error("failed to look up channel", "error", err)
			continue
		}

		scanInitial(ctx, cfg, syncer, taskQueue, folderID, log)
	}
}

// scanInitial catches up on changes made while no channel was listening
func scanInitial(
	ctx context.Context,
	cfg *config.Config,
	syncer driving.DocumentSyncer,
	taskQueue driven.TaskQueue,
	folderID string,
	log *slog.Logger,
) {
	if taskQueue != nil {
		if err := taskQueue.Enqueue(ctx, domain.NewScanFolderTask(folderID, cfg.Sync.ScanWindow)); err != nil {
			log.Error("failed to enqueue initial scan", "error", err)
		}
		return
	}
	go func() {
		scanCtx := context.WithoutCancel(ctx)
		if _, err := syncer.ScanFolder(scanCtx, folderID, cfg.Sync.ScanWindow); err != nil {
			log.Error("initial scan failed", "error", err)
		}
	}()
}

// backgroundOf avoids handing the worker a typed nil
func backgroundOf(r *services.ChannelRenewer) worker.Background {
	if r == nil {
		return nil
	}
	return r
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
