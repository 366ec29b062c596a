package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/endorsenyc-backend/internal/classifier"
	"github.com/unclebandit/endorsenyc-backend/internal/config"
	"github.com/unclebandit/endorsenyc-backend/internal/db"
	"github.com/unclebandit/endorsenyc-backend/internal/feed"
	"github.com/unclebandit/endorsenyc-backend/internal/handler"
	"github.com/unclebandit/endorsenyc-backend/internal/logger"
	"github.com/unclebandit/endorsenyc-backend/internal/pipeline"
	"github.com/unclebandit/endorsenyc-backend/internal/queue"
	"github.com/unclebandit/endorsenyc-backend/internal/repository"
	"github.com/unclebandit/endorsenyc-backend/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.Must(cfg.LogLevel)
	defer log.Sync()
	logger.Warnings(log, cfg.Warnings)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("❌ invalid database settings", zap.Error(err))
	}
	defer conn.Close()

	rules, err := classifier.LoadRules(cfg.RulesPath)
	if err != nil {
		log.Fatal("❌ invalid classifier rules", zap.String("path", cfg.RulesPath), zap.Error(err))
	}

	producer := pipeline.NewProducer(nil)

	// Health first, so the worker answers while it waits for its dependencies.
	health := &http.Server{
		Addr:              cfg.WorkerHealthAddr,
		Handler:           handler.NewHealthRouter(&handler.HealthHandler{Service: "worker", Checks: healthChecks(conn, producer)}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("🩺 Health server running", zap.String("addr", cfg.WorkerHealthAddr))
		if err := health.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("❌ health server stopped", zap.Error(err))
		}
	}()

	if err := db.WaitForDB(ctx, conn, cfg.ReconnectDelay, log); err != nil {
		shutdown(health, log)
		return
	}

	seen := seenStoreFor(ctx, cfg, log)
	dispatcher := newDispatcher(conn, producer, classifier.New(rules), seen, notifierFor(cfg, log), cfg, log)

	scheduler, err := pipeline.NewScheduler(producer, log)
	if err != nil {
		log.Fatal("❌ invalid schedule", zap.Error(err))
	}
	scheduler.Start()

	go queue.KeepConnected(ctx, cfg.AMQPURL, queue.DefaultRetry, cfg.ReconnectDelay, log,
		func(connCtx context.Context, b *queue.AMQPBroker) error {
			producer.SetBroker(b)
			if err := dispatcher.Start(connCtx); err != nil {
				return fmt.Errorf("start consumers: %w", err)
			}
			return nil
		},
		func() { producer.SetBroker(nil) })

	log.Info("Worker running, waiting for jobs...")
	<-ctx.Done()

	scheduler.Stop()
	if c, ok := seen.(interface{ Close() error }); ok {
		c.Close()
	}
	shutdown(health, log)
}

func newDispatcher(conn *sql.DB, producer *pipeline.Producer, cls *classifier.Classifier, seen feed.SeenStore,
	notifier pipeline.Notifier, cfg *config.Config, log *zap.Logger) *pipeline.Dispatcher {
	feedRepo := &repository.FeedRepository{DB: conn}
	reviewRepo := &repository.ReviewRepository{DB: conn}
	endorserRepo := &repository.EndorserRepository{DB: conn}

	approver := &service.EndorsementService{
		Endorsements:         &repository.EndorsementRepository{DB: conn},
		Endorsers:            endorserRepo,
		Candidates:           &repository.CandidateRepository{DB: conn},
		Reviews:              reviewRepo,
		Maintenance:          &repository.MaintenanceRepository{DB: conn},
		Log:                  log,
		AutoApproveThreshold: cls.Rules().Thresholds.AutoApprove,
	}

	return &pipeline.Dispatcher{
		Producer: producer,
		Feeds:    feedRepo,
		Reader: feed.NewReader(feed.Options{
			Timeout:      cfg.FeedFetchTimeout,
			HostInterval: cfg.FeedHostInterval,
		}, feedRepo, log),
		Monitors:   &feed.EndorserMonitor{Endorsers: endorserRepo, Generator: feed.NewGenerator()},
		Seen:       seen,
		Classifier: cls,
		Reviews:    reviewRepo,
		Approver:   approver,
		Notifier:   notifier,
		Retention:  cfg.ReviewRetention,
		Log:        log,
	}
}

// seenStoreFor uses Redis when configured and reachable, otherwise every item
// is treated as new.
func seenStoreFor(ctx context.Context, cfg *config.Config, log *zap.Logger) feed.SeenStore {
	if cfg.RedisURL == "" {
		log.Info("REDIS_URL not set, feed items are not deduplicated across cycles")
		return feed.NopSeenStore{}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	store, err := feed.NewRedisSeenStoreFromURL(pingCtx, cfg.RedisURL, feed.DefaultSeenTTL)
	if err != nil {
		log.Warn("⚠️ Redis unavailable, feed items are not deduplicated across cycles", zap.Error(err))
		return feed.NopSeenStore{}
	}
	log.Info("✅ Connected to Redis")
	return store
}

func notifierFor(cfg *config.Config, log *zap.Logger) pipeline.Notifier {
	logNotifier := pipeline.LogNotifier{Log: log}
	if cfg.NotifyWebhookURL == "" {
		return logNotifier
	}
	return pipeline.MultiNotifier{logNotifier, pipeline.NewWebhookNotifier(cfg.NotifyWebhookURL)}
}

func healthChecks(conn *sql.DB, producer *pipeline.Producer) map[string]handler.Check {
	return map[string]handler.Check{
		"database": conn.PingContext,
		"queue": func(context.Context) error {
			if producer.Broker() == nil {
				return errors.New("not connected")
			}
			return nil
		},
	}
}

func shutdown(srv *http.Server, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("⚠️ health server shutdown", zap.Error(err))
	}
	log.Info("👋 Worker stopped")
}
