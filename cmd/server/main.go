// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/endorsenyc-backend/internal/classifier"
	"github.com/unclebandit/endorsenyc-backend/internal/config"
	"github.com/unclebandit/endorsenyc-backend/internal/controller"
	"github.com/unclebandit/endorsenyc-backend/internal/db"
	"github.com/unclebandit/endorsenyc-backend/internal/feed"
	"github.com/unclebandit/endorsenyc-backend/internal/handler"
	"github.com/unclebandit/endorsenyc-backend/internal/logger"
	"github.com/unclebandit/endorsenyc-backend/internal/pipeline"
	"github.com/unclebandit/endorsenyc-backend/internal/queue"
	"github.com/unclebandit/endorsenyc-backend/internal/repository"
	"github.com/unclebandit/endorsenyc-backend/internal/scraper"
	"github.com/unclebandit/endorsenyc-backend/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.Must(cfg.LogLevel)
	defer log.Sync()
	logger.Warnings(log, cfg.Warnings)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init DB. Routes that need it answer 503 until the first ping succeeds.
	if err := db.Init(cfg.DatabaseURL); err != nil {
		log.Fatal("❌ invalid database settings", zap.Error(err))
	}
	defer db.DB.Close()

	var ready atomic.Bool
	go func() {
		if err := db.WaitForDB(ctx, db.DB, cfg.ReconnectDelay, log); err == nil {
			ready.Store(true)
		}
	}()

	rules, err := classifier.LoadRules(cfg.RulesPath)
	if err != nil {
		log.Fatal("❌ invalid classifier rules", zap.String("path", cfg.RulesPath), zap.Error(err))
	}
	cls := classifier.New(rules)

	candidateRepo := &repository.CandidateRepository{DB: db.DB}
	endorserRepo := &repository.EndorserRepository{DB: db.DB}
	endorsementRepo := &repository.EndorsementRepository{DB: db.DB}
	feedRepo := &repository.FeedRepository{DB: db.DB}
	reviewRepo := &repository.ReviewRepository{DB: db.DB}
	maintenanceRepo := &repository.MaintenanceRepository{DB: db.DB}

	// The API stays up without RabbitMQ; enqueueing answers 503 until it connects.
	producer := pipeline.NewProducer(nil)
	go queue.KeepConnected(ctx, cfg.AMQPURL, queue.DefaultRetry, cfg.ReconnectDelay, log,
		func(_ context.Context, b *queue.AMQPBroker) error {
			producer.SetBroker(b)
			return nil
		},
		func() { producer.SetBroker(nil) })

	reader := feed.NewReader(feed.Options{
		Timeout:      cfg.FeedFetchTimeout,
		HostInterval: cfg.FeedHostInterval,
	}, nil, log)

	endorsementService := &service.EndorsementService{
		Endorsements:         endorsementRepo,
		Endorsers:            endorserRepo,
		Candidates:           candidateRepo,
		Reviews:              reviewRepo,
		Maintenance:          maintenanceRepo,
		Log:                  log,
		AutoApproveThreshold: rules.Thresholds.AutoApprove,
	}
	referenceService := &service.ReferenceService{Candidates: candidateRepo, Endorsers: endorserRepo, Log: log}
	feedService := &service.FeedService{Feeds: feedRepo, Tester: reader, Jobs: producer, Log: log}
	statusService := &service.StatusService{Feeds: feedRepo, Endorsers: endorserRepo, Jobs: producer, Log: log}
	sourceService := &service.SourceService{Feeds: feedRepo, Endorsers: endorserRepo, Generator: feed.NewGenerator()}

	var sc *scraper.Scraper
	if cfg.OpenAIAPIKey != "" {
		searcher := scraper.NewOpenAISearcher(cfg.OpenAIAPIKey, cfg.OpenAIModel, "", log)
		sc = scraper.New(searcher, endorserRepo, candidateRepo, endorsementRepo, cfg.ScraperDelay, log)
	} else {
		log.Warn("⚠️ OPENAI_API_KEY not set, endorsement scraping disabled")
	}

	router := handler.NewRouter(&handler.API{
		Endorsements: &controller.EndorsementController{EndorsementService: endorsementService, Log: log},
		Admin:        &controller.AdminController{EndorsementService: endorsementService, Scraper: sc, Log: log},
		Reference:    &controller.ReferenceController{ReferenceService: referenceService, Log: log},
		Feeds:        &controller.FeedController{FeedService: feedService, Log: log},
		Classify:     &handler.ClassifyHandler{Classifier: cls},
		Status:       &handler.StatusHandler{Service: statusService, Log: log},
		Sources:      &handler.SourcesHandler{Service: sourceService, Log: log},
		Health: &handler.HealthHandler{Service: "server", Checks: map[string]handler.Check{
			"database": db.DB.PingContext,
			"queue": func(context.Context) error {
				if producer.Broker() == nil {
					return errors.New("not connected")
				}
				return nil
			},
		}},
		Ready: ready.Load,
		Log:   log,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("🚀 Server running", zap.String("addr", cfg.HTTPAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("❌ server stopped", zap.Error(err))
	}
	log.Info("👋 Server stopped")
}
