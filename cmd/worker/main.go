package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/pulsemail/internal/config"
	"github.com/ignite/pulsemail/internal/mailer"
	"github.com/ignite/pulsemail/internal/pkg/distlock"
	"github.com/ignite/pulsemail/internal/pkg/logger"
	"github.com/ignite/pulsemail/internal/repository/postgres"
	"github.com/ignite/pulsemail/internal/service/campaign"
	"github.com/ignite/pulsemail/internal/template"
	"github.com/ignite/pulsemail/internal/tracking"
	"github.com/ignite/pulsemail/internal/worker"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		log.Fatalf("ping database: %v", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis at %s: %v", cfg.Redis.Addr, err)
	}
	defer rdb.Close()

	var sender mailer.Sender
	if cfg.SES.Enabled {
		sender, err = mailer.NewSESSender(cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.Region)
		if err != nil {
			log.Fatalf("init ses sender: %v", err)
		}
	} else {
		sender = mailer.NewLogSender()
		logger.Warn("ses disabled, using log sender")
	}

	campaignRepo := postgres.NewCampaignRepo(db)
	contactRepo := postgres.NewContactRepo(db)
	logRepo := postgres.NewEmailLogRepo(db)

	pool := worker.NewPool(rdb, cfg.Worker.QueueKey, cfg.Worker.NumWorkers, cfg.Worker.PollInterval(), worker.PoolDeps{
		Campaigns: campaignRepo,
		Contacts:  contactRepo,
		Templates: postgres.NewTemplateRepo(db),
		Logs:      logRepo,
		Engine:    template.NewEngine(),
		Links:     tracking.NewLinkBuilder(cfg.Tracking.BaseURL, cfg.Tracking.SigningKey),
		Sender:    sender,
	})
	if err := pool.Start(); err != nil {
		log.Fatalf("start worker pool: %v", err)
	}

	// The scheduler shares the enqueue path with direct starts.
	campaignSvc := campaign.NewService(campaignRepo, contactRepo)
	campaignSvc.SetEnqueuer(worker.NewRedisEnqueuer(rdb, logRepo, cfg.Worker.QueueKey))
	scheduler := worker.NewScheduler(campaignRepo, campaignSvc, cfg.Worker.PollInterval())
	scheduler.SetLock(distlock.NewLock(rdb, db, "campaign-scheduler", 2*cfg.Worker.PollInterval()))
	scheduler.Start()

	logger.Info("worker running",
		"workers", cfg.Worker.NumWorkers, "queue", cfg.Worker.QueueKey)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down worker")

	scheduler.Stop()
	pool.Stop()
}
