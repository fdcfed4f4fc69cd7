package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/pulsemail/internal/api"
	"github.com/ignite/pulsemail/internal/auth"
	"github.com/ignite/pulsemail/internal/config"
	"github.com/ignite/pulsemail/internal/pkg/logger"
	"github.com/ignite/pulsemail/internal/repository/postgres"
	"github.com/ignite/pulsemail/internal/service/campaign"
	"github.com/ignite/pulsemail/internal/service/contact"
	"github.com/ignite/pulsemail/internal/template"
	"github.com/ignite/pulsemail/internal/worker"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale processes occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	if err := checkPortAvailable(cfg.Server.GetHost(), cfg.Server.Port); err != nil {
		log.Fatalf("%v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if err := db.Ping(); err != nil {
		log.Fatalf("ping database at %s: %v", extractHost(cfg.Database.URL), err)
	}
	defer db.Close()
	logger.Info("connected to postgres", "host", extractHost(cfg.Database.URL))

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis at %s: %v", cfg.Redis.Addr, err)
	}
	defer rdb.Close()

	campaignRepo := postgres.NewCampaignRepo(db)
	contactRepo := postgres.NewContactRepo(db)
	templateRepo := postgres.NewTemplateRepo(db)
	logRepo := postgres.NewEmailLogRepo(db)
	userRepo := postgres.NewUserRepo(db)
	dashboardRepo := postgres.NewDashboardRepo(db)

	campaignSvc := campaign.NewService(campaignRepo, contactRepo)
	campaignSvc.SetEnqueuer(worker.NewRedisEnqueuer(rdb, logRepo, cfg.Worker.QueueKey))
	contactSvc := contact.NewService(contactRepo)
	engine := template.NewEngine()

	var authManager *auth.Manager
	if cfg.Auth.GoogleClientID != "" {
		baseURL := os.Getenv("SERVER_BASE_URL")
		if baseURL == "" {
			baseURL = fmt.Sprintf("http://%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
		}
		authManager = auth.NewManager(&cfg.Auth, userRepo, baseURL)
		authManager.CleanupExpiredSessions()
	}

	handlers := api.NewHandlers(campaignSvc, contactSvc, templateRepo, dashboardRepo, logRepo, engine)
	server := api.NewServer(cfg.Server, cfg.Auth, handlers, authManager)

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	go func() {
		logger.Info("api server listening", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil {
			logger.Error("server exited", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down api server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
