package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"claimdesk/internal/audit"
	auditkafka "claimdesk/internal/audit/kafka"
	auditstore "claimdesk/internal/audit/store"
	claimhandler "claimdesk/internal/claim/handler"
	claimmetrics "claimdesk/internal/claim/metrics"
	claimservice "claimdesk/internal/claim/service"
	claimstore "claimdesk/internal/claim/store"
	contractstore "claimdesk/internal/contract/store"
	jwttoken "claimdesk/internal/jwt_token"
	"claimdesk/internal/platform/config"
	"claimdesk/internal/platform/httpserver"
	"claimdesk/internal/platform/logger"
	"claimdesk/internal/platform/metrics"
	"claimdesk/internal/platform/postgres"
	platformredis "claimdesk/internal/platform/redis"
	receipthandler "claimdesk/internal/receipt/handler"
	receiptmetrics "claimdesk/internal/receipt/metrics"
	receiptservice "claimdesk/internal/receipt/service"
	receiptstore "claimdesk/internal/receipt/store"
	httptransport "claimdesk/internal/transport/http"
	"claimdesk/pkg/platform/locks"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("failed to open postgres", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	// Without postgres the process runs fully in memory, which is the local
	// development mode.
	var (
		claims       claimstore.Store
		receipts     receiptstore.Store
		contracts    contractstore.Provider
		auditStorage audit.Store
		outbox       audit.OutboxSource
	)
	if db != nil {
		claims = claimstore.NewPostgres(db)
		receipts = receiptstore.NewPostgres(db)
		pgAudit := auditstore.NewPostgres(db)
		auditStorage = pgAudit
		outbox = pgAudit
		contracts = contractstore.NewInMemory()
	} else {
		claims = claimstore.NewInMemory()
		receipts = receiptstore.NewInMemory()
		auditStorage = auditstore.NewInMemory()
		seeded := contractstore.NewInMemory()
		seedDemoContracts(seeded, log)
		contracts = seeded
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		contracts = contractstore.NewRedisCache(redisClient.Client, contracts, cfg.Redis.CacheTTL)
	}

	publisher := audit.NewPublisher(auditStorage)
	if outbox != nil && len(cfg.Kafka.Brokers) > 0 {
		producer, err := auditkafka.NewProducer(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("failed to start kafka producer", "error", err)
			os.Exit(1)
		}
		defer producer.Close()

		worker := audit.NewWorker(outbox, producer, log)
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit outbox worker stopped", "error", err)
			}
		}()
	}

	keyed := locks.NewKeyed(0)
	platformMetrics := metrics.New()

	claimSvc := claimservice.New(claims, contracts, keyed,
		claimservice.WithLogger(log),
		claimservice.WithAuditPublisher(publisher),
		claimservice.WithMetrics(claimmetrics.New()),
	)
	receiptSvc := receiptservice.New(receipts, claims, contracts, keyed,
		receiptservice.WithLogger(log),
		receiptservice.WithAuditPublisher(publisher),
		receiptservice.WithMetrics(receiptmetrics.New()),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "claimdesk", "claimdesk")

	router := httptransport.NewRouter(
		[]httptransport.Registrar{
			claimhandler.New(claimSvc, log, platformMetrics, jwtService),
			receipthandler.New(receiptSvc, log, platformMetrics, jwtService),
		},
		healthChecks(db, redisClient),
	)

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting claimdesk", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
