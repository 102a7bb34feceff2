package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"OptionPool/internal/config"
	"OptionPool/internal/event"
	"OptionPool/internal/ledger"
	"OptionPool/internal/notify"
	"OptionPool/internal/observability"
	"OptionPool/internal/persistence"
	"OptionPool/internal/pool"
	"OptionPool/internal/pricing"
	"OptionPool/internal/server"
)

func main() {
	log := observability.NewLogger("main")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	owner, err := uuid.Parse(cfg.OwnerID)
	if err != nil {
		log.Fatal().Err(err).Msg("parse POOL_OWNER_ID")
	}
	treasury, err := uuid.Parse(cfg.TreasuryID)
	if err != nil {
		log.Fatal().Err(err).Msg("parse POOL_TREASURY_ID")
	}
	protocolFeeRate, err := sdkmath.LegacyNewDecFromStr(cfg.ProtocolFeeRate)
	if err != nil {
		log.Fatal().Err(err).Msg("parse POOL_PROTOCOL_FEE_RATE")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres open")
	}
	defer db.Close()

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("postgres ping")
	}
	log.Info().Msg("postgres connected")

	migrator := persistence.NewMigrator(db, cfg.MigrationsDir, observability.NewLogger("migrator"))
	if err := migrator.Up(ctx); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	// --- NATS ---
	nc, err := notify.ConnectNATS(cfg.NATSURL, observability.NewLogger("nats"))
	if err != nil {
		log.Fatal().Err(err).Msg("nats connect")
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		log.Fatal().Err(err).Msg("jetstream init")
	}
	if err := notify.EnsureStream(ctx, js); err != nil {
		log.Fatal().Err(err).Msg("ensure outbound stream")
	}

	// --- Observability ---
	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker()

	// --- Event fan-out ---
	// Persist is blocking (backpressure), publish drops when full.
	persistChan := make(chan event.Output, cfg.PersistBuffer)
	publishChan := make(chan event.Output, cfg.PublishBuffer)

	// --- Pool ---
	p := pool.NewPool(observability.NewLogger("pool"), metrics, persistChan, publishChan)

	persistWorker := persistence.NewWorker(db, persistChan,
		cfg.PersistBatchSize, cfg.PersistFlushTimeout,
		observability.NewLogger("persistence"), metrics)

	lastSeq, err := persistWorker.Writer().LastSequence(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("read last sequence")
	}
	p.ResumeSequence(lastSeq)

	asset := ledger.NewToken(cfg.AssetSymbol, ledger.PoolDecimals)
	shares := ledger.NewClaimToken(cfg.AssetSymbol+"-LP", true)
	withdraws := ledger.NewClaimToken(cfg.AssetSymbol+"-PW", false)

	publisher := notify.NewPublisher(js, publishChan, observability.NewLogger("publisher"), metrics)

	// --- Pricing ---
	oracle := pricing.NewStaticOracle()
	pricer := pricing.IntrinsicPricer{}

	// --- Servers ---
	httpSrv := server.NewHTTPServer(p, asset, oracle, pricer, health, server.Defaults{
		Treasury:        treasury,
		ProtocolFeeRate: protocolFeeRate,
	}, observability.NewLogger("http"))

	grpcSrv := server.NewGRPCServer(observability.NewLogger("grpc"))

	apiServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpSrv.Handler(),
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}

	// --- Start goroutines ---
	errChan := make(chan error, 5)

	go func() {
		errChan <- persistWorker.Run(ctx)
	}()
	go func() {
		errChan <- publisher.Run(ctx)
	}()
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		errChan <- grpcSrv.Serve(cfg.GRPCAddr)
	}()
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	// Initialize after workers are draining: Init emits the first event.
	if err := p.Init(uuid.New(), owner, asset, shares, withdraws); err != nil {
		log.Fatal().Err(err).Msg("pool init")
	}

	health.SetReady(true)
	grpcSrv.SetServing(true)

	log.Info().
		Int64("sequence", lastSeq).
		Str("http", cfg.HTTPAddr).
		Str("grpc", cfg.GRPCAddr).
		Str("metrics", cfg.MetricsAddr).
		Msg("optionpool ready")

	// --- Wait for shutdown ---
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		log.Error().Err(err).Msg("goroutine failed, shutting down")
	}

	health.SetReady(false)
	grpcSrv.SetServing(false)

	shutCtx, shutCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutCancel()

	apiServer.Shutdown(shutCtx)
	grpcSrv.Stop()
	metricsServer.Shutdown(shutCtx)

	// Stop producers before draining workers.
	close(persistChan)
	close(publishChan)
	cancel()

	// Give the persistence worker a moment to flush its final batch.
	select {
	case <-errChan:
	case <-shutCtx.Done():
	}

	log.Info().Msg("shutdown complete")
}
