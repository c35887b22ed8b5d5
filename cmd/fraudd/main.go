package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/fraud-scorer/internal/analytics"
	"github.com/joseph-ayodele/fraud-scorer/internal/archive"
	"github.com/joseph-ayodele/fraud-scorer/internal/assistant"
	"github.com/joseph-ayodele/fraud-scorer/internal/common"
	"github.com/joseph-ayodele/fraud-scorer/internal/events"
	"github.com/joseph-ayodele/fraud-scorer/internal/export"
	"github.com/joseph-ayodele/fraud-scorer/internal/materialize"
	"github.com/joseph-ayodele/fraud-scorer/internal/model"
	"github.com/joseph-ayodele/fraud-scorer/internal/pipeline"
	repo "github.com/joseph-ayodele/fraud-scorer/internal/repository"
	"github.com/joseph-ayodele/fraud-scorer/internal/scoring"
	svc "github.com/joseph-ayodele/fraud-scorer/internal/server"
)

func main() {
	cfg := common.LoadConfig()
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Models are loaded once; a bad artifact aborts startup.
	reg, err := model.Load(cfg.Models.Dir, logger)
	if err != nil {
		logger.Error("failed to load models", "dir", cfg.Models.Dir, "error", err)
		os.Exit(1)
	}

	db, err := svc.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		os.Exit(1)
	}
	defer svc.CloseDB(db, logger)
	runs := repo.NewRunRepository(db, logger)

	var cache analytics.Cache
	if cfg.Redis.Addr != "" {
		rc := analytics.NewRedisCache(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}), cfg.Redis.TTL)
		if err := rc.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, analysis cache disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			cache = rc
			logger.Info("analysis cache enabled", "addr", cfg.Redis.Addr)
		}
	}

	var arch archive.Archiver = archive.Nop{}
	if cfg.Mongo.URI != "" {
		client, err := archive.Connect(ctx, cfg.Mongo.URI, logger)
		if err != nil {
			logger.Warn("mongo unavailable, archiving disabled", "error", err)
		} else {
			defer func() { _ = client.Disconnect(context.Background()) }()
			arch = archive.NewMongoArchive(archive.NewMongoProvider(client, cfg.Mongo.Database), cfg.Mongo.Collection, logger)
		}
	}

	var pub events.Publisher = events.Nop{}
	if cfg.Kafka.Broker != "" {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Broker, cfg.Kafka.Topic, logger)
		if err != nil {
			logger.Warn("kafka unavailable, run events disabled", "error", err)
		} else {
			pub = kp
		}
	}
	defer pub.Close()

	logger.Info("assistant configured", "enabled", cfg.AssistantEnabled(), "model", cfg.LLM.Model)

	processor := pipeline.NewProcessor(logger,
		scoring.NewScorer(reg, cfg.Scoring.ChunkSize, logger),
		materialize.New(cfg.Storage.ProcessedDir, cfg.Storage.PublicDir, materialize.WithLogger(logger)),
		runs, arch, pub)

	httpSrv, err := svc.NewHTTPServer(svc.Deps{
		Processor: processor,
		Analytics: analytics.NewService(cfg.Storage.ProcessedDir, cache, logger),
		Export:    export.NewService(logger),
		Assistant: assistant.NewClient(assistant.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger),
		DB:           db,
		UploadDir:    cfg.Storage.UploadDir,
		ProcessedDir: cfg.Storage.ProcessedDir,
		PublicDir:    cfg.Storage.PublicDir,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("failed to build http server", "error", err)
		os.Exit(1)
	}
	web := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           httpSrv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(svc.UnaryLogging(logger)))
	svc.RegisterRunService(grpcServer, svc.NewRunService(runs, logger))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	go func() {
		logger.Info("fraudd grpc listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc serve error", "error", err)
			stop()
		}
	}()
	go func() {
		logger.Info("fraudd http listening", "addr", cfg.Server.HTTPAddr)
		if err := web.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := web.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	grpcServer.GracefulStop()
	logger.Info("stopped")
}

func newLogger(cfg *common.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
