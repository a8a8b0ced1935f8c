package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aryankeluskar/jigglewiggle-deployed/internal/domain/port"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/config"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/dispatch"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/email"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/ffmpeg"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/metrics"
	miniostorage "github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/minio"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/postgres"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/rabbitmq"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/sam2"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/tracing"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/transport/httpapi"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/usecase"
	"github.com/aryankeluskar/jigglewiggle-deployed/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting segmentation server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if Jaeger unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	if err := postgres.RunMigrations(cfg.DatabaseURL, "migrations"); err != nil {
		log.Warn("migration warning", zap.Error(err))
	}
	repo := postgres.NewJobRepository(pool)

	// Predictor runtime client, built once and reused across all sessions
	predictor := sam2.NewClient(cfg.PredictorURL, time.Duration(cfg.PredictorTimeoutS)*time.Second, log)
	segmenter := usecase.NewChunkSegmenter(predictor, log)

	dispatcher, cleanup, err := buildDispatcher(ctx, cfg, segmenter, log)
	fatalOnErr(err, "build dispatcher")
	defer cleanup()

	extractor := ffmpeg.NewExtractor(cfg.FFmpegQuality, log)
	assembler := ffmpeg.NewAssembler(log)
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.NotificationTo, log)

	uc := usecase.NewSegmentVideoUseCase(
		repo, extractor, dispatcher, assembler, notifier,
		log,
		usecase.SegmentVideoConfig{
			TempDir:           cfg.TempDir,
			MaxParallelChunks: cfg.MaxParallelChunks,
			DispatchMode:      cfg.DispatchMode,
		},
	)

	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	handler := httpapi.NewHandler(uc, log)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler.Router(),
	}

	go func() {
		log.Info("http server starting", zap.Int("port", cfg.HTTPPort), zap.String("dispatch_mode", cfg.DispatchMode))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	metricsSrv.Shutdown(shutdownCtx)

	log.Info("segmentation server stopped")
}

// buildDispatcher wires the chunk dispatch capability for the configured
// deployment shape: in-process pool, or RabbitMQ fan-out with MinIO payload
// transfer.
func buildDispatcher(ctx context.Context, cfg *config.Config, segmenter port.ChunkSegmenter, log *zap.Logger) (port.ChunkDispatcher, func(), error) {
	switch cfg.DispatchMode {
	case "local":
		return dispatch.NewLocal(segmenter, cfg.MaxParallelChunks, log), func() {}, nil

	case "rabbitmq":
		storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
			Endpoint:    cfg.MinIOEndpoint,
			AccessKey:   cfg.MinIOAccessKey,
			SecretKey:   cfg.MinIOSecretKey,
			UseSSL:      cfg.MinIOUseSSL,
			ChunkBucket: cfg.MinIOChunkBucket,
			MaskBucket:  cfg.MinIOMaskBucket,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := storage.EnsureBuckets(ctx); err != nil {
			return nil, nil, err
		}

		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			return nil, nil, err
		}

		dispatcher, err := rabbitmq.NewDispatcher(conn, cfg.RabbitMQChunkQueue, storage, segmenter,
			time.Duration(cfg.DispatchTimeoutS)*time.Second, log)
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		return dispatcher, func() { conn.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown dispatch mode %q", cfg.DispatchMode)
	}
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
