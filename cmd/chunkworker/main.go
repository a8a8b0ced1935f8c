package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/config"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/metrics"
	miniostorage "github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/minio"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/rabbitmq"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/sam2"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/tracing"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/usecase"
	"github.com/aryankeluskar/jigglewiggle-deployed/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// chunkworker is the GPU-side half of distributed dispatch: it consumes
// chunk jobs from the queue, segments them against the local predictor
// runtime, and replies with mask archive keys.
func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting chunk worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:    cfg.MinIOEndpoint,
		AccessKey:   cfg.MinIOAccessKey,
		SecretKey:   cfg.MinIOSecretKey,
		UseSSL:      cfg.MinIOUseSSL,
		ChunkBucket: cfg.MinIOChunkBucket,
		MaskBucket:  cfg.MinIOMaskBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	// One predictor client per worker process; the runtime behind it loads
	// the model weights once and serves every chunk this worker handles.
	predictor := sam2.NewClient(cfg.PredictorURL, time.Duration(cfg.PredictorTimeoutS)*time.Second, log)
	segmenter := usecase.NewChunkSegmenter(predictor, log)

	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn)
	fatalOnErr(err, "create result publisher")

	uc := usecase.NewProcessChunkUseCase(storage, segmenter, pub, log)

	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQChunkQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("chunk worker started, consuming jobs")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("chunk worker stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
