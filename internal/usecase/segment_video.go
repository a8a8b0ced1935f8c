package usecase

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/aryankeluskar/jigglewiggle-deployed/internal/domain/entity"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/domain/port"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type SegmentVideoUseCase struct {
	repo        port.JobRepository
	extractor   port.FrameExtractor
	dispatcher  port.ChunkDispatcher
	assembler   port.VideoAssembler
	notifier    port.FailureNotifier
	logger      *zap.Logger
	tempDir     string
	maxParallel int
	mode        string
}

type SegmentVideoConfig struct {
	TempDir           string
	MaxParallelChunks int
	DispatchMode      string
}

// Result is the pipeline output for one request. FPS is the float
// approximation of the exact rational frame rate, converted only here at the
// presentation boundary.
type Result struct {
	MaskVideo      []byte
	NumFrames      int
	FPS            float64
	Chunks         int
	ProcessingTime float64
}

func NewSegmentVideoUseCase(
	repo port.JobRepository,
	extractor port.FrameExtractor,
	dispatcher port.ChunkDispatcher,
	assembler port.VideoAssembler,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg SegmentVideoConfig,
) *SegmentVideoUseCase {
	maxParallel := cfg.MaxParallelChunks
	if maxParallel <= 0 {
		maxParallel = entity.MaxParallelChunks
	}
	return &SegmentVideoUseCase{
		repo:        repo,
		extractor:   extractor,
		dispatcher:  dispatcher,
		assembler:   assembler,
		notifier:    notifier,
		logger:      logger,
		tempDir:     cfg.TempDir,
		maxParallel: maxParallel,
		mode:        cfg.DispatchMode,
	}
}

// Execute runs the full pipeline: extract frames, partition into chunks,
// dispatch segmentation, reassemble the mask video. All-or-nothing: any
// stage failure fails the request with no partial output.
func (uc *SegmentVideoUseCase) Execute(ctx context.Context, video []byte) (*Result, error) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "SegmentVideoUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	job := entity.NewJob(int64(len(video)))
	if err := uc.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	span.SetAttributes(attribute.String("job.id", job.ID.String()))

	log := uc.logger.With(zap.String("job_id", job.ID.String()))
	log.Info("segmentation request received", zap.Int("video_bytes", len(video)))

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}

	result, err := uc.runPipeline(ctx, job, video, log)
	if err != nil {
		uc.handleFailure(ctx, job, err, log)
		return nil, err
	}

	job.MarkCompleted(result.NumFrames, result.Chunks, job.FrameRate, result.ProcessingTime)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
	}

	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())
	metrics.FramesSegmentedTotal.Add(float64(result.NumFrames))

	log.Info("segmentation completed",
		zap.Int("num_frames", result.NumFrames),
		zap.Int("chunks", result.Chunks),
		zap.Float64("fps", result.FPS),
		zap.Float64("processing_time", result.ProcessingTime),
	)
	return result, nil
}

func (uc *SegmentVideoUseCase) runPipeline(ctx context.Context, job *entity.Job, video []byte, log *zap.Logger) (*Result, error) {
	tracer := otel.Tracer("usecase")
	totalTimer := time.Now()

	workDir := filepath.Join(uc.tempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "input.mp4")
	if err := os.WriteFile(inputPath, video, 0644); err != nil {
		return nil, fmt.Errorf("write input video: %w", err)
	}

	// Extract frames
	exStart := time.Now()
	ctxEx, spanEx := tracer.Start(ctx, "extract_frames")
	framesDir := filepath.Join(workDir, "frames")
	if err := os.MkdirAll(framesDir, 0755); err != nil {
		spanEx.End()
		return nil, fmt.Errorf("create frames dir: %w", err)
	}
	extraction, err := uc.extractor.ExtractFrames(ctxEx, inputPath, framesDir)
	if err != nil {
		spanEx.End()
		return nil, err
	}
	spanEx.End()
	metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(exStart).Seconds())

	job.Width = extraction.Width
	job.Height = extraction.Height
	job.FrameRate = extraction.FrameRate
	job.FrameCount = extraction.FrameCount

	frames := make([][]byte, extraction.FrameCount)
	for i, path := range extraction.FramePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read frame %d: %w", i, err)
		}
		frames[i] = data
	}

	// Partition into chunks
	bounds := entity.PartitionFrames(extraction.FrameCount, uc.maxParallel)
	chunks := entity.BuildChunks(frames, bounds)
	log.Info("frames partitioned",
		zap.Int("num_frames", extraction.FrameCount),
		zap.Int("chunks", len(chunks)),
		zap.String("frame_rate", extraction.FrameRate.String()),
	)

	// Dispatch segmentation
	dispStart := time.Now()
	ctxDisp, spanDisp := tracer.Start(ctx, "dispatch_chunks")
	spanDisp.SetAttributes(attribute.Int("chunks", len(chunks)))
	maskFrames, err := uc.dispatcher.Dispatch(ctxDisp, chunks, extraction.Width, extraction.Height)
	if err != nil {
		spanDisp.End()
		return nil, err
	}
	spanDisp.End()
	metrics.StageDuration.WithLabelValues("dispatch").Observe(time.Since(dispStart).Seconds())
	metrics.ChunksDispatchedTotal.WithLabelValues(uc.mode).Add(float64(len(chunks)))

	if len(maskFrames) != extraction.FrameCount {
		return nil, fmt.Errorf("dispatcher returned %d mask frames for %d input frames", len(maskFrames), extraction.FrameCount)
	}

	// Assemble mask video
	encStart := time.Now()
	ctxEnc, spanEnc := tracer.Start(ctx, "encode_mask_video")
	maskDir := filepath.Join(workDir, "masks")
	if err := os.MkdirAll(maskDir, 0755); err != nil {
		spanEnc.End()
		return nil, fmt.Errorf("create masks dir: %w", err)
	}
	for i, data := range maskFrames {
		name := filepath.Join(maskDir, fmt.Sprintf("%05d.png", i))
		if err := os.WriteFile(name, data, 0644); err != nil {
			spanEnc.End()
			return nil, fmt.Errorf("write mask frame %d: %w", i, err)
		}
	}

	outputPath := filepath.Join(workDir, "mask.mp4")
	if err := uc.assembler.EncodeMaskVideo(ctxEnc, maskDir, extraction.FrameRate, outputPath); err != nil {
		spanEnc.End()
		return nil, err
	}
	spanEnc.End()
	metrics.StageDuration.WithLabelValues("encode").Observe(time.Since(encStart).Seconds())

	maskVideo, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("read mask video: %w", err)
	}

	elapsed := math.Round(time.Since(totalTimer).Seconds()*10) / 10

	return &Result{
		MaskVideo:      maskVideo,
		NumFrames:      extraction.FrameCount,
		FPS:            extraction.FrameRate.Float64(),
		Chunks:         len(chunks),
		ProcessingTime: elapsed,
	}, nil
}

func (uc *SegmentVideoUseCase) handleFailure(ctx context.Context, job *entity.Job, err error, log *zap.Logger) {
	log.Error("segmentation request failed", zap.Error(err))

	job.MarkFailed(err.Error())
	if updateErr := uc.repo.Update(ctx, job); updateErr != nil {
		log.Error("failed to update job to FAILED", zap.Error(updateErr))
	}

	metrics.JobsProcessedTotal.WithLabelValues("failed").Inc()

	if uc.notifier != nil {
		_ = uc.notifier.NotifyFailure(ctx, job.ID.String(), err.Error())
	}
}
