package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aryankeluskar/jigglewiggle-deployed/internal/domain/entity"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/domain/port"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/framezip"
	"go.uber.org/zap"
)

// ProcessChunkUseCase is the remote worker side of distributed dispatch: it
// consumes one chunk job, runs segmentation, and reports the result on the
// dispatcher's reply queue. Failures are reported in-band; the message is
// never requeued.
type ProcessChunkUseCase struct {
	storage   port.ChunkStorage
	segmenter port.ChunkSegmenter
	publisher port.ResultPublisher
	logger    *zap.Logger
}

func NewProcessChunkUseCase(
	storage port.ChunkStorage,
	segmenter port.ChunkSegmenter,
	publisher port.ResultPublisher,
	logger *zap.Logger,
) *ProcessChunkUseCase {
	return &ProcessChunkUseCase{
		storage:   storage,
		segmenter: segmenter,
		publisher: publisher,
		logger:    logger,
	}
}

func (uc *ProcessChunkUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	var msg entity.ChunkJobMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal chunk job", zap.Error(err), zap.ByteString("body", rawMsg))
		return nil
	}

	log := uc.logger.With(
		zap.String("job_id", msg.JobID.String()),
		zap.Int("chunk_index", msg.ChunkIndex),
	)

	result := entity.ChunkResultMessage{
		JobID:      msg.JobID,
		ChunkIndex: msg.ChunkIndex,
		FrameCount: msg.FrameCount,
	}

	masksKey, err := uc.segmentChunkJob(ctx, msg)
	if err != nil {
		log.Error("chunk job failed", zap.Error(err))
		result.Error = err.Error()
	} else {
		result.MasksKey = masksKey
	}

	if err := uc.publisher.PublishResult(ctx, msg.ReplyTo, result); err != nil {
		return fmt.Errorf("publish chunk result: %w", err)
	}

	if result.Error == "" {
		log.Info("chunk job completed", zap.Int("frames", msg.FrameCount))
	}
	return nil
}

func (uc *ProcessChunkUseCase) segmentChunkJob(ctx context.Context, msg entity.ChunkJobMessage) (string, error) {
	archive, err := uc.storage.DownloadFrames(ctx, msg.FramesKey)
	if err != nil {
		return "", fmt.Errorf("download frames: %w", err)
	}

	frames, err := framezip.Unpack(archive)
	if err != nil {
		return "", fmt.Errorf("unpack frames: %w", err)
	}
	if len(frames) != msg.FrameCount {
		return "", fmt.Errorf("frame archive has %d frames, expected %d", len(frames), msg.FrameCount)
	}

	masks, err := uc.segmenter.SegmentChunk(ctx, frames, msg.Width, msg.Height)
	if err != nil {
		return "", err
	}

	maskArchive, err := framezip.Pack(masks, ".png")
	if err != nil {
		return "", fmt.Errorf("pack masks: %w", err)
	}

	masksKey := fmt.Sprintf("%s/masks/%05d.zip", msg.JobID, msg.ChunkIndex)
	if err := uc.storage.UploadMasks(ctx, masksKey, maskArchive); err != nil {
		return "", fmt.Errorf("upload masks: %w", err)
	}
	return masksKey, nil
}
