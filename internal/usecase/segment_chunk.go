package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/aryankeluskar/jigglewiggle-deployed/internal/domain/port"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/metrics"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/mask"
	"go.uber.org/zap"
)

const trackedObjectID = 1

// ChunkSegmenter propagates a single tracked object across one chunk of
// frames and renders a mask image per frame.
//
// Each chunk seeds its own point prompt at the chunk's local frame 0, so
// tracked identity does not carry across chunk boundaries. A fast-moving
// object that leaves the image center before a boundary can be lost in later
// chunks; that is a known accuracy tradeoff of the parallel-chunking design.
type ChunkSegmenter struct {
	predictor port.VideoPredictor
	logger    *zap.Logger
}

func NewChunkSegmenter(predictor port.VideoPredictor, logger *zap.Logger) *ChunkSegmenter {
	return &ChunkSegmenter{predictor: predictor, logger: logger}
}

// SegmentChunk returns one rendered mask PNG per input frame, same order.
func (s *ChunkSegmenter) SegmentChunk(ctx context.Context, frames [][]byte, width, height int) ([][]byte, error) {
	metrics.ActiveChunkWorkers.Inc()
	defer metrics.ActiveChunkWorkers.Dec()

	start := time.Now()

	session, err := s.predictor.NewSession(ctx, frames, width, height)
	if err != nil {
		return nil, err
	}
	defer session.Close(context.WithoutCancel(ctx))

	// Single foreground prompt at the image center of the chunk's first
	// frame, matching the python // 2 coordinates.
	center := port.Point{X: float64(width / 2), Y: float64(height / 2)}
	if err := session.AddPoint(ctx, 0, trackedObjectID, center, port.LabelForeground); err != nil {
		return nil, err
	}

	segments := make(map[int][]mask.Bitmap, len(frames))
	err = session.Propagate(ctx, func(fm port.FrameMasks) error {
		if fm.FrameIndex < 0 || fm.FrameIndex >= len(frames) {
			return fmt.Errorf("propagated frame index %d outside chunk of %d frames", fm.FrameIndex, len(frames))
		}
		bitmaps := make([]mask.Bitmap, 0, len(fm.Objects))
		for _, obj := range fm.Objects {
			bitmaps = append(bitmaps, mask.FromLogits(obj.Logits))
		}
		segments[fm.FrameIndex] = bitmaps
		return nil
	})
	if err != nil {
		return nil, err
	}

	maskFrames := make([][]byte, len(frames))
	for i := range frames {
		// Frames the tracker skipped render all-black.
		rendered, err := mask.Render(width, height, segments[i])
		if err != nil {
			return nil, err
		}
		maskFrames[i] = rendered
	}

	s.logger.Info("chunk segmented",
		zap.Int("frames", len(frames)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return maskFrames, nil
}
