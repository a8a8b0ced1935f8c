// Package dispatch runs chunk segmentation on an in-process worker pool.
package dispatch

import (
	"context"

	"github.com/aryankeluskar/jigglewiggle-deployed/internal/domain/entity"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/domain/port"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Local struct {
	segmenter   port.ChunkSegmenter
	maxParallel int
	logger      *zap.Logger
}

func NewLocal(segmenter port.ChunkSegmenter, maxParallel int, logger *zap.Logger) *Local {
	if maxParallel <= 0 {
		maxParallel = entity.MaxParallelChunks
	}
	return &Local{segmenter: segmenter, maxParallel: maxParallel, logger: logger}
}

// Dispatch fans the chunks out across at most maxParallel concurrent
// segmentations and flattens results in chunk-index order. A single chunk is
// run synchronously with no pool overhead.
func (d *Local) Dispatch(ctx context.Context, chunks []entity.Chunk, width, height int) ([][]byte, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	if len(chunks) == 1 {
		masks, err := d.segmenter.SegmentChunk(ctx, chunks[0].Frames, width, height)
		if err != nil {
			return nil, &entity.InferenceError{ChunkIndex: chunks[0].Index, Err: err}
		}
		return masks, nil
	}

	results := make([][][]byte, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.maxParallel)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			masks, err := d.segmenter.SegmentChunk(gctx, chunk.Frames, width, height)
			if err != nil {
				return &entity.InferenceError{ChunkIndex: chunk.Index, Err: err}
			}
			results[i] = masks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Completion order is irrelevant: results are indexed by chunk position
	// and concatenated here in partition order.
	var all [][]byte
	for _, masks := range results {
		all = append(all, masks...)
	}

	d.logger.Debug("chunks dispatched locally",
		zap.Int("chunks", len(chunks)),
		zap.Int("mask_frames", len(all)),
	)
	return all, nil
}
