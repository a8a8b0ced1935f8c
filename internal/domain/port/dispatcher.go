package port

import (
	"context"

	"github.com/aryankeluskar/jigglewiggle-deployed/internal/domain/entity"
)

// ChunkSegmenter runs the tracking model over one chunk of frames and
// returns one rendered mask image per input frame, same length and order.
type ChunkSegmenter interface {
	SegmentChunk(ctx context.Context, frames [][]byte, width, height int) ([][]byte, error)
}

// ChunkDispatcher fans chunks out to segmentation workers and returns the
// flattened mask sequence for the whole video: chunk results concatenated in
// chunk-index order regardless of completion order.
type ChunkDispatcher interface {
	Dispatch(ctx context.Context, chunks []entity.Chunk, width, height int) ([][]byte, error)
}
