package port

import (
	"context"

	"github.com/aryankeluskar/jigglewiggle-deployed/internal/domain/entity"
)

// VideoAssembler encodes an ordered directory of mask images back into a
// single video at the source frame rate.
type VideoAssembler interface {
	EncodeMaskVideo(ctx context.Context, maskDir string, rate entity.FrameRate, outputPath string) error
}
