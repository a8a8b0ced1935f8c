package port

import (
	"context"

	"github.com/aryankeluskar/jigglewiggle-deployed/internal/domain/entity"
)

type FrameExtractionResult struct {
	FramePaths []string
	FrameCount int
	Width      int
	Height     int
	FrameRate  entity.FrameRate
}

// FrameExtractor decodes a video container into ordered still images at the
// source frame rate, preserving exact frame count and order.
type FrameExtractor interface {
	ExtractFrames(ctx context.Context, videoPath string, outputDir string) (*FrameExtractionResult, error)
}
