package ffmpeg

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"

	"github.com/aryankeluskar/jigglewiggle-deployed/internal/domain/entity"
	"go.uber.org/zap"
)

// stderrTailBytes bounds how much encoder output is surfaced on failure.
const stderrTailBytes = 500

// Assembler encodes ordered mask PNGs into an mp4 at the source frame rate.
type Assembler struct {
	logger *zap.Logger
}

func NewAssembler(logger *zap.Logger) *Assembler {
	return &Assembler{logger: logger}
}

func (a *Assembler) EncodeMaskVideo(ctx context.Context, maskDir string, rate entity.FrameRate, outputPath string) error {
	args := encodeArgs(maskDir, rate, outputPath)
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		tail := entity.Tail(stderr.String(), stderrTailBytes)
		a.logger.Error("mask video encode failed",
			zap.Error(err),
			zap.String("stderr", tail),
		)
		return &entity.EncodingError{Stderr: tail}
	}

	a.logger.Info("mask video encoded",
		zap.String("output", outputPath),
		zap.String("frame_rate", rate.String()),
	)
	return nil
}

// encodeArgs builds the fixed libx264 invocation. The pad filter rounds each
// dimension up to an even value, a libx264/yuv420p constraint.
func encodeArgs(maskDir string, rate entity.FrameRate, outputPath string) []string {
	return []string{
		"-y",
		"-framerate", rate.String(),
		"-i", filepath.Join(maskDir, "%05d.png"),
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		outputPath,
	}
}
