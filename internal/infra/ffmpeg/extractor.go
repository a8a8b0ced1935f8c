package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/aryankeluskar/jigglewiggle-deployed/internal/domain/entity"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/domain/port"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// Extractor decodes a video container into ordered JPEG frames at the source
// frame rate using ffmpeg/ffprobe as external processes.
type Extractor struct {
	quality int
	logger  *zap.Logger
}

func NewExtractor(quality int, logger *zap.Logger) *Extractor {
	return &Extractor{quality: quality, logger: logger}
}

func (e *Extractor) ExtractFrames(ctx context.Context, videoPath string, outputDir string) (*port.FrameExtractionResult, error) {
	rate, err := e.probeFrameRate(ctx, videoPath)
	if err != nil {
		return nil, &entity.ExtractionError{Reason: err.Error()}
	}

	framePattern := filepath.Join(outputDir, "%05d.jpg")
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", videoPath,
		"-qscale:v", strconv.Itoa(e.quality),
		"-start_number", "0",
		framePattern,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg error: %w, output: %s", err, entity.Tail(string(output), 500))
	}

	frames, err := filepath.Glob(filepath.Join(outputDir, "*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("glob frames: %w", err)
	}
	if len(frames) == 0 {
		return nil, &entity.ExtractionError{Reason: "no frames extracted from video"}
	}
	sortFramePaths(frames)

	width, height, err := frameDimensions(frames[0])
	if err != nil {
		return nil, fmt.Errorf("read first frame: %w", err)
	}

	e.logger.Info("frames extracted",
		zap.Int("count", len(frames)),
		zap.Int("width", width),
		zap.Int("height", height),
		zap.String("frame_rate", rate.String()),
	)

	return &port.FrameExtractionResult{
		FramePaths: frames,
		FrameCount: len(frames),
		Width:      width,
		Height:     height,
		FrameRate:  rate,
	}, nil
}

// probeFrameRate reads the video stream's r_frame_rate as an exact rational.
func (e *Extractor) probeFrameRate(ctx context.Context, videoPath string) (entity.FrameRate, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=r_frame_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return entity.FrameRate{}, fmt.Errorf("no video stream: %w", err)
	}

	rate, err := entity.ParseFrameRate(string(output))
	if err != nil {
		return entity.FrameRate{}, err
	}
	return rate, nil
}

func frameDimensions(path string) (int, int, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return 0, 0, err
	}
	bounds := img.Bounds()
	return bounds.Dx(), bounds.Dy(), nil
}

// sortFramePaths orders by numeric stem, not lexically, so extraction beyond
// the zero-padding width still comes back in frame order.
func sortFramePaths(paths []string) {
	sort.Slice(paths, func(i, j int) bool {
		return frameNumber(paths[i]) < frameNumber(paths[j])
	})
}

func frameNumber(path string) int {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	n, err := strconv.Atoi(stem)
	if err != nil {
		return -1
	}
	return n
}
