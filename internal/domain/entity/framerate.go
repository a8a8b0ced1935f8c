package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// FrameRate is an exact rational frame rate as reported by the container
// metadata (e.g. "30000/1001"). It stays rational through the pipeline and is
// only converted to a float at the response boundary, so repeated conversions
// cannot drift.
type FrameRate struct {
	Num int
	Den int
}

// ParseFrameRate parses ffprobe's r_frame_rate format: "num/den" or a bare
// integer.
func ParseFrameRate(s string) (FrameRate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return FrameRate{}, fmt.Errorf("empty frame rate")
	}

	numStr, denStr, found := strings.Cut(s, "/")
	if !found {
		denStr = "1"
	}

	num, err := strconv.Atoi(numStr)
	if err != nil {
		return FrameRate{}, fmt.Errorf("parse frame rate %q: %w", s, err)
	}
	den, err := strconv.Atoi(denStr)
	if err != nil {
		return FrameRate{}, fmt.Errorf("parse frame rate %q: %w", s, err)
	}
	if num <= 0 || den <= 0 {
		return FrameRate{}, fmt.Errorf("invalid frame rate %q", s)
	}

	return FrameRate{Num: num, Den: den}, nil
}

// Float64 is the presentation-boundary approximation.
func (r FrameRate) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// String renders the rational form ffmpeg accepts for -framerate.
func (r FrameRate) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

func (r FrameRate) IsZero() bool {
	return r.Num == 0
}
