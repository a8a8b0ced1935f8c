package port

import "context"

// Point is a pixel coordinate prompt on a frame.
type Point struct {
	X float64
	Y float64
}

// Prompt labels, matching the predictor runtime's convention.
const (
	LabelForeground = 1
	LabelBackground = 0
)

// ObjectMask carries one tracked object's raw mask scores for a frame,
// row-major, length Width*Height. Scores are logits; presence is a strict
// greater-than-zero test.
type ObjectMask struct {
	ObjectID int
	Logits   []float32
}

// FrameMasks is the propagation output for one local frame index.
type FrameMasks struct {
	FrameIndex int
	Objects    []ObjectMask
}

// TrackingSession is per-chunk model memory. It is created for one chunk,
// never shared, and discarded when the chunk is done.
type TrackingSession interface {
	AddPoint(ctx context.Context, frameIndex, objectID int, pt Point, label int) error

	// Propagate streams masks for every local frame index in increasing
	// order, calling fn once per frame.
	Propagate(ctx context.Context, fn func(FrameMasks) error) error

	Close(ctx context.Context) error
}

// VideoPredictor is the pretrained video-object-tracking model, consumed as
// an opaque capability. Implementations own the expensive weight load and
// reuse it across sessions.
type VideoPredictor interface {
	NewSession(ctx context.Context, frames [][]byte, width, height int) (TrackingSession, error)
}
