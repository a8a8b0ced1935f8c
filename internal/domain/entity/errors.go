package entity

import "fmt"

// InputError means the request carried no usable video payload. Nothing is
// decoded or written before it is reported.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return e.Reason
}

// ExtractionError means the input container produced no frames (or had no
// video stream at all).
type ExtractionError struct {
	Reason string
}

func (e *ExtractionError) Error() string {
	return e.Reason
}

// InferenceError is a model-runtime failure inside one chunk. It is fatal for
// the whole request: no partial output, no retry.
type InferenceError struct {
	ChunkIndex int
	Err        error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("segmentation failed on chunk %d: %v", e.ChunkIndex, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// EncodingError is a non-zero exit from the final video encode. Stderr holds
// the tail of the encoder diagnostics.
type EncodingError struct {
	Stderr string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("ffmpeg encode failed: %s", e.Stderr)
}

// Tail returns the last n bytes of s. Encoder stderr can run to many
// kilobytes; only the suffix carries the actual failure.
func Tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
