package entity

import "github.com/google/uuid"

// ChunkJobMessage is published to the chunk queue when dispatch runs over
// RabbitMQ. Frame payloads travel through object storage, not the broker.
type ChunkJobMessage struct {
	JobID      uuid.UUID `json:"job_id"`
	ChunkIndex int       `json:"chunk_index"`
	FrameCount int       `json:"frame_count"`
	FramesKey  string    `json:"frames_key"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	ReplyTo    string    `json:"reply_to"`
}

// ChunkResultMessage is the worker's reply for one chunk. Error is set when
// the chunk failed; MasksKey points at the rendered mask archive otherwise.
type ChunkResultMessage struct {
	JobID      uuid.UUID `json:"job_id"`
	ChunkIndex int       `json:"chunk_index"`
	FrameCount int       `json:"frame_count"`
	MasksKey   string    `json:"masks_key,omitempty"`
	Error      string    `json:"error,omitempty"`
}
