package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Job records one segmentation request from received bytes to mask video.
type Job struct {
	ID             uuid.UUID
	Status         JobStatus
	VideoSize      int64
	Width          int
	Height         int
	FrameRate      FrameRate
	FrameCount     int
	ChunkCount     int
	ProcessingTime float64
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

func NewJob(videoSize int64) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.New(),
		Status:    JobStatusPending,
		VideoSize: videoSize,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.UpdatedAt = time.Now().UTC()
}

func (j *Job) MarkCompleted(frameCount, chunkCount int, rate FrameRate, processingTime float64) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.FrameCount = frameCount
	j.ChunkCount = chunkCount
	j.FrameRate = rate
	j.ProcessingTime = processingTime
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *Job) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}
