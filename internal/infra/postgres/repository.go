package postgres

import (
	"context"
	"fmt"

	"github.com/aryankeluskar/jigglewiggle-deployed/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	query := `
		INSERT INTO segmentation_jobs (
			id, status, video_size, width, height,
			frame_rate_num, frame_rate_den, frame_count, chunk_count,
			processing_time, error_message, created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.VideoSize, job.Width, job.Height,
		job.FrameRate.Num, job.FrameRate.Den, job.FrameCount, job.ChunkCount,
		job.ProcessingTime, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) Update(ctx context.Context, job *entity.Job) error {
	query := `
		UPDATE segmentation_jobs SET
			status=$2, width=$3, height=$4,
			frame_rate_num=$5, frame_rate_den=$6, frame_count=$7, chunk_count=$8,
			processing_time=$9, error_message=$10, updated_at=$11, completed_at=$12
		WHERE id=$1`

	_, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.Width, job.Height,
		job.FrameRate.Num, job.FrameRate.Den, job.FrameCount, job.ChunkCount,
		job.ProcessingTime, job.ErrorMessage, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	query := `
		SELECT id, status, video_size, width, height,
			frame_rate_num, frame_rate_den, frame_count, chunk_count,
			processing_time, error_message, created_at, updated_at, completed_at
		FROM segmentation_jobs WHERE id=$1`

	job := &entity.Job{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &status, &job.VideoSize, &job.Width, &job.Height,
		&job.FrameRate.Num, &job.FrameRate.Den, &job.FrameCount, &job.ChunkCount,
		&job.ProcessingTime, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("find job by id: %w", err)
	}
	job.Status = entity.JobStatus(status)
	return job, nil
}
