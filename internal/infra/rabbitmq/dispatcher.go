package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aryankeluskar/jigglewiggle-deployed/internal/domain/entity"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/domain/port"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/framezip"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Dispatcher fans chunks out to remote workers over the chunk queue. Frame
// archives travel through object storage; the broker only carries object
// keys. Results are gathered on an exclusive per-request reply queue and
// reassembled by chunk index, so worker completion order never matters.
type Dispatcher struct {
	conn      *amqp.Connection
	queue     string
	storage   port.ChunkStorage
	segmenter port.ChunkSegmenter
	timeout   time.Duration
	logger    *zap.Logger
}

func NewDispatcher(conn *amqp.Connection, chunkQueue string, storage port.ChunkStorage, segmenter port.ChunkSegmenter, timeout time.Duration, logger *zap.Logger) (*Dispatcher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(chunkQueue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare chunk queue: %w", err)
	}

	return &Dispatcher{
		conn:      conn,
		queue:     chunkQueue,
		storage:   storage,
		segmenter: segmenter,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, chunks []entity.Chunk, width, height int) ([][]byte, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	// A lone chunk skips the broker entirely.
	if len(chunks) == 1 {
		masks, err := d.segmenter.SegmentChunk(ctx, chunks[0].Frames, width, height)
		if err != nil {
			return nil, &entity.InferenceError{ChunkIndex: chunks[0].Index, Err: err}
		}
		return masks, nil
	}

	// Bound the whole remote round trip: a stuck worker must not hold the
	// request open forever.
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	jobID := uuid.New()
	log := d.logger.With(zap.String("dispatch_id", jobID.String()))

	defer func() {
		if err := d.storage.RemoveChunkArtifacts(context.WithoutCancel(ctx), jobID.String()); err != nil {
			log.Warn("failed to clean up chunk artifacts", zap.Error(err))
		}
	}()

	ch, err := d.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	replyQueue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare reply queue: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, replyQueue.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume reply queue: %w", err)
	}

	for _, chunk := range chunks {
		archive, err := framezip.Pack(chunk.Frames, ".jpg")
		if err != nil {
			return nil, fmt.Errorf("pack chunk %d: %w", chunk.Index, err)
		}

		framesKey := fmt.Sprintf("%s/frames/%05d.zip", jobID, chunk.Index)
		if err := d.storage.UploadFrames(ctx, framesKey, archive); err != nil {
			return nil, fmt.Errorf("upload chunk %d: %w", chunk.Index, err)
		}

		msg := entity.ChunkJobMessage{
			JobID:      jobID,
			ChunkIndex: chunk.Index,
			FrameCount: len(chunk.Frames),
			FramesKey:  framesKey,
			Width:      width,
			Height:     height,
			ReplyTo:    replyQueue.Name,
		}
		body, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("marshal chunk job %d: %w", chunk.Index, err)
		}

		err = ch.PublishWithContext(ctx, "", d.queue, false, false, amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
		if err != nil {
			return nil, fmt.Errorf("publish chunk job %d: %w", chunk.Index, err)
		}
	}

	log.Info("chunk jobs published", zap.Int("chunks", len(chunks)))

	results := make([][][]byte, len(chunks))
	pending := len(chunks)
	for pending > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return nil, fmt.Errorf("reply queue closed with %d chunks pending", pending)
			}

			var result entity.ChunkResultMessage
			if err := json.Unmarshal(delivery.Body, &result); err != nil {
				return nil, fmt.Errorf("decode chunk result: %w", err)
			}
			if result.ChunkIndex < 0 || result.ChunkIndex >= len(chunks) {
				return nil, fmt.Errorf("chunk result index %d out of range", result.ChunkIndex)
			}
			if result.Error != "" {
				return nil, &entity.InferenceError{ChunkIndex: result.ChunkIndex, Err: errors.New(result.Error)}
			}

			archive, err := d.storage.DownloadMasks(ctx, result.MasksKey)
			if err != nil {
				return nil, fmt.Errorf("download masks for chunk %d: %w", result.ChunkIndex, err)
			}
			masks, err := framezip.Unpack(archive)
			if err != nil {
				return nil, fmt.Errorf("unpack masks for chunk %d: %w", result.ChunkIndex, err)
			}
			if len(masks) != len(chunks[result.ChunkIndex].Frames) {
				return nil, fmt.Errorf("chunk %d returned %d masks for %d frames",
					result.ChunkIndex, len(masks), len(chunks[result.ChunkIndex].Frames))
			}

			results[result.ChunkIndex] = masks
			pending--
		}
	}

	var all [][]byte
	for _, masks := range results {
		all = append(all, masks...)
	}
	return all, nil
}
