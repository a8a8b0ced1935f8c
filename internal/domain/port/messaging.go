package port

import (
	"context"

	"github.com/aryankeluskar/jigglewiggle-deployed/internal/domain/entity"
)

// ResultPublisher sends a chunk worker's result back to the dispatcher's
// reply queue.
type ResultPublisher interface {
	PublishResult(ctx context.Context, replyTo string, result entity.ChunkResultMessage) error
}
