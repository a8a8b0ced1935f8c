package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aryankeluskar/jigglewiggle-deployed/internal/domain/entity"
	amqp "github.com/rabbitmq/amqp091-go"
)

type Publisher struct {
	channel *amqp.Channel
}

func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	return &Publisher{channel: ch}, nil
}

// PublishResult delivers a chunk result to the dispatcher's reply queue via
// the default exchange.
func (p *Publisher) PublishResult(ctx context.Context, replyTo string, result entity.ChunkResultMessage) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal chunk result: %w", err)
	}

	return p.channel.PublishWithContext(ctx,
		"",
		replyTo,
		false, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now().UTC(),
		},
	)
}
