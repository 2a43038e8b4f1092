// README: RabbitMQ publisher for pickup completion facts consumed by reward and analytics services.
package events

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/satya1234msn/clean-green-app-sub000/internal/types"
)

const (
	exchange            = "pickup.events"
	completedRoutingKey = "pickup.completed"
)

type CompletedEvent struct {
	PickupID    types.ID  `json:"pickup_id"`
	RequesterID types.ID  `json:"requester_id"`
	Points      int       `json:"points"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type Publisher struct {
	ch  *amqp.Channel
	log *zap.Logger
}

// NewPublisher declares the events exchange on the given connection.
func NewPublisher(conn *amqp.Connection, log *zap.Logger) (*Publisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, err
	}
	return &Publisher{ch: ch, log: log}, nil
}

// PickupCompleted emits the completion fact. Best-effort: the transition has
// already committed, so a publish failure is logged and dropped rather than
// surfaced to the agent.
func (p *Publisher) PickupCompleted(ctx context.Context, pickupID, requesterID types.ID, points int) {
	body, err := json.Marshal(CompletedEvent{
		PickupID:    pickupID,
		RequesterID: requesterID,
		Points:      points,
		OccurredAt:  time.Now(),
	})
	if err != nil {
		p.log.Error("encode completion event", zap.Error(err))
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	err = p.ch.PublishWithContext(pubCtx, exchange, completedRoutingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Timestamp:   time.Now(),
	})
	if err != nil {
		p.log.Error("publish completion event", zap.String("pickup_id", string(pickupID)), zap.Error(err))
	}
}
