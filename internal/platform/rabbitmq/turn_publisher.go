package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"ragweaver/internal/model"
)

// TurnPublisher sends chat turns to the persist queue. Publish returns only
// after the broker has confirmed the message.
type TurnPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewTurnPublisher(conn *amqp.Connection, queueName string) *TurnPublisher {
	return &TurnPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *TurnPublisher) Publish(ctx context.Context, turn model.ChatTurn) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("enable publisher confirms failed: %w", err)
	}

	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal chat turn failed: %w", err)
	}

	confirmation, err := ch.PublishWithDeferredConfirmWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
			Timestamp:    turn.CreatedAt,
		},
	)
	if err != nil {
		return fmt.Errorf("publish chat turn failed: %w", err)
	}
	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait publish confirm failed: %w", err)
	}
	if !acked {
		return fmt.Errorf("broker rejected chat turn")
	}
	return nil
}
