package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"ragweaver/internal/model"
)

type TurnWriter interface {
	AppendTurn(ctx context.Context, turn *model.ChatTurn) error
}

// TurnPersistWorker drains the chat turn queue into the history store.
// Prefetch is 1 so turns are written in publish order.
type TurnPersistWorker struct {
	conn      *amqp.Connection
	writer    TurnWriter
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTurnPersistWorker(conn *amqp.Connection, writer TurnWriter, queueName string) *TurnPersistWorker {
	return &TurnPersistWorker{
		conn:      conn,
		writer:    writer,
		queueName: queueName,
	}
}

func (w *TurnPersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.handle(workerCtx, d)
			}
		}
	}()

	return nil
}

// handle acks persisted turns. A failed write is retried once through the
// queue; undecodable payloads are dropped.
func (w *TurnPersistWorker) handle(ctx context.Context, d amqp.Delivery) {
	var turn model.ChatTurn
	if err := json.Unmarshal(d.Body, &turn); err != nil {
		logrus.WithError(err).Error("worker decode chat turn failed")
		_ = d.Nack(false, false)
		return
	}

	turn.ID = 0
	if err := w.writer.AppendTurn(ctx, &turn); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id":  turn.SessionID,
			"role":        turn.Role,
			"redelivered": d.Redelivered,
		}).Error("worker persist chat turn failed")
		_ = d.Nack(false, !d.Redelivered)
		return
	}

	_ = d.Ack(false)
}

func (w *TurnPersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
