package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends AuthEvents to the auth.events queue.  Each call dials the
// broker, declares the queue (idempotent) and publishes one persistent
// message.  Errors are logged and returned so callers can ignore them without
// interrupting the request.
type Publisher struct {
	URL         string
	DialTimeout time.Duration
	Logger      *slog.Logger
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, logger *slog.Logger) *Publisher {
	return &Publisher{URL: url, DialTimeout: 2 * time.Second, Logger: logger}
}

// Publish delivers ev.
func (p *Publisher) Publish(ctx context.Context, ev AuthEvent) error {
	msg, err := newPublishing(ev, time.Now())
	if err != nil {
		p.Logger.Error("rabbitmq: marshal event failed", "type", ev.Type, "err", err)
		return err
	}

	conn, err := amqp.DialConfig(p.URL, amqp.Config{Dial: amqp.DefaultDial(p.DialTimeout)})
	if err != nil {
		p.Logger.Warn("rabbitmq: dial failed", "err", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Logger.Warn("rabbitmq: channel open failed", "err", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := declareAuthQueue(ch); err != nil {
		p.Logger.Warn("rabbitmq: queue declare failed", "err", err)
		return err
	}

	if err := ch.PublishWithContext(ctx,
		"",              // default exchange
		AuthEventsQueue, // routing key = queue name
		false,           // mandatory
		false,           // immediate
		msg,
	); err != nil {
		p.Logger.Warn("rabbitmq: publish failed", "type", ev.Type, "err", err)
		return err
	}
	return nil
}

func newPublishing(ev AuthEvent, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal %s: %w", ev.Type, err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Type:         ev.Type,
		Timestamp:    now.UTC(),
		Body:         body,
	}, nil
}

// declareAuthQueue makes sure the durable auth.events queue exists.
func declareAuthQueue(ch *amqp.Channel) error {
	_, err := ch.QueueDeclare(
		AuthEventsQueue, // name
		true,            // durable
		false,           // autoDelete
		false,           // exclusive
		false,           // noWait
		nil,             // args
	)
	return err
}
