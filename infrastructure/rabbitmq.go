package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"cv-shortlist/domain"
)

const publishTimeout = 5 * time.Second

// RabbitMQ publishes job opening events to a durable topic exchange and consumes
// analysis requests from it.
type RabbitMQ struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	log      logrus.FieldLogger
}

func NewRabbitMQ(url, exchange string, log logrus.FieldLogger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	log.WithField("exchange", exchange).Info("connected to RabbitMQ")
	return &RabbitMQ{conn: conn, channel: ch, exchange: exchange, log: log.WithField("component", "rabbitmq")}, nil
}

// Publish sends the event under its routing key.
func (r *RabbitMQ) Publish(ctx context.Context, event domain.JobOpeningEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return r.channel.PublishWithContext(
		ctx,
		r.exchange,
		event.RoutingKey(),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
}

// ConsumeAnalysisRequests binds queue to analysis requested events and calls handler for
// each of them until ctx is done or the broker closes the delivery channel.
func (r *RabbitMQ) ConsumeAnalysisRequests(ctx context.Context, queue string, handler func(domain.JobOpeningEvent)) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	routingKey := domain.JobOpeningEvent{Type: domain.EventAnalysisRequested}.RoutingKey()
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, routingKey, r.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", queue, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return err
	}

	msgs, err := ch.Consume(
		queue,
		"",
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logger := r.log.WithFields(logrus.Fields{"queue": queue, "routing_key": routingKey})
	logger.Info("consuming analysis requests")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}

			event, err := decodeJobOpeningEvent(msg.Body)
			if err != nil {
				logger.WithError(err).Warn("dropping invalid message")
				_ = msg.Nack(false, false)
				continue
			}
			handler(event)
			_ = msg.Ack(false)
		}
	}
}

func (r *RabbitMQ) Close() error {
	if err := r.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		r.log.WithError(err).Warn("failed to close channel")
	}
	return r.conn.Close()
}

func decodeJobOpeningEvent(body []byte) (domain.JobOpeningEvent, error) {
	var event domain.JobOpeningEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return event, fmt.Errorf("invalid event format: %w", err)
	}
	if event.JobOpeningID == "" {
		return event, errors.New("event has no job opening id")
	}
	switch event.Type {
	case domain.EventAnalysisRequested, domain.EventAnalysisCompleted:
		return event, nil
	default:
		return event, fmt.Errorf("unknown event type %q", event.Type)
	}
}
