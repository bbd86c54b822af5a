package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventVoteCast          = "vote.cast"
	EventSubmissionCreated = "submission.created"
	EventSubmissionDecided = "submission.decided"
	EventRatingChanged     = "rating.changed"
	EventSessionCompleted  = "session.completed"
	EventSessionsPaired    = "sessions.paired"

	// RoutingWeeklyPairing is the trigger the scheduler publishes.
	RoutingWeeklyPairing = "pairing.weekly"
)

// Publisher emits domain events after their transaction has committed.
type Publisher interface {
	Publish(eventType string, payload any) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) error { return nil }

type EventPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewEventPublisher(amqpURL, exchange string) (*EventPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &EventPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *EventPublisher) Publish(eventType string, payload any) error {
	body, err := json.Marshal(map[string]any{
		"type":       eventType,
		"payload":    payload,
		"occurredAt": time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	// the event type doubles as the topic routing key
	return p.channel.PublishWithContext(ctx, p.exchange, eventType, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

func (p *EventPublisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// PairingTrigger is the body of a weekly pairing message. An empty GroupID
// means every group.
type PairingTrigger struct {
	GroupID string `json:"groupId"`
}

// PairingConsumer turns at-least-once scheduler messages into calls to the
// idempotent pairing entry point.
type PairingConsumer struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	exchange string
	run      func(ctx context.Context, t PairingTrigger) error
	shutdown chan struct{}
	wg       sync.WaitGroup
}

func NewPairingConsumer(amqpURL, exchange, queue string, run func(context.Context, PairingTrigger) error) (*PairingConsumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}
	return &PairingConsumer{
		conn:     conn,
		channel:  ch,
		queue:    queue,
		exchange: exchange,
		run:      run,
		shutdown: make(chan struct{}),
	}, nil
}

func (c *PairingConsumer) Start() error {
	if err := c.channel.ExchangeDeclare(c.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", c.exchange, err)
	}
	if _, err := c.channel.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := c.channel.QueueBind(c.queue, RoutingWeeklyPairing, c.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", c.queue, err)
	}
	msgs, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consume(msgs)
	}()
	slog.Info("pairing consumer started", "queue", c.queue, "exchange", c.exchange)
	return nil
}

func (c *PairingConsumer) consume(msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-c.shutdown:
			return
		case msg, ok := <-msgs:
			if !ok {
				slog.Warn("pairing consumer channel closed")
				return
			}
			if err := c.handle(msg.Body); err != nil {
				slog.Error("pairing trigger failed", "error", err)
				if err := msg.Nack(false, true); err != nil {
					slog.Error("nack failed", "error", err)
				}
				continue
			}
			if err := msg.Ack(false); err != nil {
				slog.Error("ack failed", "error", err)
			}
		}
	}
}

func (c *PairingConsumer) handle(body []byte) error {
	var t PairingTrigger
	if len(body) > 0 {
		if err := json.Unmarshal(body, &t); err != nil {
			// a malformed trigger can never succeed; drop it
			slog.Warn("discarding malformed pairing trigger", "error", err)
			return nil
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := c.run(ctx, t); err != nil {
		if ruleKind(err) != "" {
			// unknown group or no topics: redelivery cannot fix it
			slog.Warn("discarding pairing trigger", "group_id", t.GroupID, "error", err)
			return nil
		}
		return err
	}
	return nil
}

func (c *PairingConsumer) Close() error {
	close(c.shutdown)
	c.wg.Wait()
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			slog.Warn("closing channel", "error", err)
		}
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
