// Package queue wraps the AMQP connection the broker consumes from and
// publishes replies to.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/onnwee/reddit-broker/internal/broker"
	"github.com/onnwee/reddit-broker/internal/config"
	"github.com/onnwee/reddit-broker/internal/logger"
	"github.com/onnwee/reddit-broker/internal/secrets"
)

const connectMaxRetries = 4

// Session is a live AMQP connection plus the single channel the broker uses.
// It implements broker.MessageQueue.
type Session struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	inbound string
	log     *slog.Logger
}

// Connect dials the configured AMQP server, retrying with exponential backoff
// before giving up, then opens a channel and declares the inbound queue.
// Prefetch is one: the broker holds at most one unacked delivery.
func Connect(ctx context.Context, cfg *config.Config) (*Session, error) {
	log := logger.WithComponent("queue")
	url := cfg.AMQPURL()

	var conn *amqp.Connection
	dial := func() error {
		c, err := amqp.Dial(url)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("failed to connect to the AMQP server, will retry",
			"url", secrets.MaskURL(url), "wait", wait, "error", err)
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), connectMaxRetries), ctx)
	if err := backoff.RetryNotify(dial, bo, notify); err != nil {
		return nil, fmt.Errorf("connect to AMQP server: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open AMQP channel: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set AMQP prefetch: %w", err)
	}

	s := &Session{conn: conn, ch: ch, inbound: cfg.AMQPQueue, log: log}
	if err := s.Declare(cfg.AMQPQueue); err != nil {
		conn.Close()
		return nil, err
	}
	log.Info("connected to the AMQP server", "host", cfg.AMQPHost, "queue", cfg.AMQPQueue)
	return s, nil
}

// Consume starts delivering messages from the inbound queue. The returned
// channel closes when the connection drops, which the dispatch loop treats as
// fatal.
func (s *Session) Consume(ctx context.Context) (<-chan broker.Delivery, error) {
	tag := "reddit-broker-" + uuid.NewString()
	msgs, err := s.ch.Consume(s.inbound, tag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %q: %w", s.inbound, err)
	}

	out := make(chan broker.Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- broker.Delivery{Tag: msg.DeliveryTag, Body: msg.Body}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Declare creates the named queue if it does not exist yet.
func (s *Session) Declare(name string) error {
	if _, err := s.ch.QueueDeclare(name, false, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %q: %w", name, err)
	}
	return nil
}

// Publish sends a JSON body to the named queue via the default exchange.
func (s *Session) Publish(name string, body []byte) error {
	err := s.ch.PublishWithContext(context.Background(), "", name, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("publish to %q: %w", name, err)
	}
	return nil
}

// Ack acknowledges a delivery.
func (s *Session) Ack(tag uint64) error {
	return s.ch.Ack(tag, false)
}

// Nack rejects a delivery, optionally requeueing it.
func (s *Session) Nack(tag uint64, requeue bool) error {
	return s.ch.Nack(tag, false, requeue)
}

// Close tears the channel and connection down.
func (s *Session) Close() error {
	if err := s.ch.Close(); err != nil {
		s.conn.Close()
		return err
	}
	return s.conn.Close()
}
