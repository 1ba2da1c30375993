package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one request's header and body, returning the bytes to
// publish back on the reply queue. A returned error is logged and reported
// to the caller as an ErrorReply; it never crashes the consumer.
type Handler func(ctx context.Context, headerJSON []byte, body []byte) ([]byte, error)

// Consumer reads from a single operation's request queue with prefetch
// bounded to match the runner's concurrency cap, invokes handler, and acks
// only after the reply has been published (or queued as an error reply).
// Run dispatches deliveries across a pool of workers sized to prefetch, so
// up to prefetch handlers can be in flight at once instead of serializing
// every delivery behind the slowest handler.
type Consumer struct {
	ch      *amqp.Channel
	op      string
	handler Handler
	logger  *slog.Logger
	workers int
}

// NewConsumer declares op's request queue, sets channel prefetch to
// prefetch, and returns a Consumer ready to Run.
func NewConsumer(conn *Connection, op string, prefetch int, handler Handler, logger *slog.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if _, err := declareQueue(ch, requestQueue(op)); err != nil {
		return nil, fmt.Errorf("declare request queue for %s: %w", op, err)
	}
	workers := prefetch
	if workers <= 0 {
		workers = 1
	}
	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			return nil, fmt.Errorf("set qos for %s: %w", op, err)
		}
	}
	return &Consumer{ch: ch, op: op, handler: handler, logger: logger, workers: workers}, nil
}

// Run blocks consuming deliveries until ctx is canceled, fanning them out
// across c.workers goroutines so multiple handler calls can be outstanding
// at once.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(requestQueue(c.op), "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s request queue: %w", c.op, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					c.handle(ctx, d)
				}
			}
		}()
	}
	wg.Wait()
	return nil
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	headerJSON := extractHeader(d)

	respBody, err := c.handler(ctx, headerJSON, d.Body)
	if err != nil {
		c.logger.Error("bus handler failed", "op", c.op, "error", err)
		respBody, _ = json.Marshal(ErrorReply{Status: "error", Kind: "INTERNAL", Message: err.Error()})
	}

	if d.ReplyTo != "" {
		if pubErr := c.ch.PublishWithContext(ctx, "", d.ReplyTo, false, false, amqp.Publishing{
			CorrelationId: d.CorrelationId,
			ContentType:   "application/json",
			Body:          respBody,
		}); pubErr != nil {
			c.logger.Error("bus: failed to publish reply", "op", c.op, "error", pubErr)
		}
	}
	if ackErr := d.Ack(false); ackErr != nil {
		c.logger.Error("bus: failed to ack delivery", "op", c.op, "error", ackErr)
	}
}

func extractHeader(d amqp.Delivery) []byte {
	raw, ok := d.Headers["header"]
	if !ok {
		return nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil
	}
	return []byte(s)
}
