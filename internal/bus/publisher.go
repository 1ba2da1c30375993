package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher implements the typed request/reply client described in spec
// §9: publish returns a future keyed on correlation id; a single
// reply-consumer goroutine per operation demultiplexes incoming messages
// into waiting futures.
type Publisher struct {
	ch         *amqp.Channel
	instanceID string
	logger     *slog.Logger

	mu      sync.Mutex
	pending map[string]chan reply
}

type reply struct {
	body []byte
}

// NewPublisher opens a channel on conn and starts a reply consumer for
// each operation in ops. instanceID scopes this publisher's reply queues
// so multiple front-service instances don't steal each other's replies.
func NewPublisher(conn *Connection, instanceID string, ops []string, logger *slog.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	p := &Publisher{ch: ch, instanceID: instanceID, logger: logger, pending: make(map[string]chan reply)}

	for _, op := range ops {
		if _, err := declareQueue(ch, requestQueue(op)); err != nil {
			return nil, fmt.Errorf("declare request queue for %s: %w", op, err)
		}
		replyQueueName := replyQueue(op, instanceID)
		if _, err := declareQueue(ch, replyQueueName); err != nil {
			return nil, fmt.Errorf("declare reply queue for %s: %w", op, err)
		}
		deliveries, err := ch.Consume(replyQueueName, "", false, true, false, false, nil)
		if err != nil {
			return nil, fmt.Errorf("consume reply queue for %s: %w", op, err)
		}
		go p.consumeReplies(op, deliveries)
	}
	return p, nil
}

func (p *Publisher) consumeReplies(op string, deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		p.mu.Lock()
		ch, ok := p.pending[d.CorrelationId]
		if ok {
			delete(p.pending, d.CorrelationId)
		}
		p.mu.Unlock()

		if !ok {
			p.logger.Warn("bus: orphan reply discarded", "op", op, "correlationId", d.CorrelationId)
			_ = d.Ack(false)
			continue
		}
		ch <- reply{body: d.Body}
		_ = d.Ack(false)
	}
}

// Request publishes header (marshaled to JSON and carried in the message
// headers table) and body on <op>.request, and blocks for a reply on this
// publisher's instance-scoped reply queue until timeout elapses or ctx is
// canceled. On timeout the pending future is discarded so a late reply is
// dropped as an orphan rather than delivered to a new caller.
func (p *Publisher) Request(ctx context.Context, op string, header any, body []byte, timeout time.Duration) ([]byte, error) {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshal bus header: %w", err)
	}

	correlationID := uuid.NewString()
	replyCh := make(chan reply, 1)
	p.mu.Lock()
	p.pending[correlationID] = replyCh
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, correlationID)
		p.mu.Unlock()
	}()

	err = p.ch.PublishWithContext(ctx, "", requestQueue(op), false, false, amqp.Publishing{
		ContentType:   "application/octet-stream",
		CorrelationId: correlationID,
		ReplyTo:       replyQueue(op, p.instanceID),
		Headers:       amqp.Table{"header": string(headerJSON)},
		Body:          body,
	})
	if err != nil {
		return nil, fmt.Errorf("publish %s request: %w", op, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-replyCh:
		return r.body, nil
	case <-timer.C:
		return nil, ErrTimeoutWaitingForRunner
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PublishOneWay publishes header with no expectation of a reply, used for
// project-removal. The JSON rides in the message headers table, where the
// consumer reads it, and is also carried as the body.
func (p *Publisher) PublishOneWay(ctx context.Context, op string, header any) error {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshal bus header: %w", err)
	}
	if _, err := declareQueue(p.ch, requestQueue(op)); err != nil {
		return fmt.Errorf("declare request queue for %s: %w", op, err)
	}
	return p.ch.PublishWithContext(ctx, "", requestQueue(op), false, false, amqp.Publishing{
		ContentType: "application/json",
		Headers:     amqp.Table{"header": string(headerJSON)},
		Body:        headerJSON,
	})
}

func requestQueue(op string) string { return op + ".request" }
func replyQueue(op, instanceID string) string {
	return op + ".reply." + instanceID
}
