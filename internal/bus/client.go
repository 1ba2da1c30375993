// Package bus implements the AMQP-based request/reply protocol connecting
// the front service to the runner (spec §4.5): for each logical operation,
// a publisher on <op>.request awaits a correlated reply on its own
// instance-scoped <op>.reply.<instance> queue.
package bus

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection wraps a single AMQP connection and the channels opened on it.
type Connection struct {
	conn *amqp.Connection
}

// Dial connects to the AMQP broker at url.
func Dial(url string) (*Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp broker: %w", err)
	}
	return &Connection{conn: conn}, nil
}

// Channel opens a new AMQP channel on the connection.
func (c *Connection) Channel() (*amqp.Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	return ch, nil
}

// Close closes the underlying connection.
func (c *Connection) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// declareQueue declares a durable queue named name, creating it if absent.
func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(name, true, false, false, false, nil)
}
