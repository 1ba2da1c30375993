package bus

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestQueueNaming(t *testing.T) {
	if got, want := requestQueue("submission-execute"), "submission-execute.request"; got != want {
		t.Fatalf("requestQueue = %q, want %q", got, want)
	}
	if got, want := replyQueue("submission-execute", "instance-1"), "submission-execute.reply.instance-1"; got != want {
		t.Fatalf("replyQueue = %q, want %q", got, want)
	}
}

func TestExtractHeader(t *testing.T) {
	t.Run("present header is returned raw", func(t *testing.T) {
		d := amqp.Delivery{Headers: amqp.Table{"header": `{"projectName":"foo"}`}}
		got := extractHeader(d)
		if string(got) != `{"projectName":"foo"}` {
			t.Fatalf("unexpected header bytes: %s", got)
		}
	})

	t.Run("missing header returns nil", func(t *testing.T) {
		d := amqp.Delivery{Headers: amqp.Table{}}
		if got := extractHeader(d); got != nil {
			t.Fatalf("expected nil, got %s", got)
		}
	})

	t.Run("non-string header value returns nil", func(t *testing.T) {
		d := amqp.Delivery{Headers: amqp.Table{"header": 123}}
		if got := extractHeader(d); got != nil {
			t.Fatalf("expected nil, got %s", got)
		}
	})
}
