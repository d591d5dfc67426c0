package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// InboundMessage is one customer message received on the Facebook
// webhook, queued for the relay worker.
type InboundMessage struct {
	PageID    string    `json:"page_id"`
	PSID      string    `json:"psid"`
	MessageID string    `json:"message_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// queueSpec is one durable queue declaration in the relay topology.
type queueSpec struct {
	Name string
	Args amqp.Table
}

// Topology returns the three-queue layout for a relay queue: the main
// queue dead-letters to the DLQ, the retry queue dead-letters back to
// the main queue. Every process that declares these queues must use
// this exact argument set, or the broker rejects the re-declaration
// with PRECONDITION_FAILED.
func Topology(queue string) []queueSpec {
	return []queueSpec{
		{Name: queue + ".dlq", Args: nil},
		{Name: queue + ".retry", Args: amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": queue,
		}},
		{Name: queue, Args: amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": queue + ".dlq",
		}},
	}
}

// DeclareTopology declares the main, retry and DLQ queues on ch.
// Both the publisher and the relay worker go through here.
func DeclareTopology(ch *amqp.Channel, queue string) error {
	for _, q := range Topology(queue) {
		if _, err := ch.QueueDeclare(
			q.Name,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false,
			q.Args,
		); err != nil {
			return err
		}
	}
	return nil
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := DeclareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *Publisher) PublishInbound(ctx context.Context, msg InboundMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}
