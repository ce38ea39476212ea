package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/playhouse-booking/internal/model"
)

// Logger is the subset of the gommon logger used here.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Publisher sends booking events to RabbitMQ, dialing once per publish.
type Publisher struct {
	url   string
	queue string
	l     Logger
	now   func() time.Time
}

func NewPublisher(url string, l Logger) *Publisher {
	return &Publisher{url: url, queue: BookingConfirmedQueue, l: l, now: time.Now}
}

// BookingConfirmed satisfies booking.Notifier.
func (p *Publisher) BookingConfirmed(ctx context.Context, b model.Booking, pkg model.Package, slot model.TimeSlot) error {
	return p.Publish(ctx, NewBookingConfirmedEvent(b, pkg, slot, p.now()))
}

// Publish marshals ev and publishes it as a persistent message.
func (p *Publisher) Publish(ctx context.Context, ev BookingConfirmedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declareQueue(ch, p.queue); err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.Reference,
		Timestamp:    p.now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Reference, err)
	}
	p.l.Infof("published %s for booking %s", p.queue, ev.Reference)
	return nil
}

func declareQueue(ch *amqp.Channel, name string) error {
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	return nil
}
