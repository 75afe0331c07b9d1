/**
 * @description
 * This package provides a simple producer for publishing messages to RabbitMQ.
 * It encapsulates the logic for connecting to RabbitMQ and publishing a message
 * to a specific exchange and routing key. The entries-service publishes two
 * event families: entry submission events for downstream consumers, and
 * reconciliation alerts for the case where money moved but records are
 * incomplete.
 *
 * @dependencies
 * - context, encoding/json, time: Standard Go libraries.
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

const entryEventsExchange = "entry_events"

// EntrySubmittedEvent is published after every successful submission, single or batch.
type EntrySubmittedEvent struct {
	UserID        uuid.UUID `json:"user_id"`
	CompetitionID uuid.UUID `json:"competition_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	EntriesCount  int       `json:"entries_count"`
	PaidEntries   int       `json:"paid_entries"`
	FreeEntries   int       `json:"free_entries"`
	AmountCents   int64     `json:"amount_cents"`
	Timestamp     time.Time `json:"timestamp"`
}

// ReconciliationAlertEvent is published when a charge succeeded but the
// corresponding records could not be persisted. These require manual follow-up;
// the charge is never rolled back automatically.
type ReconciliationAlertEvent struct {
	UserID          uuid.UUID `json:"user_id"`
	CompetitionID   uuid.UUID `json:"competition_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	AmountCents     int64     `json:"amount_cents"`
	Reason          string    `json:"reason"`
	Timestamp       time.Time `json:"timestamp"`
}

// EventProducer holds the RabbitMQ connection and channel for publishing messages.
type EventProducer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// Publisher is the interface implemented by types that can publish events.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	PublishEntrySubmitted(ctx context.Context, event EntrySubmittedEvent) error
	PublishReconciliationAlert(ctx context.Context, event ReconciliationAlertEvent) error
	Close()
}

// EventProducerFallback is a minimal no-op publisher used when RabbitMQ is unavailable at startup.
type EventProducerFallback struct{}

func (p *EventProducerFallback) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	log.Printf("level=warn component=rabbitmq_producer mode=fallback msg=\"publish skipped\" exchange=%s routing_key=%s", exchange, routingKey)
	return nil
}

func (p *EventProducerFallback) PublishEntrySubmitted(ctx context.Context, event EntrySubmittedEvent) error {
	log.Printf("level=warn component=rabbitmq_producer mode=fallback msg=\"entry submitted event skipped\" user_id=%s competition_id=%s", event.UserID, event.CompetitionID)
	return nil
}

// PublishReconciliationAlert in fallback mode still surfaces the alert on the log
// stream; losing these silently would defeat their purpose.
func (p *EventProducerFallback) PublishReconciliationAlert(ctx context.Context, event ReconciliationAlertEvent) error {
	log.Printf("CRITICAL: component=rabbitmq_producer mode=fallback msg=\"reconciliation alert could not be published\" user_id=%s competition_id=%s payment_intent_id=%s amount_cents=%d reason=%q",
		event.UserID, event.CompetitionID, event.PaymentIntentID, event.AmountCents, event.Reason)
	return nil
}

func (p *EventProducerFallback) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	// If any stray characters precede the scheme, slice from first occurrence of amqp
	idx := strings.Index(strings.ToLower(clean), "amqp")
	if idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewEventProducer creates and returns a new EventProducer.
func NewEventProducer(amqpURL string) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	// Use a bounded dial timeout so startup does not hang indefinitely
	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &EventProducer{conn: conn, channel: ch}, nil
}

// Publish sends a message to a specific exchange with a routing key.
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	// Ensure the exchange exists (durable topic)
	if err := p.channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	); err != nil {
		log.Printf("level=warn component=rabbitmq_producer msg=\"exchange declare failed; reopening channel\" exchange=%s err=%v", exchange, err)
		// Attempt simple channel reopen once
		if p.conn != nil {
			if ch, chErr := p.conn.Channel(); chErr == nil {
				p.channel = ch
				if err2 := p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err2 != nil {
					return err2
				}
			} else {
				return chErr
			}
		} else {
			return err
		}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		log.Printf("level=error component=rabbitmq_producer msg=\"json marshal failed\" exchange=%s routing_key=%s err=%v", exchange, routingKey, err)
		return err
	}

	err = p.channel.PublishWithContext(ctx,
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        jsonBody,
		},
	)
	if err != nil {
		log.Printf("level=warn component=rabbitmq_producer msg=\"publish failed; reopening channel\" exchange=%s routing_key=%s err=%v", exchange, routingKey, err)
		// One-shot retry: reopen channel and try again
		if p.conn != nil {
			if ch, chErr := p.conn.Channel(); chErr == nil {
				p.channel = ch
				// re-declare exchange and retry
				if exErr := p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); exErr == nil {
					err = p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp091.Publishing{
						ContentType: "application/json",
						Timestamp:   time.Now(),
						Body:        jsonBody,
					})
					if err == nil {
						return nil
					}
				}
			}
		}
		return err
	}
	return nil
}

// PublishEntrySubmitted publishes an entry submission event to the entry_events exchange.
func (p *EventProducer) PublishEntrySubmitted(ctx context.Context, event EntrySubmittedEvent) error {
	return p.Publish(ctx, entryEventsExchange, "entry.submitted", event)
}

// PublishReconciliationAlert publishes a reconciliation alert to the entry_events exchange.
func (p *EventProducer) PublishReconciliationAlert(ctx context.Context, event ReconciliationAlertEvent) error {
	return p.Publish(ctx, entryEventsExchange, "reconciliation.alert", event)
}

// Close gracefully closes the channel and connection to RabbitMQ.
func (p *EventProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
