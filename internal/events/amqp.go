package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"github.com/kalambet/jobhunter/internal/chat"
)

// DefaultExchange is the topic exchange session updates are published to.
const DefaultExchange = "session_updates"

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher announces completed chat exchanges on an AMQP topic exchange,
// routed by "session.<id>".
type Publisher struct {
	conn     *amqp.Connection
	exchange string
	open     func() (channel, error)

	mu     sync.Mutex
	closed bool
}

// Dial connects to the broker and declares the exchange.
func Dial(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declaring exchange %s: %w", exchange, err)
	}

	return &Publisher{
		conn:     conn,
		exchange: exchange,
		open: func() (channel, error) {
			ch, err := conn.Channel()
			if err != nil {
				return nil, err
			}
			return ch, nil
		},
	}, nil
}

// sessionUpdate is the message body consumers receive.
type sessionUpdate struct {
	Type string `json:"type"`
	chat.Exchange
}

// ExchangeCompleted publishes ex. Each publish uses a short-lived channel.
func (p *Publisher) ExchangeCompleted(_ context.Context, ex chat.Exchange) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return amqp.ErrClosed
	}

	body, err := json.Marshal(sessionUpdate{Type: "exchange_completed", Exchange: ex})
	if err != nil {
		return fmt.Errorf("encoding update: %w", err)
	}

	ch, err := p.open()
	if err != nil {
		return fmt.Errorf("opening channel: %w", err)
	}
	defer ch.Close()

	err = ch.Publish(p.exchange, RoutingKey(ex.SessionID), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ex.ID,
		Timestamp:    ex.Timestamp,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publishing update for session %s: %w", ex.SessionID, err)
	}
	return nil
}

// Close closes the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

// RoutingKey is the topic a session's updates are published under.
func RoutingKey(sessionID string) string {
	return "session." + sessionID
}
