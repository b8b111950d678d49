package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/streadway/amqp"

	"github.com/kalambet/jobhunter/internal/chat"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type mockChannel struct {
	sent   *[]published
	err    error
	closed bool
}

func (c *mockChannel) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	*c.sent = append(*c.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *mockChannel) Close() error {
	c.closed = true
	return nil
}

func testPublisher(sent *[]published, pubErr error) (*Publisher, *[]*mockChannel) {
	var opened []*mockChannel
	p := &Publisher{
		exchange: DefaultExchange,
		open: func() (channel, error) {
			ch := &mockChannel{sent: sent, err: pubErr}
			opened = append(opened, ch)
			return ch, nil
		},
	}
	return p, &opened
}

func TestExchangeCompleted(t *testing.T) {
	var sent []published
	p, opened := testPublisher(&sent, nil)

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	err := p.ExchangeCompleted(context.Background(), chat.Exchange{
		ID:        "ex-1",
		SessionID: "s1",
		ToolUsed:  true,
		Results:   []chat.JobResult{{Title: "Go Engineer", URL: "https://indeed.com/1", Source: "Indeed"}},
		Timestamp: ts,
	})
	if err != nil {
		t.Fatalf("ExchangeCompleted: %v", err)
	}

	if len(sent) != 1 {
		t.Fatalf("published %d messages, want 1", len(sent))
	}
	m := sent[0]
	if m.exchange != "session_updates" || m.key != "session.s1" {
		t.Errorf("exchange/key = %q/%q", m.exchange, m.key)
	}
	if m.msg.ContentType != "application/json" || m.msg.MessageId != "ex-1" || !m.msg.Timestamp.Equal(ts) {
		t.Errorf("publishing = %+v", m.msg)
	}

	var body map[string]any
	if err := json.Unmarshal(m.msg.Body, &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["type"] != "exchange_completed" || body["session_id"] != "s1" || body["tool_used"] != true {
		t.Errorf("body = %v", body)
	}
	if results, _ := body["results"].([]any); len(results) != 1 {
		t.Errorf("results = %v", body["results"])
	}

	if !(*opened)[0].closed {
		t.Error("channel not closed after publish")
	}
}

func TestExchangeCompleted_PublishError(t *testing.T) {
	var sent []published
	p, _ := testPublisher(&sent, errors.New("channel closed"))

	if err := p.ExchangeCompleted(context.Background(), chat.Exchange{SessionID: "s1"}); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestExchangeCompleted_AfterClose(t *testing.T) {
	var sent []published
	p, _ := testPublisher(&sent, nil)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.ExchangeCompleted(context.Background(), chat.Exchange{SessionID: "s1"}); !errors.Is(err, amqp.ErrClosed) {
		t.Fatalf("err = %v, want amqp.ErrClosed", err)
	}
	if len(sent) != 0 {
		t.Error("published after close")
	}
}

func TestRoutingKey(t *testing.T) {
	if got := RoutingKey("abc-123"); got != "session.abc-123" {
		t.Errorf("RoutingKey = %q", got)
	}
}

var _ chat.Notifier = (*Publisher)(nil)
