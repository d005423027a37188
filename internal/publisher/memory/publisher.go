// Package memory records ingestion notifications in process. Payloads are
// JSON-encoded the same way the Pub/Sub publisher encodes them, so a payload
// that would fail on the wire fails here too.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	ID      string
	Topic   string
	Payload any
	Data    []byte
}

// Publisher keeps every published message in order.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
	err      error
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// FailWith makes subsequent publishes return err. Pass nil to recover.
func (p *Publisher) FailWith(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// Publish encodes payload and records it under topic.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	id := fmt.Sprintf("memory-%d", len(p.messages)+1)
	p.messages = append(p.messages, PublishedMessage{ID: id, Topic: topic, Payload: payload, Data: data})
	return id, nil
}

// Messages returns a copy of every recorded message.
func (p *Publisher) Messages() []PublishedMessage {
	return p.filter(func(PublishedMessage) bool { return true })
}

// Topic returns the recorded messages published to topic.
func (p *Publisher) Topic(topic string) []PublishedMessage {
	return p.filter(func(m PublishedMessage) bool { return m.Topic == topic })
}

func (p *Publisher) filter(keep func(PublishedMessage) bool) []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, 0, len(p.messages))
	for _, m := range p.messages {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}
