package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/layer-3/sigverifier/ports"
)

// Topic carries every session lifecycle event
const Topic = "sigverifier.sessions"

const (
	TypeSessionCreated   = "session.created"
	TypeSessionDestroyed = "session.destroyed"
)

// SessionEvent is the JSON payload of a lifecycle message. Session tokens
// are never part of it.
type SessionEvent struct {
	Type          string    `json:"type"`
	SessionID     string    `json:"sessionId"`
	WalletAddress string    `json:"walletAddress"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// WatermillPublisher implements ports.EventPublisher using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
	clock     ports.Clock
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher, clock ports.Clock) *WatermillPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     Topic,
		clock:     clock,
	}
}

// PublishSessionCreated announces a new session
func (p *WatermillPublisher) PublishSessionCreated(ctx context.Context, sessionID, address string) error {
	return p.publish(ctx, TypeSessionCreated, sessionID, address)
}

// PublishSessionDestroyed announces a logout
func (p *WatermillPublisher) PublishSessionDestroyed(ctx context.Context, sessionID, address string) error {
	return p.publish(ctx, TypeSessionDestroyed, sessionID, address)
}

func (p *WatermillPublisher) publish(ctx context.Context, eventType, sessionID, address string) error {
	event := SessionEvent{
		Type:          eventType,
		SessionID:     sessionID,
		WalletAddress: address,
		OccurredAt:    p.clock.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("type", eventType)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

var _ ports.EventPublisher = (*WatermillPublisher)(nil)
