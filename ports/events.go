package ports

import "context"

// EventPublisher publishes session lifecycle events to other instances and
// interested services
type EventPublisher interface {
	PublishSessionCreated(ctx context.Context, sessionID, address string) error
	PublishSessionDestroyed(ctx context.Context, sessionID, address string) error
}
