package reload

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Notify announces a documentation update on the docs-updated topic so that
// every running instance reloads its index. Messages are keyed by source so
// updates from one source stay ordered.
func Notify(ctx context.Context, p EventPublisher, msg DocsUpdated) error {
	if msg.Source == "" {
		return fmt.Errorf("docs-updated message needs a source")
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if err := p.Publish(ctx, kafka.Event{Key: msg.Source, Value: msg}); err != nil {
		return fmt.Errorf("publishing docs-updated for %s: %w", msg.Source, err)
	}
	return nil
}
