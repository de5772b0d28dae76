// Package reload triggers index rebuilds when the documentation changes:
// on writes to a watched records file, or on docs-updated messages from
// Kafka. Triggers only call Reload; publishing and cache invalidation are
// the search service's concern.
package reload

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

// Reloader rebuilds and republishes the index.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Observer is told about every reload a trigger performs.
type Observer func(trigger string, err error)

// DocsUpdated is the payload published to the docs-updated topic after a
// documentation build.
type DocsUpdated struct {
	Source    string    `json:"source"`
	Version   string    `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// KafkaHandler returns a kafka.MessageHandler that reloads on every
// docs-updated message. Reload failures are logged and the message is
// committed anyway: the previous index keeps serving and the next update
// retries the build.
func KafkaHandler(r Reloader, observe Observer) kafka.MessageHandler {
	logger := slog.Default().With("component", "reload-kafka")
	return func(ctx context.Context, key []byte, value []byte) error {
		msg, err := kafka.DecodeJSON[DocsUpdated](value)
		if err != nil {
			logger.Warn("ignoring undecodable docs-updated message", "error", err)
			return nil
		}
		logger.Info("docs updated, reloading index", "source", msg.Source, "version", msg.Version)
		err = r.Reload(ctx)
		if err != nil {
			logger.Error("reload after docs update failed", "source", msg.Source, "error", err)
		}
		if observe != nil {
			observe("kafka", err)
		}
		return nil
	}
}
