package event

import (
	"context"
	"log/slog"
	"sync"
	"time"

	pkgkafka "github.com/harborline/storefront-search/pkg/kafka"
)

// Kafka topics carrying catalogue change notifications. Any change
// invalidates the whole snapshot, so every event funnels into one full
// resync.
const (
	TopicProductChanged = "storefront.catalogue.product.changed"
	TopicTermChanged    = "storefront.catalogue.term.changed"
)

// Reindexer triggers a full index rebuild.
type Reindexer interface {
	Resync(ctx context.Context) error
}

// Consumer turns catalogue change events into index resyncs. Bursts of
// change events are debounced so one import run causes one rebuild.
type Consumer struct {
	reindexer Reindexer
	logger    *slog.Logger
	debounce  time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewConsumer creates a catalogue change consumer. debounce <= 0 disables
// debouncing and resyncs inline.
func NewConsumer(reindexer Reindexer, debounce time.Duration, logger *slog.Logger) *Consumer {
	return &Consumer{
		reindexer: reindexer,
		logger:    logger,
		debounce:  debounce,
	}
}

// Handle processes one catalogue change event.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicProductChanged, TopicTermChanged:
		return c.scheduleResync(ctx, event)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

func (c *Consumer) scheduleResync(ctx context.Context, event *pkgkafka.Event) error {
	c.logger.InfoContext(ctx, "catalogue change received",
		slog.String("event_type", event.EventType),
		slog.String("aggregate_id", event.AggregateID),
	)

	if c.debounce <= 0 {
		return c.reindexer.Resync(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() {
		if err := c.reindexer.Resync(context.Background()); err != nil {
			c.logger.Error("resync after catalogue change failed",
				slog.String("error", err.Error()),
			)
		}
	})
	return nil
}
