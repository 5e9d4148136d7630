package event

import (
	"context"
	"log/slog"
	"time"

	pkgkafka "github.com/harborline/storefront-search/pkg/kafka"
)

// TopicIndexSynced announces a completed index rebuild to interested
// services (cache invalidators, dashboards).
const TopicIndexSynced = "storefront.search.synced"

const sourceName = "search"

// IndexSyncedData is the payload of an index synced event.
type IndexSyncedData struct {
	Items    int       `json:"items"`
	SyncedAt time.Time `json:"synced_at"`
}

// publisher is the subset of the Kafka producer the publisher needs.
type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// SyncedPublisher publishes index lifecycle events.
type SyncedPublisher struct {
	producer publisher
	logger   *slog.Logger
}

func NewSyncedPublisher(producer publisher, logger *slog.Logger) *SyncedPublisher {
	return &SyncedPublisher{producer: producer, logger: logger}
}

// PublishSynced announces a finished sync. Failures are logged, not
// returned; a missed notification never fails a sync.
func (p *SyncedPublisher) PublishSynced(ctx context.Context, items int) {
	data := IndexSyncedData{Items: items, SyncedAt: time.Now().UTC()}

	evt, err := pkgkafka.NewEvent(
		TopicIndexSynced, "search-index", "search_index", sourceName, data)
	if err != nil {
		p.logger.ErrorContext(ctx, "build index synced event failed",
			slog.String("error", err.Error()))
		return
	}

	if err := p.producer.Publish(ctx, TopicIndexSynced, evt); err != nil {
		p.logger.WarnContext(ctx, "publish index synced event failed",
			slog.String("error", err.Error()))
	}
}
