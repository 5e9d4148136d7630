package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgkafka "github.com/harborline/storefront-search/pkg/kafka"
)

type fakeReindexer struct {
	calls atomic.Int64
	err   error
}

func (f *fakeReindexer) Resync(context.Context) error {
	f.calls.Add(1)
	return f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func changeEvent(t *testing.T, eventType string) *pkgkafka.Event {
	t.Helper()
	evt, err := pkgkafka.NewEvent(eventType, "product-1", "product", "catalogue", nil)
	require.NoError(t, err)
	return evt
}

func TestConsumer_Handle_ProductChangeResyncs(t *testing.T) {
	r := &fakeReindexer{}
	c := NewConsumer(r, 0, testLogger())

	require.NoError(t, c.Handle(context.Background(), changeEvent(t, TopicProductChanged)))
	assert.EqualValues(t, 1, r.calls.Load())
}

func TestConsumer_Handle_TermChangeResyncs(t *testing.T) {
	r := &fakeReindexer{}
	c := NewConsumer(r, 0, testLogger())

	require.NoError(t, c.Handle(context.Background(), changeEvent(t, TopicTermChanged)))
	assert.EqualValues(t, 1, r.calls.Load())
}

func TestConsumer_Handle_UnknownTypeIgnored(t *testing.T) {
	r := &fakeReindexer{}
	c := NewConsumer(r, 0, testLogger())

	require.NoError(t, c.Handle(context.Background(), changeEvent(t, "storefront.order.created")))
	assert.EqualValues(t, 0, r.calls.Load())
}

func TestConsumer_Handle_InlineResyncErrorPropagates(t *testing.T) {
	r := &fakeReindexer{err: errors.New("catalogue down")}
	c := NewConsumer(r, 0, testLogger())

	assert.Error(t, c.Handle(context.Background(), changeEvent(t, TopicProductChanged)))
}

func TestConsumer_Handle_DebouncesBursts(t *testing.T) {
	r := &fakeReindexer{}
	c := NewConsumer(r, 20*time.Millisecond, testLogger())

	ctx := context.Background()
	for range 5 {
		require.NoError(t, c.Handle(ctx, changeEvent(t, TopicProductChanged)))
	}

	// One burst collapses into one rebuild.
	require.Eventually(t, func() bool {
		return r.calls.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, r.calls.Load())
}

type capturingProducer struct {
	topic string
	event *pkgkafka.Event
	err   error
}

func (p *capturingProducer) Publish(_ context.Context, topic string, event *pkgkafka.Event) error {
	p.topic = topic
	p.event = event
	return p.err
}

func TestSyncedPublisher_PublishSynced(t *testing.T) {
	prod := &capturingProducer{}
	pub := NewSyncedPublisher(prod, testLogger())

	pub.PublishSynced(context.Background(), 42)

	require.NotNil(t, prod.event)
	assert.Equal(t, TopicIndexSynced, prod.topic)
	assert.Equal(t, TopicIndexSynced, prod.event.EventType)

	var data IndexSyncedData
	require.NoError(t, prod.event.UnmarshalData(&data))
	assert.Equal(t, 42, data.Items)
	assert.False(t, data.SyncedAt.IsZero())
}

func TestSyncedPublisher_PublishFailureSwallowed(t *testing.T) {
	prod := &capturingProducer{err: errors.New("brokers unreachable")}
	pub := NewSyncedPublisher(prod, testLogger())

	// Must not panic or propagate.
	pub.PublishSynced(context.Background(), 1)
}
