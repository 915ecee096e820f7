package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/memory"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/outbox"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu        sync.Mutex
	published []amqp.Publishing
	keys      []string
	failFor   string
}

func (f *fakePublisher) Publish(_, routingKey string, p amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p.MessageId == f.failFor {
		return errors.New("channel closed")
	}
	f.published = append(f.published, p)
	f.keys = append(f.keys, routingKey)

	return nil
}

func enqueue(t *testing.T, store *memory.Store, messageID string, maxAttempts int) {
	t.Helper()

	past := time.Now().Add(-time.Minute)
	err := store.Factory()().Outbox().Insert(context.Background(), outbox.Message{
		MessageID:    messageID,
		OrderID:      1,
		EventType:    "fulfillment.delivery_items.created",
		RoutingKey:   "fulfillment.events",
		Payload:      []byte(`{"orderId":1}`),
		ContentType:  "application/json",
		MaxAttempts:  maxAttempts,
		CreatedAt:    past,
		PublishAfter: past,
	})
	require.NoError(t, err)
}

func TestPublishDueDeletesPublished(t *testing.T) {
	store := memory.NewStore()
	for _, id := range []string{"m-1", "m-2", "m-3"} {
		enqueue(t, store, id, 3)
	}
	pub := &fakePublisher{}

	w := NewWorker(store.Factory(), pub)

	assert.Equal(t, 3, w.publishDue(context.Background()))
	assert.Len(t, pub.published, 3)
	assert.Empty(t, store.OutboxMessages())
	for i, p := range pub.published {
		assert.Equal(t, amqp.Persistent, p.DeliveryMode)
		assert.Equal(t, "application/json", p.ContentType)
		assert.Equal(t, "fulfillment.delivery_items.created", p.Type)
		assert.Equal(t, "fulfillment.events", pub.keys[i])
	}
}

func TestInsertIgnoresRepeatedMessageID(t *testing.T) {
	store := memory.NewStore()
	enqueue(t, store, "m-1", 3)
	enqueue(t, store, "m-1", 3)

	assert.Len(t, store.OutboxMessages(), 1)
}

func TestPublishDueSchedulesRetry(t *testing.T) {
	store := memory.NewStore()
	enqueue(t, store, "ok", 3)
	enqueue(t, store, "broken", 3)
	pub := &fakePublisher{failFor: "broken"}

	now := time.Now()
	w := NewWorker(store.Factory(), pub)
	w.retryInterval = time.Second
	w.now = func() time.Time { return now }

	assert.Equal(t, 1, w.publishDue(context.Background()))

	msgs := store.OutboxMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "broken", msgs[0].MessageID)
	assert.Equal(t, 1, msgs[0].Attempts)
	assert.Equal(t, "channel closed", msgs[0].LastError)
	assert.Equal(t, now.Add(time.Second), msgs[0].PublishAfter)

	// Not due yet.
	assert.Equal(t, 0, w.publishDue(context.Background()))

	// Second failure doubles the delay.
	now = now.Add(time.Second)
	w.publishDue(context.Background())
	msgs = store.OutboxMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, 2, msgs[0].Attempts)
	assert.Equal(t, now.Add(2*time.Second), msgs[0].PublishAfter)
	assert.Len(t, pub.published, 1)
}

func TestPublishDueSkipsExhausted(t *testing.T) {
	store := memory.NewStore()
	enqueue(t, store, "broken", 1)
	pub := &fakePublisher{failFor: "broken"}

	now := time.Now()
	w := NewWorker(store.Factory(), pub)
	w.now = func() time.Time { return now }

	w.publishDue(context.Background())

	now = now.Add(time.Hour)
	assert.Equal(t, 0, w.publishDue(context.Background()))

	msgs := store.OutboxMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, 1, msgs[0].Attempts)
}

func TestStartStops(t *testing.T) {
	w := NewWorker(memory.NewStore().Factory(), &fakePublisher{})

	done := make(chan struct{})
	go func() {
		w.Start(context.Background())
		close(done)
	}()
	w.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
