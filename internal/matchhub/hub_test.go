package matchhub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbarena/arena/internal/contracts"
)

func TestHub_PublishDeliversToSubscriber(t *testing.T) {
	h := New()
	sub := h.Subscribe("m1")
	defer h.Unsubscribe(sub)

	h.Publish(contracts.MatchEvent{MatchID: "m1", Seq: 1, Type: contracts.EventMatchCreated})

	select {
	case ev := <-sub.Events():
		assert.Equal(t, int64(1), ev.Seq)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestHub_PublishIgnoresOtherMatches(t *testing.T) {
	h := New()
	sub := h.Subscribe("m1")
	defer h.Unsubscribe(sub)

	h.Publish(contracts.MatchEvent{MatchID: "m2", Seq: 1, Type: contracts.EventMatchCreated})

	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event delivered: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	h := New()
	sub := h.Subscribe("m1")
	h.Unsubscribe(sub)

	_, open := <-sub.Events()
	assert.False(t, open)
	assert.False(t, sub.Dropped())
	assert.Equal(t, 0, h.SubscriberCount("m1"))
}

func TestHub_SlowConsumerIsEvicted(t *testing.T) {
	h := New()
	sub := h.Subscribe("m1")

	for i := 0; i < subscriberBuffer+1; i++ {
		h.Publish(contracts.MatchEvent{MatchID: "m1", Seq: int64(i + 1), Type: contracts.EventTurnEmitted})
	}

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("expected subscription to be evicted")
	}
	assert.True(t, sub.Dropped())
	assert.Equal(t, 0, h.SubscriberCount("m1"))
}

func TestHub_MultipleSubscribersAllReceive(t *testing.T) {
	h := New()
	subA := h.Subscribe("m1")
	subB := h.Subscribe("m1")
	defer h.Unsubscribe(subA)
	defer h.Unsubscribe(subB)

	require.Equal(t, 2, h.SubscriberCount("m1"))
	h.Publish(contracts.MatchEvent{MatchID: "m1", Seq: 1, Type: contracts.EventMatchCreated})

	for _, sub := range []*Subscription{subA, subB} {
		select {
		case ev := <-sub.Events():
			assert.Equal(t, int64(1), ev.Seq)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}
