package watch

import (
	"testing"
	"time"
)

func TestPublishReachesSubscribers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(TopicPatients("t-1"))
	defer sub.Close()

	bus.Publish(Event{Type: "created", Topic: TopicPatients("t-1"), Entity: "patient", EntityID: "p-1"})

	select {
	case ev := <-sub.C:
		if ev.Type != "created" || ev.EntityID != "p-1" {
			t.Errorf("event = %+v", ev)
		}
		if ev.Timestamp.IsZero() {
			t.Error("timestamp should be stamped on publish")
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestPublishIsTopicScoped(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(TopicPatients("t-1"))
	defer sub.Close()

	bus.Publish(Event{Type: "created", Topic: TopicPatients("t-2")})

	select {
	case ev := <-sub.C:
		t.Errorf("received event for another topic: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMultiTopicSubscription(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(TopicTenant("t-1"), TopicTenantMembers("t-1"))
	defer sub.Close()

	bus.Publish(Event{Type: "updated", Topic: TopicTenant("t-1")})
	bus.Publish(Event{Type: "created", Topic: TopicTenantMembers("t-1")})

	got := 0
	timeout := time.After(time.Second)
	for got < 2 {
		select {
		case <-sub.C:
			got++
		case <-timeout:
			t.Fatalf("received %d events, want 2", got)
		}
	}
}

func TestCloseDetachesSubscription(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(TopicUser("acc-1"))

	if n := bus.SubscriberCount(TopicUser("acc-1")); n != 1 {
		t.Fatalf("subscriber count = %d, want 1", n)
	}

	sub.Close()
	sub.Close() // idempotent

	if n := bus.SubscriberCount(TopicUser("acc-1")); n != 0 {
		t.Errorf("subscriber count after close = %d, want 0", n)
	}

	// Channel is closed; the zero event signals termination.
	if _, ok := <-sub.C; ok {
		t.Error("channel should be closed after Close")
	}
}

func TestPublishOrderWithinTopic(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(TopicUser("acc-1"))
	defer sub.Close()

	for i := 0; i < 5; i++ {
		bus.Publish(Event{Type: "updated", Topic: TopicUser("acc-1"), EntityID: string(rune('a' + i))})
	}

	for i := 0; i < 5; i++ {
		select {
		case ev := <-sub.C:
			if ev.EntityID != string(rune('a'+i)) {
				t.Errorf("event %d out of order: %q", i, ev.EntityID)
			}
		case <-time.After(time.Second):
			t.Fatal("missing event")
		}
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(TopicUser("acc-1"))
	defer sub.Close()

	// Overflow the buffer; Publish must return without blocking.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(Event{Type: "updated", Topic: TopicUser("acc-1")})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
