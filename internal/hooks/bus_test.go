package hooks

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEventBus_Subscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var called bool
	sub := bus.Subscribe(EventDecisionMade, func(evt *EventContext) {
		called = true
	})

	if sub == nil {
		t.Fatal("Subscribe returned nil subscription")
	}
	if sub.ID == "" {
		t.Error("Subscription ID should not be empty")
	}
	if sub.Event != EventDecisionMade {
		t.Errorf("Expected event %s, got %s", EventDecisionMade, sub.Event)
	}

	bus.Publish(&EventContext{
		Event: EventDecisionMade,
		Query: "Solve x^2 - 5x + 6 = 0",
		Route: "knowledge_base",
	})

	if !called {
		t.Error("Callback should have been called")
	}
}

func TestEventBus_SubscribeWithFilter(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var calledCount int32
	sub := bus.SubscribeWithFilter(EventFallbackUsed, func(evt *EventContext) {
		atomic.AddInt32(&calledCount, 1)
	}, func(evt *EventContext) bool {
		return evt.Route == "fallback"
	})
	if sub == nil {
		t.Fatal("SubscribeWithFilter returned nil subscription")
	}

	bus.Publish(&EventContext{Event: EventFallbackUsed, Route: "web_search"})
	bus.Publish(&EventContext{Event: EventFallbackUsed, Route: "fallback"})

	if got := atomic.LoadInt32(&calledCount); got != 1 {
		t.Errorf("Expected 1 callback call, got %d", got)
	}
}

func TestEventBus_MultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var called1, called2, called3 bool
	bus.Subscribe(EventLowConfidence, func(evt *EventContext) { called1 = true })
	bus.Subscribe(EventLowConfidence, func(evt *EventContext) { called2 = true })
	bus.Subscribe(EventLowConfidence, func(evt *EventContext) { called3 = true })

	bus.Publish(&EventContext{Event: EventLowConfidence, Confidence: 0.12})

	if !called1 || !called2 || !called3 {
		t.Error("All callbacks should have been called")
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var called bool
	sub := bus.Subscribe(EventFeedbackReceived, func(evt *EventContext) {
		called = true
	})

	sub.Unsubscribe()
	bus.Publish(&EventContext{Event: EventFeedbackReceived})

	if called {
		t.Error("Callback should not run after Unsubscribe")
	}
}

func TestEventBus_PublishAsync(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	received := make(chan *EventContext, 1)
	bus.Subscribe(EventDecisionMade, func(evt *EventContext) {
		received <- evt
	})

	bus.PublishAsync(&EventContext{Event: EventDecisionMade, Route: "hybrid"})

	select {
	case evt := <-received:
		if evt.Route != "hybrid" {
			t.Errorf("Expected route hybrid, got %s", evt.Route)
		}
		if evt.Timestamp.IsZero() {
			t.Error("Async publish should stamp the event")
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Async event not received")
	}
}

func TestEventBus_PanicContained(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var survived bool
	bus.Subscribe(EventDecisionMade, func(evt *EventContext) {
		panic("subscriber exploded")
	})
	bus.Subscribe(EventDecisionMade, func(evt *EventContext) {
		survived = true
	})

	bus.Publish(&EventContext{Event: EventDecisionMade})

	if !survived {
		t.Error("Subscribers after a panicking one should still run")
	}
}

func TestEventBus_PublishAsyncAfterShutdown(t *testing.T) {
	bus := NewEventBus()

	var called int32
	bus.Subscribe(EventFallbackUsed, func(evt *EventContext) {
		atomic.AddInt32(&called, 1)
	})

	bus.Shutdown()
	bus.Shutdown() // idempotent

	// Must neither panic nor deliver.
	bus.PublishAsync(&EventContext{Event: EventFallbackUsed})
	time.Sleep(50 * time.Millisecond)

	if atomic.LoadInt32(&called) != 0 {
		t.Error("No delivery expected after shutdown")
	}
}

func TestEventBus_ConcurrentPublish(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var total int32
	bus.Subscribe(EventDecisionMade, func(evt *EventContext) {
		atomic.AddInt32(&total, 1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				bus.Publish(&EventContext{Event: EventDecisionMade})
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&total); got != 200 {
		t.Errorf("Expected 200 deliveries, got %d", got)
	}
}
