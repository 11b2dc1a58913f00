// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const eventQueueSize = 1000

// Subscription represents an active registration on the bus.
type Subscription struct {
	ID       string
	Event    HookEvent
	Callback func(*EventContext)
	Filter   func(*EventContext) bool

	// Unsubscribe removes this subscription from the bus.
	Unsubscribe func()
}

// EventBus fans pipeline events out to subscribers. Publish delivers
// synchronously in the caller's goroutine; PublishAsync queues for a
// background worker and drops events rather than blocking the pipeline.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[HookEvent][]*Subscription
	shutdown    bool

	eventQueue chan *EventContext
	ctx        context.Context
	cancel     context.CancelFunc

	shutdownOnce sync.Once
}

// NewEventBus creates a bus and starts its async delivery worker.
func NewEventBus() *EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	bus := &EventBus{
		subscribers: make(map[HookEvent][]*Subscription),
		eventQueue:  make(chan *EventContext, eventQueueSize),
		ctx:         ctx,
		cancel:      cancel,
	}
	go bus.processQueue()
	return bus
}

// Subscribe registers a callback for an event.
func (b *EventBus) Subscribe(event HookEvent, callback func(*EventContext)) *Subscription {
	return b.SubscribeWithFilter(event, callback, nil)
}

// SubscribeWithFilter registers a callback that only runs when filter
// returns true for the event.
func (b *EventBus) SubscribeWithFilter(event HookEvent, callback func(*EventContext), filter func(*EventContext) bool) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		ID:       fmt.Sprintf("%s-%d", event, time.Now().UnixNano()),
		Event:    event,
		Callback: callback,
		Filter:   filter,
	}
	sub.Unsubscribe = func() { b.remove(sub) }

	b.subscribers[event] = append(b.subscribers[event], sub)
	return sub
}

func (b *EventBus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[sub.Event]
	for i, s := range subs {
		if s == sub {
			b.subscribers[sub.Event] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Publish delivers the event to all matching subscribers synchronously.
// A panicking subscriber is contained and logged; the rest still run.
func (b *EventBus) Publish(evt *EventContext) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs := make([]*Subscription, len(b.subscribers[evt.Event]))
	copy(subs, b.subscribers[evt.Event])
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.Filter != nil && !sub.Filter(evt) {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("Panic in event subscriber for %s: %v", evt.Event, r)
				}
			}()
			sub.Callback(evt)
		}()
	}
}

// PublishAsync queues the event for background delivery. When the queue is
// full or the bus is shut down the event is dropped.
func (b *EventBus) PublishAsync(evt *EventContext) {
	b.mu.RLock()
	stopped := b.shutdown
	b.mu.RUnlock()
	if stopped {
		return
	}

	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	select {
	case <-b.ctx.Done():
	case b.eventQueue <- evt:
	default:
		log.Warnf("Event queue full, dropping event: %s", evt.Event)
	}
}

func (b *EventBus) processQueue() {
	for {
		select {
		case <-b.ctx.Done():
			return
		case evt, ok := <-b.eventQueue:
			if !ok {
				return
			}
			b.Publish(evt)
		}
	}
}

// Shutdown stops async delivery. Events already queued may be dropped.
// Safe to call more than once. The queue channel is left open so a racing
// PublishAsync can never hit a closed channel.
func (b *EventBus) Shutdown() {
	b.shutdownOnce.Do(func() {
		b.mu.Lock()
		b.shutdown = true
		b.mu.Unlock()
		b.cancel()
	})
}
