package events

import (
	"sync"
	"time"

	"github.com/tbscout/scout/internal/logging"
)

type subscription struct {
	id      SubscriptionID
	handler EventHandler
}

// Bus is the default EventBus. Publishing goes through a buffered queue so
// detection cycles never block on slow subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]subscription
	nextSubID   SubscriptionID

	eventQueue chan Event
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup

	log *logging.Logger
}

// NewBus creates an event bus with the given queue capacity and starts its
// dispatch goroutine.
func NewBus(bufferSize int, log *logging.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if log == nil {
		log = logging.NewLogger("events")
	}

	bus := &Bus{
		subscribers: make(map[EventType][]subscription),
		nextSubID:   1,
		eventQueue:  make(chan Event, bufferSize),
		stopCh:      make(chan struct{}),
		log:         log,
	}

	bus.wg.Add(1)
	go bus.processEvents()

	return bus
}

// Subscribe registers a handler for an event type.
func (b *Bus) Subscribe(eventType EventType, handler EventHandler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSubID
	b.nextSubID++
	b.subscribers[eventType] = append(b.subscribers[eventType], subscription{id: id, handler: handler})
	return id
}

// Unsubscribe removes a subscription by ID.
func (b *Bus) Unsubscribe(id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscribers {
		for i, sub := range subs {
			if sub.id == id {
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish queues an event, blocking until the queue accepts it. Events
// published after Stop are dropped.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventQueue <- event:
	case <-b.stopCh:
		b.log.Debugf("dropped %s event, bus stopped", event.Type)
	}
}

// PublishAsync queues an event without blocking the caller.
func (b *Bus) PublishAsync(event Event) {
	go b.Publish(event)
}

// Stop shuts the dispatcher down after draining queued events. Safe to call
// more than once.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
	b.wg.Wait()
}

func (b *Bus) processEvents() {
	defer b.wg.Done()

	for {
		select {
		case event := <-b.eventQueue:
			b.dispatch(event)

		case <-b.stopCh:
			for {
				select {
				case event := <-b.eventQueue:
					b.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(event Event) {
	b.mu.RLock()
	subs := b.subscribers[event.Type]
	handlers := make([]EventHandler, len(subs))
	for i, sub := range subs {
		handlers[i] = sub.handler
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.safeCall(handler, event)
	}
}

// safeCall isolates subscriber panics from the dispatch loop.
func (b *Bus) safeCall(handler EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorf("handler panic for %s event: %v", event.Type, r)
		}
	}()
	handler(event)
}

// SubscriberCount reports the number of handlers for an event type.
func (b *Bus) SubscriberCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[eventType])
}

// QueueSize reports the number of queued, undispatched events.
func (b *Bus) QueueSize() int {
	return len(b.eventQueue)
}
