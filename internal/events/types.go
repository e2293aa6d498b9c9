package events

import "time"

// EventType names a category of engine event.
type EventType string

const (
	// Detection events
	EventTypeMatchUpdated EventType = "match.updated"

	// Window tracking events
	EventTypeWindowFound EventType = "window.found"
	EventTypeWindowLost  EventType = "window.lost"
	EventTypeWindowMoved EventType = "window.moved"

	// Capture events
	EventTypeCaptureFailed    EventType = "capture.failed"
	EventTypeCaptureRecovered EventType = "capture.recovered"

	// Template events
	EventTypeTemplatesReloaded EventType = "templates.reloaded"

	// Error events
	EventTypeError EventType = "error"
)

// Event is one published occurrence with its payload.
type Event struct {
	Type      EventType
	Source    string // component that emitted the event, e.g. "engine", "window"
	Timestamp time.Time
	Data      map[string]interface{}
}

// EventHandler processes a delivered event.
type EventHandler func(Event)

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID int64

// EventBus is the pub/sub contract between the engine and its consumers.
type EventBus interface {
	Subscribe(eventType EventType, handler EventHandler) SubscriptionID
	Unsubscribe(id SubscriptionID)

	// Publish queues an event, blocking until it is accepted.
	Publish(event Event)

	// PublishAsync queues an event without blocking the caller.
	PublishAsync(event Event)

	// Stop shuts the bus down after draining queued events.
	Stop()
}

// NewMatchUpdatedEvent reports the tracked match set after a detection cycle.
func NewMatchUpdatedEvent(matchCount, rawCount int, frameW, frameH int) Event {
	return Event{
		Type:      EventTypeMatchUpdated,
		Source:    "engine",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"match_count": matchCount,
			"raw_count":   rawCount,
			"frame_w":     frameW,
			"frame_h":     frameH,
		},
	}
}

// NewWindowFoundEvent reports the tracked window being located.
func NewWindowFoundEvent(title string, width, height int) Event {
	return Event{
		Type:      EventTypeWindowFound,
		Source:    "window",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"title":  title,
			"width":  width,
			"height": height,
		},
	}
}

// NewWindowLostEvent reports the tracked window going away.
func NewWindowLostEvent(title string) Event {
	return Event{
		Type:      EventTypeWindowLost,
		Source:    "window",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"title": title,
		},
	}
}

// NewWindowMovedEvent reports a window rectangle change.
func NewWindowMovedEvent(left, top, width, height int) Event {
	return Event{
		Type:      EventTypeWindowMoved,
		Source:    "window",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"left":   left,
			"top":    top,
			"width":  width,
			"height": height,
		},
	}
}

// NewCaptureFailedEvent reports the start of a capture failure streak.
func NewCaptureFailedEvent(err error) Event {
	return Event{
		Type:      EventTypeCaptureFailed,
		Source:    "engine",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"error": err.Error(),
		},
	}
}

// NewCaptureRecoveredEvent reports capture succeeding again after failures.
func NewCaptureRecoveredEvent(failures int) Event {
	return Event{
		Type:      EventTypeCaptureRecovered,
		Source:    "engine",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"failures": failures,
		},
	}
}

// NewTemplatesReloadedEvent reports a template store reload.
func NewTemplatesReloadedEvent(count int, dir string) Event {
	return Event{
		Type:      EventTypeTemplatesReloaded,
		Source:    "templates",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"count": count,
			"dir":   dir,
		},
	}
}

// NewErrorEvent reports a component error.
func NewErrorEvent(source string, err error, metadata map[string]interface{}) Event {
	data := map[string]interface{}{
		"error": err.Error(),
	}
	for k, v := range metadata {
		data[k] = v
	}
	return Event{
		Type:      EventTypeError,
		Source:    source,
		Timestamp: time.Now(),
		Data:      data,
	}
}
