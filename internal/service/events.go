package service

import (
	"context"
	"sync"

	"pingwatch/internal/domain"
	"pingwatch/internal/notify"
)

// EventType defines the type of event
type EventType string

const (
	EventStateChanged   EventType = "state_changed"
	EventNotification   EventType = "notification"
	EventConfigReloaded EventType = "config_reloaded"
)

// Event represents an event that occurred in the system
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	eb.subscribers = append(eb.subscribers, ch)
	eb.mu.Unlock()
}

// Unsubscribe removes ch; it is not closed
func (eb *EventBus) Unsubscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, s := range eb.subscribers {
		if s == ch {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			return
		}
	}
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}

// Notifier delivers notifications as bus events
func (eb *EventBus) Notifier() notify.Sink {
	return notify.Func(func(_ context.Context, n domain.Notification) error {
		eb.Publish(Event{Type: EventNotification, Payload: n})
		return nil
	})
}
