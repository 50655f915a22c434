package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeFormSaved     = "form.saved"
	TypeFormPublished = "form.published"
)

// Event represents a lightweight domain event.
type Event struct {
	ID        string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// FormSaved is the payload of TypeFormSaved.
type FormSaved struct {
	FormID   string   `json:"form_id"`
	FormName string   `json:"form_name"`
	Problems []string `json:"problems,omitempty"`
}

// FormPublished is the payload of TypeFormPublished.
type FormPublished struct {
	FormID    string `json:"form_id"`
	FormName  string `json:"form_name"`
	StoreName string `json:"store_name"`
	PublicURL string `json:"public_url"`
	ProxyURL  string `json:"proxy_url,omitempty"`
	Hash      string `json:"hash"`
	Skipped   bool   `json:"skipped"`
}

// New builds an event with a JSON payload.
func New(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Event{ID: uuid.NewString(), Type: eventType, Payload: data}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs every subscriber of the event type in registration order and
// returns their joined errors. A failing handler does not stop the others.
func (b *EventBus) Publish(event Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
