// Package eventbus is an in-process publish/subscribe bus. Topics are dot separated and
// subscribers may use "*" for a single segment, e.g. "user.*".
package eventbus

import (
	"context"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type Event struct {
	Topic string
	Data  any
}

type Subscriber struct {
	ID      string
	Topic   string
	Channel chan Event
	Context context.Context
	Cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// TimedSend delivers the event or gives up after timeout. It reports whether the event was delivered.
func (s *Subscriber) TimedSend(event Event, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case s.Channel <- event:
		return true
	case <-s.Context.Done():
		return false
	case <-timer.C:
		return false
	}
}

func (s *Subscriber) Close() {
	s.Cancel()
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.Channel)
	}
}

type EventBus struct {
	sync.RWMutex
	subscribers map[string]map[string]*Subscriber // topic -> subscriberID -> Subscriber
}

func New() *EventBus {
	return &EventBus{
		subscribers: make(map[string]map[string]*Subscriber),
	}
}

// Subscribe creates a new subscriber for the given topic and returns the event channel and unsubscribe function.
func (bus *EventBus) Subscribe(topic string, bufferSize int) (<-chan Event, func()) {
	id, err := gonanoid.New(12)
	if err != nil {
		id = topic + "-" + time.Now().Format(time.RFC3339Nano)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan Event, bufferSize)

	sub := &Subscriber{
		ID:      id,
		Topic:   topic,
		Channel: ch,
		Context: ctx,
		Cancel:  cancel,
	}

	bus.Lock()
	if _, ok := bus.subscribers[topic]; !ok {
		bus.subscribers[topic] = make(map[string]*Subscriber)
	}
	bus.subscribers[topic][id] = sub
	bus.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			bus.Lock()
			if subMap, ok := bus.subscribers[topic]; ok {
				delete(subMap, id)
				if len(subMap) == 0 {
					delete(bus.subscribers, topic)
				}
			}
			bus.Unlock()
			sub.Close()
		})
	}

	return ch, unsubscribe
}

// Publish sends an event to all subscribers of a topic and returns how many received it.
// Slow subscribers are skipped after timeout.
func (bus *EventBus) Publish(topic string, data any, timeout time.Duration) int {
	event := Event{Topic: topic, Data: data}

	bus.RLock()
	var targets []*Subscriber
	for pattern, subMap := range bus.subscribers {
		if matchTopic(pattern, topic) {
			for _, sub := range subMap {
				targets = append(targets, sub)
			}
		}
	}
	bus.RUnlock()

	delivered := 0
	for _, sub := range targets {
		if sub.TimedSend(event, timeout) {
			delivered++
		}
	}
	return delivered
}

// SubscriberCount returns the number of subscribers whose pattern matches topic.
func (bus *EventBus) SubscriberCount(topic string) int {
	bus.RLock()
	defer bus.RUnlock()
	n := 0
	for pattern, subMap := range bus.subscribers {
		if matchTopic(pattern, topic) {
			n += len(subMap)
		}
	}
	return n
}

// Shutdown gracefully closes all subscribers and clears the bus.
func (bus *EventBus) Shutdown() {
	bus.Lock()
	subs := bus.subscribers
	bus.subscribers = make(map[string]map[string]*Subscriber)
	bus.Unlock()

	for _, subMap := range subs {
		for _, sub := range subMap {
			sub.Close()
		}
	}
}

func matchTopic(pattern, topic string) bool {
	if pattern == "" || topic == "" {
		return false
	}
	if pattern == "*" || pattern == topic {
		return true
	}
	patternParts := strings.Split(pattern, ".")
	topicParts := strings.Split(topic, ".")

	if len(patternParts) != len(topicParts) {
		return false
	}

	for i := range patternParts {
		if patternParts[i] == "*" {
			continue
		}
		if patternParts[i] != topicParts[i] {
			return false
		}
	}
	return true
}
