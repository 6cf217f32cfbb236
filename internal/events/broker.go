// Package events fans route events out to live subscribers.
package events

import (
	"sync"
	"time"
)

// Event types.
const (
	RouteApproved      = "route.approved"
	RouteStatusChanged = "route.status_changed"
	RouteStopReturned  = "route.stop_returned"
	OrderUpdated       = "order.updated"
)

// AllRoutes is the topic that receives every route's events.
const AllRoutes = "*"

type Event struct {
	Type    string         `json:"type"`
	RouteID string         `json:"routeId,omitempty"`
	At      time.Time      `json:"at"`
	Data    map[string]any `json:"data,omitempty"`
}

// Broker publishes events per route. Publish also delivers to AllRoutes
// subscribers. Slow subscribers miss events rather than block publishers.
type Broker interface {
	Subscribe(routeID string) chan Event
	Unsubscribe(routeID string, ch chan Event)
	Publish(routeID string, evt Event)
}

// Memory is the in-process broker.
type Memory struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{} // routeId -> set of channels
}

func NewMemory() *Memory {
	return &Memory{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Memory) Subscribe(routeID string) chan Event {
	ch := make(chan Event, 8)
	b.mu.Lock()
	if b.subs[routeID] == nil {
		b.subs[routeID] = map[chan Event]struct{}{}
	}
	b.subs[routeID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Memory) Unsubscribe(routeID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[routeID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, routeID)
	}
	close(ch)
}

func (b *Memory) Publish(routeID string, evt Event) {
	if evt.RouteID == "" {
		evt.RouteID = routeID
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, topic := range topics(routeID) {
		for ch := range b.subs[topic] {
			select {
			case ch <- evt:
			default:
			}
		}
	}
}

func topics(routeID string) []string {
	if routeID == AllRoutes {
		return []string{AllRoutes}
	}
	return []string{routeID, AllRoutes}
}
