package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"routedesk/internal/model"
)

// Memory is an in-process store used for development and tests.
type Memory struct {
	mu       sync.Mutex
	orders   map[string]model.Order // id -> order
	orderIDs []string               // insertion order
	routes   map[string]model.ApprovedRoute
	routeIDs []string
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		orders: map[string]model.Order{},
		routes: map[string]model.ApprovedRoute{},
		now:    time.Now,
	}
}

// SeedOrders inserts orders, assigning ids and created stamps where missing.
func (m *Memory) SeedOrders(orders ...model.Order) []model.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if o.ID == "" {
			o.ID = "rec" + uuid.New().String()
		}
		if o.Created == "" {
			o.Created = m.now().UTC().Format(time.RFC3339)
		}
		if _, exists := m.orders[o.ID]; !exists {
			m.orderIDs = append(m.orderIDs, o.ID)
		}
		m.orders[o.ID] = o
		out = append(out, o)
	}
	return out
}

func (m *Memory) ListOrders(ctx context.Context) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Order, 0, len(m.orderIDs))
	for _, id := range m.orderIDs {
		out = append(out, m.orders[id])
	}
	return out, nil
}

func (m *Memory) GetOrder(ctx context.Context, id string) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return model.Order{}, ErrNotFound
	}
	return o, nil
}

func (m *Memory) UpdateOrder(ctx context.Context, id string, patch model.OrderPatch) (model.Order, error) {
	out, err := m.applyChunk(ctx, []model.OrderUpdate{{ID: id, Patch: patch}})
	if err != nil {
		return model.Order{}, err
	}
	return out[0], nil
}

func (m *Memory) BatchUpdateOrders(ctx context.Context, updates []model.OrderUpdate) ([]model.Order, error) {
	if err := validateUpdates(updates); err != nil {
		return nil, err
	}
	return runChunks(ctx, updates, m.applyChunk)
}

// applyChunk is all-or-nothing, like a single remote batch call.
func (m *Memory) applyChunk(ctx context.Context, chunk []model.OrderUpdate) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range chunk {
		if _, ok := m.orders[u.ID]; !ok {
			return nil, ErrNotFound
		}
	}
	out := make([]model.Order, 0, len(chunk))
	for _, u := range chunk {
		o := u.Patch.Apply(m.orders[u.ID])
		m.orders[u.ID] = o
		out = append(out, o)
	}
	return out, nil
}

func (m *Memory) ListRoutes(ctx context.Context) ([]model.ApprovedRoute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ApprovedRoute, 0, len(m.routeIDs))
	// newest first
	for i := len(m.routeIDs) - 1; i >= 0; i-- {
		out = append(out, cloneRoute(m.routes[m.routeIDs[i]]))
	}
	return out, nil
}

func (m *Memory) GetRoute(ctx context.Context, id string) (model.ApprovedRoute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[id]
	if !ok {
		return model.ApprovedRoute{}, ErrNotFound
	}
	return cloneRoute(r), nil
}

func (m *Memory) CreateRoute(ctx context.Context, r model.ApprovedRoute) (model.ApprovedRoute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = "rec" + uuid.New().String()
	if r.Created.IsZero() {
		r.Created = m.now().UTC()
	}
	r = cloneRoute(r)
	m.routes[r.ID] = r
	m.routeIDs = append(m.routeIDs, r.ID)
	return cloneRoute(r), nil
}

func (m *Memory) UpdateRoute(ctx context.Context, id string, patch model.RoutePatch) (model.ApprovedRoute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[id]
	if !ok {
		return model.ApprovedRoute{}, ErrNotFound
	}
	r = patch.Apply(r)
	m.routes[id] = r
	return cloneRoute(r), nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func cloneRoute(r model.ApprovedRoute) model.ApprovedRoute {
	r.Stops = append([]model.RouteStop{}, r.Stops...)
	r.OrderIDs = append([]string{}, r.OrderIDs...)
	return r
}
