package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"routedesk/internal/model"
)

// Store is the record-store interface used by the services. Every backend
// chunks batch writes to BatchSize and issues chunks one after another.
type Store interface {
	// Orders
	ListOrders(ctx context.Context) ([]model.Order, error)
	GetOrder(ctx context.Context, id string) (model.Order, error)
	UpdateOrder(ctx context.Context, id string, patch model.OrderPatch) (model.Order, error)
	BatchUpdateOrders(ctx context.Context, updates []model.OrderUpdate) ([]model.Order, error)

	// Routes
	ListRoutes(ctx context.Context) ([]model.ApprovedRoute, error)
	GetRoute(ctx context.Context, id string) (model.ApprovedRoute, error)
	CreateRoute(ctx context.Context, r model.ApprovedRoute) (model.ApprovedRoute, error)
	UpdateRoute(ctx context.Context, id string, patch model.RoutePatch) (model.ApprovedRoute, error)

	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")

// BatchSize is the record limit per batch write call.
const BatchSize = 10

// PartialBatchError reports a batch write that stopped partway. Chunks before
// the failing one stay committed.
type PartialBatchError struct {
	Committed []string
	Pending   []string
	Err       error
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("batch update stopped after %d of %d records: %v",
		len(e.Committed), len(e.Committed)+len(e.Pending), e.Err)
}

func (e *PartialBatchError) Unwrap() error { return e.Err }

// Chunk splits updates into slices of at most size records.
func Chunk(updates []model.OrderUpdate, size int) [][]model.OrderUpdate {
	if size <= 0 {
		size = BatchSize
	}
	var out [][]model.OrderUpdate
	for start := 0; start < len(updates); start += size {
		end := min(start+size, len(updates))
		out = append(out, updates[start:end])
	}
	return out
}

// runChunks applies fn to each chunk in order and stops at the first error,
// returning what was written so far together with a PartialBatchError.
func runChunks(ctx context.Context, updates []model.OrderUpdate, fn func(context.Context, []model.OrderUpdate) ([]model.Order, error)) ([]model.Order, error) {
	out := make([]model.Order, 0, len(updates))
	var committed []string
	for _, chunk := range Chunk(updates, BatchSize) {
		if err := ctx.Err(); err != nil {
			return out, partial(committed, updates, err)
		}
		written, err := fn(ctx, chunk)
		if err != nil {
			return out, partial(committed, updates, err)
		}
		out = append(out, written...)
		for _, u := range chunk {
			committed = append(committed, u.ID)
		}
	}
	return out, nil
}

func partial(committed []string, all []model.OrderUpdate, err error) *PartialBatchError {
	pending := make([]string, 0, len(all)-len(committed))
	for _, u := range all[len(committed):] {
		pending = append(pending, u.ID)
	}
	return &PartialBatchError{Committed: append([]string{}, committed...), Pending: pending, Err: err}
}

// validateUpdates rejects blank ids and empty patches before anything is sent.
func validateUpdates(updates []model.OrderUpdate) error {
	for i, u := range updates {
		if strings.TrimSpace(u.ID) == "" {
			return fmt.Errorf("update %d: missing record id", i)
		}
		if u.Patch.IsEmpty() {
			return fmt.Errorf("update %s: empty patch", u.ID)
		}
	}
	return nil
}
