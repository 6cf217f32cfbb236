package snapshot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routedesk/internal/model"
	"routedesk/internal/store"
)

func seeded(t *testing.T) (*store.Memory, *Cache) {
	t.Helper()
	m := store.NewMemory()
	m.SeedOrders(
		model.Order{ID: "a", OrderStatus: model.OrderWaiting},
		model.Order{ID: "b", OrderStatus: model.OrderWaiting},
	)
	c := New(m.ListOrders)
	_, err := c.Orders(t.Context())
	require.NoError(t, err)
	return m, c
}

func status(c *Cache, id string) model.OrderStatus {
	for _, o := range c.Snapshot() {
		if o.ID == id {
			return o.OrderStatus
		}
	}
	return ""
}

func TestBeginAndRollback(t *testing.T) {
	_, c := seeded(t)
	tx, err := c.Begin("a", model.StatusPatch(model.OrderDelivered))
	require.NoError(t, err)
	assert.Equal(t, Pending, tx.State())
	assert.Equal(t, model.OrderDelivered, status(c, "a"))

	require.NoError(t, tx.Rollback())
	assert.Equal(t, RolledBack, tx.State())
	assert.Equal(t, model.OrderWaiting, status(c, "a"))
	assert.ErrorIs(t, tx.Rollback(), ErrTxDone)
	assert.ErrorIs(t, tx.Commit(model.Order{}), ErrTxDone)

	_, err = c.Begin("zzz", model.StatusPatch(model.OrderDelivered))
	assert.ErrorIs(t, err, ErrNotCached)
}

func TestCommitStoresServerVersion(t *testing.T) {
	_, c := seeded(t)
	tx, err := c.Begin("b", model.StatusPatch(model.OrderScheduled))
	require.NoError(t, err)
	require.NoError(t, tx.Commit(model.Order{ID: "b", OrderStatus: model.OrderScheduled, City: "חיפה"}))
	assert.Equal(t, Committed, tx.State())
	assert.Equal(t, model.OrderScheduled, status(c, "b"))
}

func TestRollbackAfterRefreshKeepsFreshData(t *testing.T) {
	m, c := seeded(t)
	tx, err := c.Begin("a", model.StatusPatch(model.OrderDelivered))
	require.NoError(t, err)

	_, err = m.UpdateOrder(t.Context(), "a", model.StatusPatch(model.OrderOutOfStock))
	require.NoError(t, err)
	_, err = c.Refresh(t.Context())
	require.NoError(t, err)

	require.NoError(t, tx.Rollback())
	assert.Equal(t, model.OrderOutOfStock, status(c, "a"))
}

func TestMutate(t *testing.T) {
	m, c := seeded(t)

	got, err := c.Mutate(t.Context(), "a", model.StatusPatch(model.OrderScheduled), m.UpdateOrder)
	require.NoError(t, err)
	assert.Equal(t, model.OrderScheduled, got.OrderStatus)
	assert.Equal(t, model.OrderScheduled, status(c, "a"))

	boom := errors.New("remote down")
	failing := func(ctx context.Context, id string, p model.OrderPatch) (model.Order, error) {
		return model.Order{}, boom
	}
	_, err = c.Mutate(t.Context(), "b", model.StatusPatch(model.OrderDelivered), failing)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, model.OrderWaiting, status(c, "b"))
}

func TestRefreshError(t *testing.T) {
	boom := errors.New("nope")
	c := New(func(context.Context) ([]model.Order, error) { return nil, boom })
	_, err := c.Orders(t.Context())
	assert.ErrorIs(t, err, boom)
	assert.True(t, c.LoadedAt().IsZero())
}

func TestRefreshSurvivesCancelledCaller(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	c := New(func(ctx context.Context) ([]model.Order, error) {
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []model.Order{{ID: "a", OrderStatus: model.OrderWaiting}}, nil
	})

	first, cancel := context.WithCancel(t.Context())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Refresh(first)
		firstErr <- err
	}()
	<-started

	second := make(chan []model.Order, 1)
	go func() {
		orders, err := c.Refresh(t.Context())
		assert.NoError(t, err)
		second <- orders
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(release)

	orders := <-second
	require.Len(t, orders, 1)
	assert.Equal(t, "a", orders[0].ID)
}
