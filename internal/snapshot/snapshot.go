// Package snapshot holds the in-memory order snapshot the dashboard works
// from, with optimistic local edits that either commit or roll back.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"routedesk/internal/model"
)

var (
	ErrNotCached = errors.New("order not in snapshot")
	ErrTxDone    = errors.New("transaction already finished")
)

// Loader fetches the full order list.
type Loader func(ctx context.Context) ([]model.Order, error)

// Writer persists a patch and returns the stored order.
type Writer func(ctx context.Context, id string, patch model.OrderPatch) (model.Order, error)

// Cache is the current order snapshot. Reads get copies.
type Cache struct {
	load  Loader
	group singleflight.Group

	mu       sync.RWMutex
	orders   []model.Order
	index    map[string]int
	version  map[string]uint64
	loadedAt time.Time
	loaded   bool
}

func New(load Loader) *Cache {
	return &Cache{load: load, index: map[string]int{}, version: map[string]uint64{}}
}

// loadTimeout bounds a shared fetch, which outlives any single caller.
var loadTimeout = 30 * time.Second

// Refresh reloads the snapshot. Concurrent callers share one fetch; the
// fetch runs detached from the caller's cancellation.
func (c *Cache) Refresh(ctx context.Context) ([]model.Order, error) {
	ch := c.group.DoChan("orders", func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		orders, err := c.load(lctx)
		if err != nil {
			return nil, err
		}
		c.replace(orders)
		return nil, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
	}
	return c.Snapshot(), nil
}

// Orders returns the snapshot, loading it on first use.
func (c *Cache) Orders(ctx context.Context) ([]model.Order, error) {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if !loaded {
		return c.Refresh(ctx)
	}
	return c.Snapshot(), nil
}

// Snapshot returns a copy of the current orders.
func (c *Cache) Snapshot() []model.Order {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Order{}, c.orders...)
}

// LoadedAt is the time of the last successful refresh.
func (c *Cache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

func (c *Cache) replace(orders []model.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders = append([]model.Order{}, orders...)
	c.index = make(map[string]int, len(orders))
	for i, o := range c.orders {
		c.index[o.ID] = i
		c.version[o.ID]++
	}
	c.loadedAt = time.Now()
	c.loaded = true
}

// TxState is the lifecycle of an optimistic edit.
type TxState int

const (
	Pending TxState = iota
	Committed
	RolledBack
)

func (s TxState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled-back"
	}
	return fmt.Sprintf("TxState(%d)", int(s))
}

// Tx is one optimistic edit of one order.
type Tx struct {
	c       *Cache
	id      string
	prev    model.Order
	version uint64

	mu    sync.Mutex
	state TxState
}

// Begin applies patch to the cached order and returns the pending edit.
func (c *Cache) Begin(id string, patch model.OrderPatch) (*Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotCached, id)
	}
	prev := c.orders[i]
	c.orders[i] = patch.Apply(prev)
	c.version[id]++
	return &Tx{c: c, id: id, prev: prev, version: c.version[id]}, nil
}

func (t *Tx) State() TxState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Commit records the stored version of the order.
func (t *Tx) Commit(stored model.Order) error {
	return t.finish(Committed, func(c *Cache, i int) {
		c.orders[i] = stored
	})
}

// Rollback restores the order as it was before Begin. If the entry has been
// replaced since (a refresh or a later edit) it is left alone.
func (t *Tx) Rollback() error {
	return t.finish(RolledBack, func(c *Cache, i int) {
		c.orders[i] = t.prev
	})
}

func (t *Tx) finish(to TxState, apply func(c *Cache, i int)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Pending {
		return ErrTxDone
	}
	t.state = to
	c := t.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.index[t.id]; ok && c.version[t.id] == t.version {
		apply(c, i)
		c.version[t.id]++
	}
	return nil
}

// Mutate runs an optimistic edit end to end: apply locally, write, then commit
// or roll back, then refresh the snapshot. Write errors are returned after the
// rollback; refresh errors are only logged.
func (c *Cache) Mutate(ctx context.Context, id string, patch model.OrderPatch, write Writer) (model.Order, error) {
	tx, err := c.Begin(id, patch)
	if err != nil {
		return model.Order{}, err
	}
	stored, err := write(ctx, id, patch)
	if err != nil {
		_ = tx.Rollback()
		log.Warn().Err(err).Str("order", id).Msg("order update failed; local edit rolled back")
		return model.Order{}, err
	}
	_ = tx.Commit(stored)
	if _, err := c.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("snapshot refresh after update failed")
	}
	return stored, nil
}
