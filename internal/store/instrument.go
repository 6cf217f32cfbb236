package store

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"routedesk/internal/model"
)

// Observer receives one call per store operation.
type Observer func(op string, err error, elapsed time.Duration)

// Instrumented wraps a Store, reporting every call and logging failures.
type Instrumented struct {
	Store
	Observe Observer
}

// Instrument wraps s; a nil observer only logs.
func Instrument(s Store, obs Observer) *Instrumented {
	return &Instrumented{Store: s, Observe: obs}
}

func (i *Instrumented) done(op string, start time.Time, err error) {
	if i.Observe != nil {
		i.Observe(op, err, time.Since(start))
	}
	if err != nil {
		log.Error().Err(err).Str("op", op).Dur("elapsed", time.Since(start)).Msg("record store call failed")
	}
}

func (i *Instrumented) ListOrders(ctx context.Context) (out []model.Order, err error) {
	defer func(t time.Time) { i.done("list_orders", t, err) }(time.Now())
	return i.Store.ListOrders(ctx)
}

func (i *Instrumented) GetOrder(ctx context.Context, id string) (out model.Order, err error) {
	defer func(t time.Time) { i.done("get_order", t, err) }(time.Now())
	return i.Store.GetOrder(ctx, id)
}

func (i *Instrumented) UpdateOrder(ctx context.Context, id string, patch model.OrderPatch) (out model.Order, err error) {
	defer func(t time.Time) { i.done("update_order", t, err) }(time.Now())
	return i.Store.UpdateOrder(ctx, id, patch)
}

func (i *Instrumented) BatchUpdateOrders(ctx context.Context, updates []model.OrderUpdate) (out []model.Order, err error) {
	defer func(t time.Time) { i.done("batch_update_orders", t, err) }(time.Now())
	return i.Store.BatchUpdateOrders(ctx, updates)
}

func (i *Instrumented) ListRoutes(ctx context.Context) (out []model.ApprovedRoute, err error) {
	defer func(t time.Time) { i.done("list_routes", t, err) }(time.Now())
	return i.Store.ListRoutes(ctx)
}

func (i *Instrumented) GetRoute(ctx context.Context, id string) (out model.ApprovedRoute, err error) {
	defer func(t time.Time) { i.done("get_route", t, err) }(time.Now())
	return i.Store.GetRoute(ctx, id)
}

func (i *Instrumented) CreateRoute(ctx context.Context, r model.ApprovedRoute) (out model.ApprovedRoute, err error) {
	defer func(t time.Time) { i.done("create_route", t, err) }(time.Now())
	return i.Store.CreateRoute(ctx, r)
}

func (i *Instrumented) UpdateRoute(ctx context.Context, id string, patch model.RoutePatch) (out model.ApprovedRoute, err error) {
	defer func(t time.Time) { i.done("update_route", t, err) }(time.Now())
	return i.Store.UpdateRoute(ctx, id, patch)
}
