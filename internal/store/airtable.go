package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"routedesk/internal/airtable"
	"routedesk/internal/model"
)

// Airtable stores orders and routes in the hosted record store. Field names
// and enumerated values are translated through the static tables in
// airtable_fields.go; nothing native leaks past this type.
type Airtable struct {
	c      *airtable.Client
	orders string
	routes string
}

// NewAirtable validates the field mappings and returns the store.
func NewAirtable(c *airtable.Client, ordersTable, routesTable string) (*Airtable, error) {
	if err := ValidateMappings(); err != nil {
		return nil, fmt.Errorf("field mappings: %w", err)
	}
	return &Airtable{c: c, orders: ordersTable, routes: routesTable}, nil
}

func (a *Airtable) ListOrders(ctx context.Context) ([]model.Order, error) {
	recs, err := a.c.FetchAll(ctx, a.orders)
	if err != nil {
		return nil, err
	}
	out := make([]model.Order, len(recs))
	for i, r := range recs {
		out[i] = decodeOrder(r)
	}
	return out, nil
}

func (a *Airtable) GetOrder(ctx context.Context, id string) (model.Order, error) {
	r, err := a.c.Get(ctx, a.orders, id)
	if err != nil {
		return model.Order{}, notFound(err)
	}
	return decodeOrder(r), nil
}

func (a *Airtable) UpdateOrder(ctx context.Context, id string, patch model.OrderPatch) (model.Order, error) {
	out, err := a.patchOrders(ctx, []model.OrderUpdate{{ID: id, Patch: patch}})
	if err != nil {
		return model.Order{}, notFound(err)
	}
	if len(out) != 1 {
		return model.Order{}, fmt.Errorf("update %s: got %d records back", id, len(out))
	}
	return out[0], nil
}

func (a *Airtable) BatchUpdateOrders(ctx context.Context, updates []model.OrderUpdate) ([]model.Order, error) {
	if err := validateUpdates(updates); err != nil {
		return nil, err
	}
	return runChunks(ctx, updates, a.patchOrders)
}

func (a *Airtable) patchOrders(ctx context.Context, chunk []model.OrderUpdate) ([]model.Order, error) {
	recs := make([]airtable.Record, len(chunk))
	for i, u := range chunk {
		recs[i] = airtable.Record{ID: u.ID, Fields: encodeOrderPatch(u.Patch)}
	}
	written, err := a.c.Patch(ctx, a.orders, recs)
	if err != nil {
		return nil, err
	}
	out := make([]model.Order, len(written))
	for i, r := range written {
		out[i] = decodeOrder(r)
	}
	return out, nil
}

func (a *Airtable) ListRoutes(ctx context.Context) ([]model.ApprovedRoute, error) {
	recs, err := a.c.FetchAll(ctx, a.routes)
	if err != nil {
		return nil, err
	}
	out := make([]model.ApprovedRoute, len(recs))
	for i, r := range recs {
		out[i] = decodeRoute(r)
	}
	// newest first
	sort.SliceStable(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	return out, nil
}

func (a *Airtable) GetRoute(ctx context.Context, id string) (model.ApprovedRoute, error) {
	r, err := a.c.Get(ctx, a.routes, id)
	if err != nil {
		return model.ApprovedRoute{}, notFound(err)
	}
	return decodeRoute(r), nil
}

func (a *Airtable) CreateRoute(ctx context.Context, r model.ApprovedRoute) (model.ApprovedRoute, error) {
	rec, err := a.c.Create(ctx, a.routes, encodeRoute(r))
	if err != nil {
		return model.ApprovedRoute{}, err
	}
	return decodeRoute(rec), nil
}

func (a *Airtable) UpdateRoute(ctx context.Context, id string, patch model.RoutePatch) (model.ApprovedRoute, error) {
	fields := encodeRoutePatch(patch)
	if len(fields) == 0 {
		return a.GetRoute(ctx, id)
	}
	written, err := a.c.Patch(ctx, a.routes, []airtable.Record{{ID: id, Fields: fields}})
	if err != nil {
		return model.ApprovedRoute{}, notFound(err)
	}
	if len(written) != 1 {
		return model.ApprovedRoute{}, fmt.Errorf("update route %s: got %d records back", id, len(written))
	}
	return decodeRoute(written[0]), nil
}

func (a *Airtable) Ping(ctx context.Context) error {
	return a.c.Ping(ctx, a.orders)
}

func notFound(err error) error {
	if airtable.IsNotFound(err) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

func decodeOrder(r airtable.Record) model.Order {
	f := orderColumns.ToCanonical(r.Fields)
	o := model.Order{
		ID:           r.ID,
		CustomerName: text(f[model.FieldCustomerName]),
		Phone:        text(f[model.FieldPhone]),
		HealthFund:   text(f[model.FieldHealthFund]),
		OpenedBy:     text(f[model.FieldOpenedBy]),
		Fax:          text(f[model.FieldFax]),
		Address:      text(f[model.FieldAddress]),
		City:         text(f[model.FieldCity]),
		Agent:        text(f[model.FieldAgent]),
		Created:      r.CreatedTime,
	}
	if v := text(f[model.FieldOrderStatus]); v != "" {
		o.OrderStatus = model.OrderStatus(enumValue(orderStatusValues.Canonical, v))
	}
	if v := text(f[model.FieldStatus]); v != "" {
		o.Status = model.TaskStatus(enumValue(taskStatusValues.Canonical, v))
	}
	if v := text(f[model.FieldCustomerStatus]); v != "" {
		o.CustomerStatus = model.CustomerStatus(enumValue(customerStatusValues.Canonical, v))
	}
	if docs, ok := f[model.FieldDocuments]; ok {
		if b, err := json.Marshal(docs); err == nil {
			_ = json.Unmarshal(b, &o.Documents)
		}
	}
	return o
}

func encodeOrderPatch(p model.OrderPatch) map[string]any {
	f := p.Fields()
	if p.OrderStatus != nil {
		f[model.FieldOrderStatus] = enumValue(orderStatusValues.Native, string(*p.OrderStatus))
	}
	if p.Status != nil {
		f[model.FieldStatus] = enumValue(taskStatusValues.Native, string(*p.Status))
	}
	if p.CustomerStatus != nil {
		f[model.FieldCustomerStatus] = enumValue(customerStatusValues.Native, string(*p.CustomerStatus))
	}
	return orderColumns.ToNative(f)
}

func decodeRoute(r airtable.Record) model.ApprovedRoute {
	f := routeColumns.ToCanonical(r.Fields)
	rt := model.ApprovedRoute{
		ID:                r.ID,
		RouteName:         text(f[model.FieldRouteName]),
		Driver:            model.Driver(text(f[model.FieldDriver])),
		DeliveryDate:      text(f[model.FieldDeliveryDate]),
		Status:            model.RouteStatus(enumValue(routeStatusValues.Canonical, text(f[model.FieldRouteStatus]))),
		StopCount:         number(f[model.FieldStopCount]),
		EstimatedDistance: number(f[model.FieldEstimatedDistance]),
		EstimatedTime:     number(f[model.FieldEstimatedTime]),
		Notes:             text(f[model.FieldNotes]),
		OrderIDs:          []string{},
		Stops:             []model.RouteStop{},
	}
	if t, err := time.Parse(time.RFC3339Nano, r.CreatedTime); err == nil {
		rt.Created = t
	}
	if raw := text(f[model.FieldOrderIDs]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &rt.OrderIDs); err != nil {
			log.Warn().Err(err).Str("route", r.ID).Msg("unreadable order id list; treating as empty")
			rt.OrderIDs = []string{}
		}
	}
	if raw := text(f[model.FieldStops]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &rt.Stops); err != nil {
			log.Warn().Err(err).Str("route", r.ID).Msg("unreadable stop list; treating as empty")
			rt.Stops = []model.RouteStop{}
		}
	}
	return rt
}

func encodeRoute(r model.ApprovedRoute) map[string]any {
	ids, _ := json.Marshal(nonNil(r.OrderIDs))
	stops, _ := json.Marshal(nonNilStops(r.Stops))
	f := map[string]any{
		model.FieldRouteName:         r.RouteName,
		model.FieldDriver:            string(r.Driver),
		model.FieldDeliveryDate:      r.DeliveryDate,
		model.FieldRouteStatus:       enumValue(routeStatusValues.Native, string(r.Status)),
		model.FieldOrderIDs:          string(ids),
		model.FieldStops:             string(stops),
		model.FieldStopCount:         r.StopCount,
		model.FieldEstimatedDistance: r.EstimatedDistance,
		model.FieldEstimatedTime:     r.EstimatedTime,
	}
	if r.Notes != "" {
		f[model.FieldNotes] = r.Notes
	}
	return routeColumns.ToNative(f)
}

func encodeRoutePatch(p model.RoutePatch) map[string]any {
	f := map[string]any{}
	if p.Status != nil {
		f[model.FieldRouteStatus] = enumValue(routeStatusValues.Native, string(*p.Status))
	}
	if p.Notes != nil {
		f[model.FieldNotes] = *p.Notes
	}
	if p.Stops != nil {
		b, _ := json.Marshal(nonNilStops(*p.Stops))
		f[model.FieldStops] = string(b)
	}
	if p.OrderIDs != nil {
		b, _ := json.Marshal(nonNil(*p.OrderIDs))
		f[model.FieldOrderIDs] = string(b)
	}
	if p.StopCount != nil {
		f[model.FieldStopCount] = *p.StopCount
	}
	return routeColumns.ToNative(f)
}

// enumValue translates v, passing unknown values through unchanged.
func enumValue(lookup func(string) (string, bool), v string) string {
	if out, ok := lookup(v); ok {
		return out
	}
	return v
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		// linked or multi-select values
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, text(p))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}

func number(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(t))
		return n
	}
	return 0
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilStops(s []model.RouteStop) []model.RouteStop {
	if s == nil {
		return []model.RouteStop{}
	}
	return s
}
