// Package routing persists approved routes and applies the edits allowed on
// them afterwards.
package routing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"routedesk/internal/events"
	"routedesk/internal/model"
	"routedesk/internal/opt"
	"routedesk/internal/store"
)

// ApproveRequest is a finalized, user-ordered route.
type ApproveRequest struct {
	Orders []model.Order
	Driver model.Driver
	// DeliveryDate is YYYY-MM-DD; empty means tomorrow.
	DeliveryDate  string
	TotalDistance int
	// EstimatedTime in minutes; zero means derive it from distance and stops.
	EstimatedTime int
	Notes         string
}

// Service approves routes and applies route edits against a store,
// publishing an event after each successful change.
type Service struct {
	Store  store.Store
	Events events.Broker
	Now    func() time.Time
	Loc    *time.Location
}

func (s *Service) now() time.Time {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	loc := s.Loc
	if loc == nil {
		loc = time.Local
	}
	return now().In(loc)
}

// Tomorrow returns the default delivery date.
func (s *Service) Tomorrow() string {
	return s.now().AddDate(0, 0, 1).Format(time.DateOnly)
}

// RouteName renders the display name for a route, e.g. "מסלול 5.3.2024 - רודי דויד".
func RouteName(deliveryDate time.Time, driver model.Driver) string {
	return fmt.Sprintf("מסלול %d.%d.%d - %s", deliveryDate.Day(), int(deliveryDate.Month()), deliveryDate.Year(), driver)
}

// BuildRoute assembles the record for an approval without persisting it.
func (s *Service) BuildRoute(req ApproveRequest) (model.ApprovedRoute, error) {
	if !req.Driver.Valid() {
		return model.ApprovedRoute{}, fmt.Errorf("%w: %q", ErrUnknownDriver, req.Driver)
	}
	if len(req.Orders) == 0 {
		return model.ApprovedRoute{}, ErrEmptyRoute
	}
	date := strings.TrimSpace(req.DeliveryDate)
	if date == "" {
		date = s.Tomorrow()
	}
	day, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return model.ApprovedRoute{}, fmt.Errorf("%w: %q", ErrBadDeliveryDate, date)
	}

	seen := make(map[string]bool, len(req.Orders))
	stops := make([]model.RouteStop, len(req.Orders))
	ids := make([]string, len(req.Orders))
	for i, o := range req.Orders {
		if seen[o.ID] {
			return model.ApprovedRoute{}, fmt.Errorf("%w: %s", ErrDuplicateOrder, o.ID)
		}
		seen[o.ID] = true
		stops[i] = model.StopFromOrder(o, i+1)
		ids[i] = o.ID
	}
	minutes := req.EstimatedTime
	if minutes <= 0 {
		minutes = opt.EstimateMinutes(float64(req.TotalDistance), len(stops))
	}
	return model.ApprovedRoute{
		RouteName:         RouteName(day, req.Driver),
		Driver:            req.Driver,
		DeliveryDate:      date,
		Status:            model.RouteApproved,
		OrderIDs:          ids,
		Stops:             stops,
		StopCount:         len(stops),
		EstimatedDistance: req.TotalDistance,
		EstimatedTime:     minutes,
		Notes:             req.Notes,
	}, nil
}

// ApproveRoute persists the route and then marks every order scheduled. If
// the route write fails nothing has changed and a PersistenceError is
// returned. If the order batch fails partway the route exists and some orders
// may already be scheduled; that is reported as an InconsistencyError
// wrapping the store's PartialBatchError.
func (s *Service) ApproveRoute(ctx context.Context, req ApproveRequest) (model.ApprovedRoute, error) {
	r, err := s.BuildRoute(req)
	if err != nil {
		return model.ApprovedRoute{}, err
	}
	created, err := s.Store.CreateRoute(ctx, r)
	if err != nil {
		return model.ApprovedRoute{}, &PersistenceError{Op: "create route", Err: err}
	}

	updates := make([]model.OrderUpdate, len(created.OrderIDs))
	for i, id := range created.OrderIDs {
		updates[i] = model.OrderUpdate{ID: id, Patch: model.StatusPatch(model.OrderScheduled)}
	}
	if _, err := s.Store.BatchUpdateOrders(ctx, updates); err != nil {
		log.Error().Err(err).Str("route", created.ID).Msg("route saved but order statuses were not all updated")
		return created, &InconsistencyError{
			Op:      "approve route",
			Applied: []string{"create route"},
			Failed:  "schedule orders",
			Err:     err,
		}
	}

	s.publish(created.ID, events.RouteApproved, map[string]any{
		"routeName": created.RouteName,
		"driver":    created.Driver,
		"stopCount": created.StopCount,
	})
	return created, nil
}

// RemoveStop returns r without stopID, with sequences renumbered 1..N and
// orderIds and stopCount kept in step.
func RemoveStop(r model.ApprovedRoute, stopID string) (model.ApprovedRoute, error) {
	kept := make([]model.RouteStop, 0, len(r.Stops))
	found := false
	for _, st := range r.Stops {
		if st.ID == stopID {
			found = true
			continue
		}
		st.Sequence = len(kept) + 1
		kept = append(kept, st)
	}
	if !found {
		return r, fmt.Errorf("%w: %s", ErrStopNotFound, stopID)
	}
	return model.RoutePatch{}.WithStops(kept).Apply(r), nil
}

// ReturnStopToQueue puts one order back to waiting and drops its stop from
// the route. The two writes are not atomic; if either fails the caller gets
// one InconsistencyError naming what was applied.
func (s *Service) ReturnStopToQueue(ctx context.Context, routeID, stopID string) (model.ApprovedRoute, error) {
	r, err := s.Store.GetRoute(ctx, routeID)
	if err != nil {
		return model.ApprovedRoute{}, err
	}
	if r.Status.IsTerminal() {
		return r, ErrRouteClosed
	}
	shrunk, err := RemoveStop(r, stopID)
	if err != nil {
		return r, err
	}

	if _, err := s.Store.UpdateOrder(ctx, stopID, model.StatusPatch(model.OrderWaiting)); err != nil {
		return r, &InconsistencyError{Op: "return stop", Failed: "revert order status", Err: err}
	}
	updated, err := s.Store.UpdateRoute(ctx, routeID, model.RoutePatch{}.WithStops(shrunk.Stops))
	if err != nil {
		log.Error().Err(err).Str("route", routeID).Str("stop", stopID).Msg("order returned to queue but route was not updated")
		return r, &InconsistencyError{
			Op:      "return stop",
			Applied: []string{"revert order status"},
			Failed:  "update route",
			Err:     err,
		}
	}

	s.publish(routeID, events.RouteStopReturned, map[string]any{
		"stopId":    stopID,
		"stopCount": updated.StopCount,
	})
	return updated, nil
}

// TransitionStatus moves a route along approved -> in-progress -> completed,
// or approved -> cancelled.
func (s *Service) TransitionStatus(ctx context.Context, routeID string, next model.RouteStatus) (model.ApprovedRoute, error) {
	r, err := s.Store.GetRoute(ctx, routeID)
	if err != nil {
		return model.ApprovedRoute{}, err
	}
	if !r.Status.CanTransitionTo(next) {
		return r, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, next)
	}
	updated, err := s.Store.UpdateRoute(ctx, routeID, model.RoutePatch{Status: &next})
	if err != nil {
		return r, &PersistenceError{Op: "update route status", Err: err}
	}
	s.publish(routeID, events.RouteStatusChanged, map[string]any{
		"from": r.Status,
		"to":   updated.Status,
	})
	return updated, nil
}

func (s *Service) publish(routeID, typ string, data map[string]any) {
	if s.Events == nil {
		return
	}
	s.Events.Publish(routeID, events.Event{Type: typ, RouteID: routeID, At: s.now().UTC(), Data: data})
}
