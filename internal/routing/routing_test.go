package routing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routedesk/internal/events"
	"routedesk/internal/model"
	"routedesk/internal/store"
)

// failStore wraps Memory and fails selected calls.
type failStore struct {
	*store.Memory
	failCreate      bool
	failUpdateOrder bool
	failUpdateRoute bool
}

var errBoom = errors.New("boom")

func (f *failStore) CreateRoute(ctx context.Context, r model.ApprovedRoute) (model.ApprovedRoute, error) {
	if f.failCreate {
		return model.ApprovedRoute{}, errBoom
	}
	return f.Memory.CreateRoute(ctx, r)
}

func (f *failStore) UpdateOrder(ctx context.Context, id string, p model.OrderPatch) (model.Order, error) {
	if f.failUpdateOrder {
		return model.Order{}, errBoom
	}
	return f.Memory.UpdateOrder(ctx, id, p)
}

func (f *failStore) UpdateRoute(ctx context.Context, id string, p model.RoutePatch) (model.ApprovedRoute, error) {
	if f.failUpdateRoute {
		return model.ApprovedRoute{}, errBoom
	}
	return f.Memory.UpdateRoute(ctx, id, p)
}

func fixedNow() time.Time { return time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC) }

func newService(s store.Store) (*Service, *events.Memory) {
	b := events.NewMemory()
	return &Service{Store: s, Events: b, Now: fixedNow, Loc: time.UTC}, b
}

func seed(m *store.Memory, n int) []model.Order {
	var orders []model.Order
	for i := 1; i <= n; i++ {
		orders = append(orders, model.Order{
			ID:           fmt.Sprintf("o%d", i),
			CustomerName: fmt.Sprintf("לקוח %d", i),
			Address:      fmt.Sprintf("הרצל %d", i),
			City:         "חיפה",
			OrderStatus:  model.OrderWaiting,
		})
	}
	return m.SeedOrders(orders...)
}

func TestRouteName(t *testing.T) {
	d := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "מסלול 5.3.2024 - רודי דויד", RouteName(d, model.DriverRudi))
}

func TestApproveRoute(t *testing.T) {
	m := store.NewMemory()
	orders := seed(m, 3)
	svc, b := newService(m)
	ch := b.Subscribe(events.AllRoutes)
	defer b.Unsubscribe(events.AllRoutes, ch)

	r, err := svc.ApproveRoute(t.Context(), ApproveRequest{
		Orders:        []model.Order{orders[2], orders[0], orders[1]},
		Driver:        model.DriverExternal,
		TotalDistance: 20,
	})
	require.NoError(t, err)
	require.NoError(t, r.CheckShape())

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "2024-03-05", r.DeliveryDate)
	assert.Equal(t, "מסלול 5.3.2024 - נהג חיצוני מועלם", r.RouteName)
	assert.Equal(t, model.RouteApproved, r.Status)
	assert.Equal(t, []string{"o3", "o1", "o2"}, r.OrderIDs)
	assert.Equal(t, 1, r.Stops[0].Sequence)
	assert.Equal(t, "o3", r.Stops[0].ID)
	assert.Equal(t, 60, r.EstimatedTime) // 20*1.5 + 3*10

	all, err := m.ListOrders(t.Context())
	require.NoError(t, err)
	for _, o := range all {
		assert.Equal(t, model.OrderScheduled, o.OrderStatus, o.ID)
	}

	select {
	case evt := <-ch:
		assert.Equal(t, events.RouteApproved, evt.Type)
		assert.Equal(t, r.ID, evt.RouteID)
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
}

func TestApproveRouteKeepsExplicitDateAndTime(t *testing.T) {
	m := store.NewMemory()
	orders := seed(m, 1)
	svc, _ := newService(m)

	r, err := svc.ApproveRoute(t.Context(), ApproveRequest{
		Orders:        orders,
		Driver:        model.DriverRudi,
		DeliveryDate:  "2024-12-31",
		EstimatedTime: 45,
	})
	require.NoError(t, err)
	assert.Equal(t, "מסלול 31.12.2024 - רודי דויד", r.RouteName)
	assert.Equal(t, 45, r.EstimatedTime)
}

func TestApproveRouteRejectsBadInput(t *testing.T) {
	m := store.NewMemory()
	orders := seed(m, 2)
	svc, _ := newService(m)

	_, err := svc.ApproveRoute(t.Context(), ApproveRequest{Orders: orders, Driver: "someone"})
	assert.ErrorIs(t, err, ErrUnknownDriver)

	_, err = svc.ApproveRoute(t.Context(), ApproveRequest{Driver: model.DriverRudi})
	assert.ErrorIs(t, err, ErrEmptyRoute)

	_, err = svc.ApproveRoute(t.Context(), ApproveRequest{Orders: []model.Order{orders[0], orders[0]}, Driver: model.DriverRudi})
	assert.ErrorIs(t, err, ErrDuplicateOrder)

	_, err = svc.ApproveRoute(t.Context(), ApproveRequest{Orders: orders, Driver: model.DriverRudi, DeliveryDate: "5.3.2024"})
	assert.ErrorIs(t, err, ErrBadDeliveryDate)

	routes, _ := m.ListRoutes(t.Context())
	assert.Empty(t, routes)
}

func TestApproveRouteCreateFailureChangesNothing(t *testing.T) {
	m := store.NewMemory()
	orders := seed(m, 2)
	svc, _ := newService(&failStore{Memory: m, failCreate: true})

	_, err := svc.ApproveRoute(t.Context(), ApproveRequest{Orders: orders, Driver: model.DriverRudi})
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, errBoom)

	o, _ := m.GetOrder(t.Context(), "o1")
	assert.Equal(t, model.OrderWaiting, o.OrderStatus)
}

func TestApproveRoutePartialScheduleIsInconsistency(t *testing.T) {
	m := store.NewMemory()
	orders := seed(m, 12)
	// o13 is not in the store, so the second chunk fails as a whole.
	missing := model.Order{ID: "o13", CustomerName: "x", City: "חיפה"}
	svc, _ := newService(m)

	r, err := svc.ApproveRoute(t.Context(), ApproveRequest{Orders: append(orders, missing), Driver: model.DriverRudi})
	var ie *InconsistencyError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, []string{"create route"}, ie.Applied)
	var pbe *store.PartialBatchError
	require.ErrorAs(t, err, &pbe)
	assert.Len(t, pbe.Committed, 10)
	assert.NotEmpty(t, r.ID)

	o, _ := m.GetOrder(t.Context(), "o1")
	assert.Equal(t, model.OrderScheduled, o.OrderStatus)
	o, _ = m.GetOrder(t.Context(), "o11")
	assert.Equal(t, model.OrderWaiting, o.OrderStatus)
}

func TestRemoveStopRenumbers(t *testing.T) {
	r := model.RoutePatch{}.WithStops([]model.RouteStop{
		{ID: "a", Sequence: 1}, {ID: "b", Sequence: 2}, {ID: "c", Sequence: 3},
	}).Apply(model.ApprovedRoute{ID: "r"})

	out, err := RemoveStop(r, "b")
	require.NoError(t, err)
	require.NoError(t, out.CheckShape())
	assert.Equal(t, []string{"a", "c"}, out.OrderIDs)
	assert.Equal(t, 2, out.Stops[1].Sequence)
	assert.Equal(t, 2, out.StopCount)

	_, err = RemoveStop(r, "zzz")
	assert.ErrorIs(t, err, ErrStopNotFound)
	assert.Len(t, r.Stops, 3)
}

func TestRemoveStopDownToEmpty(t *testing.T) {
	r := model.RoutePatch{}.WithStops([]model.RouteStop{{ID: "a", Sequence: 1}}).Apply(model.ApprovedRoute{ID: "r"})

	out, err := RemoveStop(r, "a")
	require.NoError(t, err)
	require.NoError(t, out.CheckShape())
	assert.Empty(t, out.Stops)
	assert.Empty(t, out.OrderIDs)
	assert.Zero(t, out.StopCount)
}

func TestReturnLastStopToQueue(t *testing.T) {
	m := store.NewMemory()
	svc, _ := newService(m)
	r := approved(t, m, svc, 1)

	out, err := svc.ReturnStopToQueue(t.Context(), r.ID, "o1")
	require.NoError(t, err)
	require.NoError(t, out.CheckShape())
	assert.Zero(t, out.StopCount)

	stored, err := m.GetRoute(t.Context(), r.ID)
	require.NoError(t, err)
	require.NoError(t, stored.CheckShape())
	assert.Empty(t, stored.Stops)

	o, _ := m.GetOrder(t.Context(), "o1")
	assert.Equal(t, model.OrderWaiting, o.OrderStatus)
}

func approved(t *testing.T, m *store.Memory, svc *Service, n int) model.ApprovedRoute {
	t.Helper()
	r, err := svc.ApproveRoute(t.Context(), ApproveRequest{Orders: seed(m, n), Driver: model.DriverRudi})
	require.NoError(t, err)
	return r
}

func TestReturnStopToQueue(t *testing.T) {
	m := store.NewMemory()
	svc, _ := newService(m)
	r := approved(t, m, svc, 3)

	out, err := svc.ReturnStopToQueue(t.Context(), r.ID, "o2")
	require.NoError(t, err)
	require.NoError(t, out.CheckShape())
	assert.Equal(t, []string{"o1", "o3"}, out.OrderIDs)

	o, _ := m.GetOrder(t.Context(), "o2")
	assert.Equal(t, model.OrderWaiting, o.OrderStatus)

	_, err = svc.ReturnStopToQueue(t.Context(), r.ID, "o2")
	assert.ErrorIs(t, err, ErrStopNotFound)

	_, err = svc.ReturnStopToQueue(t.Context(), "nope", "o1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReturnStopRouteUpdateFailure(t *testing.T) {
	m := store.NewMemory()
	fs := &failStore{Memory: m}
	svc, _ := newService(fs)
	r := approved(t, m, svc, 2)

	fs.failUpdateRoute = true
	_, err := svc.ReturnStopToQueue(t.Context(), r.ID, "o1")
	var ie *InconsistencyError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, []string{"revert order status"}, ie.Applied)
	assert.Equal(t, "update route", ie.Failed)

	// order reverted, route untouched
	o, _ := m.GetOrder(t.Context(), "o1")
	assert.Equal(t, model.OrderWaiting, o.OrderStatus)
	got, _ := m.GetRoute(t.Context(), r.ID)
	assert.Equal(t, 2, got.StopCount)
}

func TestReturnStopOrderUpdateFailure(t *testing.T) {
	m := store.NewMemory()
	fs := &failStore{Memory: m}
	svc, _ := newService(fs)
	r := approved(t, m, svc, 2)

	fs.failUpdateOrder = true
	_, err := svc.ReturnStopToQueue(t.Context(), r.ID, "o1")
	var ie *InconsistencyError
	require.ErrorAs(t, err, &ie)
	assert.Empty(t, ie.Applied)
	got, _ := m.GetRoute(t.Context(), r.ID)
	assert.Equal(t, 2, got.StopCount)
}

func TestTransitionStatus(t *testing.T) {
	m := store.NewMemory()
	svc, b := newService(m)
	r := approved(t, m, svc, 1)
	ch := b.Subscribe(r.ID)
	defer b.Unsubscribe(r.ID, ch)

	_, err := svc.TransitionStatus(t.Context(), r.ID, model.RouteCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	out, err := svc.TransitionStatus(t.Context(), r.ID, model.RouteInProgress)
	require.NoError(t, err)
	assert.Equal(t, model.RouteInProgress, out.Status)
	evt := <-ch
	assert.Equal(t, events.RouteStatusChanged, evt.Type)

	out, err = svc.TransitionStatus(t.Context(), r.ID, model.RouteCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.RouteCompleted, out.Status)

	_, err = svc.ReturnStopToQueue(t.Context(), r.ID, "o1")
	assert.ErrorIs(t, err, ErrRouteClosed)

	_, err = svc.TransitionStatus(t.Context(), r.ID, model.RouteCancelled)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
