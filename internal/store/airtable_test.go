package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routedesk/internal/airtable"
	"routedesk/internal/model"
)

// fakeBase is a tiny stand-in for the hosted record store.
type fakeBase struct {
	mu       sync.Mutex
	tables   map[string]map[string]airtable.Record
	order    map[string][]string
	patches  []int // records per PATCH call
	failCall int   // 1-based PATCH call that answers 500; 0 never
	nextID   int
}

func newFakeBase() *fakeBase {
	return &fakeBase{tables: map[string]map[string]airtable.Record{}, order: map[string][]string{}}
}

func (f *fakeBase) put(table string, r airtable.Record) {
	if f.tables[table] == nil {
		f.tables[table] = map[string]airtable.Record{}
	}
	if _, ok := f.tables[table][r.ID]; !ok {
		f.order[table] = append(f.order[table], r.ID)
	}
	f.tables[table][r.ID] = r
}

func (f *fakeBase) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	table := parts[1]
	type body struct {
		Records []airtable.Record `json:"records"`
		Offset  string            `json:"offset,omitempty"`
	}
	switch {
	case r.Method == http.MethodGet && len(parts) == 3:
		rec, ok := f.tables[table][parts[2]]
		if !ok {
			http.Error(w, `{"error":"NOT_FOUND"}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(rec)
	case r.Method == http.MethodGet:
		// two records per page to exercise the cursor
		ids := f.order[table]
		start := 0
		if off := r.URL.Query().Get("offset"); off != "" {
			fmt.Sscanf(off, "p%d", &start)
		}
		end := min(start+2, len(ids))
		var out body
		for _, id := range ids[start:end] {
			out.Records = append(out.Records, f.tables[table][id])
		}
		if end < len(ids) {
			out.Offset = fmt.Sprintf("p%d", end)
		}
		_ = json.NewEncoder(w).Encode(out)
	case r.Method == http.MethodPatch:
		var in body
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.patches = append(f.patches, len(in.Records))
		if f.failCall == len(f.patches) {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		var out body
		for _, rec := range in.Records {
			cur, ok := f.tables[table][rec.ID]
			if !ok {
				http.Error(w, `{"error":"NOT_FOUND"}`, http.StatusNotFound)
				return
			}
			for k, v := range rec.Fields {
				cur.Fields[k] = v
			}
			f.tables[table][rec.ID] = cur
			out.Records = append(out.Records, cur)
		}
		_ = json.NewEncoder(w).Encode(out)
	case r.Method == http.MethodPost:
		var in body
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.nextID++
		rec := airtable.Record{ID: fmt.Sprintf("rec%d", f.nextID), CreatedTime: "2024-03-20T10:00:00.000Z", Fields: in.Records[0].Fields}
		f.put(table, rec)
		_ = json.NewEncoder(w).Encode(body{Records: []airtable.Record{rec}})
	default:
		http.Error(w, "unexpected", http.StatusMethodNotAllowed)
	}
}

func (f *fakeBase) field(table, id, name string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tables[table][id].Fields[name]
}

func newAirtableStore(t *testing.T, f *fakeBase) *Airtable {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c := airtable.New(airtable.Config{BaseURL: srv.URL, BaseID: "app1", Token: "x", HTTP: srv.Client()})
	s, err := NewAirtable(c, "orders", "routes")
	require.NoError(t, err)
	return s
}

func TestMappingsAreComplete(t *testing.T) {
	assert.NoError(t, ValidateMappings())
}

func TestAirtableListOrdersTranslatesFields(t *testing.T) {
	f := newFakeBase()
	f.put("orders", airtable.Record{ID: "rec1", CreatedTime: "2024-03-01T08:00:00.000Z", Fields: map[string]any{
		"שם הלקוח":    "משה כהן",
		"עיר":         "חיפה",
		"כתובת":       "הרצל 5",
		"סטטוס הזמנה": "איו במלאי",
		"Status":      "In progress",
		"סטטוס לקוח":  "לקוח חדש",
		"עמודה חדשה":  "ignored",
		"מסמכים":      []any{map[string]any{"id": "att1", "url": "https://x/y.pdf", "filename": "y.pdf", "size": 10.0, "type": "application/pdf"}},
	}})
	f.put("orders", airtable.Record{ID: "rec2", Fields: map[string]any{"סטטוס הזמנה": "תואמה אספקה "}})
	f.put("orders", airtable.Record{ID: "rec3", Fields: map[string]any{"סטטוס הזמנה": "תואמה אספקה"}})

	s := newAirtableStore(t, f)
	orders, err := s.ListOrders(t.Context())
	require.NoError(t, err)
	require.Len(t, orders, 3)

	o := orders[0]
	assert.Equal(t, "rec1", o.ID)
	assert.Equal(t, "משה כהן", o.CustomerName)
	assert.Equal(t, "חיפה", o.City)
	assert.Equal(t, model.OrderOutOfStock, o.OrderStatus)
	assert.Equal(t, model.TaskInProgress, o.Status)
	assert.Equal(t, model.CustomerNew, o.CustomerStatus)
	assert.Equal(t, "2024-03-01T08:00:00.000Z", o.Created)
	require.Len(t, o.Documents, 1)
	assert.Equal(t, "y.pdf", o.Documents[0].Filename)

	assert.Equal(t, model.OrderScheduled, orders[1].OrderStatus)
	assert.Equal(t, model.OrderScheduled, orders[2].OrderStatus)
}

func TestAirtableUpdateWritesNativeValues(t *testing.T) {
	f := newFakeBase()
	f.put("orders", airtable.Record{ID: "rec1", Fields: map[string]any{"סטטוס הזמנה": "ממתין לתאום"}})
	s := newAirtableStore(t, f)

	o, err := s.UpdateOrder(t.Context(), "rec1", model.StatusPatch(model.OrderScheduled))
	require.NoError(t, err)
	assert.Equal(t, model.OrderScheduled, o.OrderStatus)
	assert.Equal(t, "תואמה אספקה ", f.field("orders", "rec1", "סטטוס הזמנה"))

	_, err = s.UpdateOrder(t.Context(), "recMissing", model.StatusPatch(model.OrderDelivered))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAirtableBatchChunksSequentially(t *testing.T) {
	f := newFakeBase()
	var updates []model.OrderUpdate
	for i := 0; i < 23; i++ {
		id := fmt.Sprintf("rec%02d", i)
		f.put("orders", airtable.Record{ID: id, Fields: map[string]any{}})
		updates = append(updates, model.OrderUpdate{ID: id, Patch: model.StatusPatch(model.OrderDelivered)})
	}
	s := newAirtableStore(t, f)

	out, err := s.BatchUpdateOrders(t.Context(), updates)
	require.NoError(t, err)
	assert.Len(t, out, 23)
	f.mu.Lock()
	assert.Equal(t, []int{10, 10, 3}, f.patches)
	f.patches = nil
	f.failCall = 2
	f.mu.Unlock()

	out, err = s.BatchUpdateOrders(t.Context(), updates)
	require.Error(t, err)
	var pbe *PartialBatchError
	require.True(t, errors.As(err, &pbe))
	assert.Len(t, pbe.Committed, 10)
	assert.Len(t, pbe.Pending, 13)
	assert.Equal(t, "rec10", pbe.Pending[0])
	assert.Len(t, out, 10)
	f.mu.Lock()
	assert.Equal(t, []int{10, 10}, f.patches)
	f.mu.Unlock()
}

func TestAirtableRoutesRoundTrip(t *testing.T) {
	f := newFakeBase()
	s := newAirtableStore(t, f)

	created, err := s.CreateRoute(t.Context(), model.ApprovedRoute{
		RouteName:         "מסלול 21.3.2024 - רודי דויד",
		Driver:            model.DriverRudi,
		DeliveryDate:      "2024-03-21",
		Status:            model.RouteApproved,
		OrderIDs:          []string{"a", "b"},
		Stops:             []model.RouteStop{{ID: "a", CustomerName: "א", Sequence: 1}, {ID: "b", CustomerName: "ב", Sequence: 2}},
		StopCount:         2,
		EstimatedDistance: 12,
		EstimatedTime:     38,
	})
	require.NoError(t, err)
	assert.Equal(t, "מאושר", f.field("routes", created.ID, "סטטוס מסלול"))
	assert.IsType(t, "", f.field("routes", created.ID, "פרטי עצירות"))
	require.NoError(t, created.CheckShape())
	assert.Equal(t, model.RouteApproved, created.Status)
	assert.False(t, created.Created.IsZero())

	patched, err := s.UpdateRoute(t.Context(), created.ID, model.RoutePatch{}.WithStops([]model.RouteStop{{ID: "b", CustomerName: "ב", Sequence: 1}}))
	require.NoError(t, err)
	require.NoError(t, patched.CheckShape())
	assert.Equal(t, []string{"b"}, patched.OrderIDs)

	f.mu.Lock()
	f.put("routes", airtable.Record{ID: "recBad", Fields: map[string]any{"פרטי עצירות": "{not json", "הזמנות": "[1,"}})
	f.mu.Unlock()
	bad, err := s.GetRoute(t.Context(), "recBad")
	require.NoError(t, err)
	assert.Empty(t, bad.Stops)
	assert.Empty(t, bad.OrderIDs)

	_, err = s.GetRoute(t.Context(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAirtableListRoutesNewestFirst(t *testing.T) {
	f := newFakeBase()
	f.put("routes", airtable.Record{ID: "recOld", CreatedTime: "2024-01-01T08:00:00.000Z", Fields: map[string]any{}})
	f.put("routes", airtable.Record{ID: "recNew", CreatedTime: "2024-03-01T08:00:00.000Z", Fields: map[string]any{}})
	f.put("routes", airtable.Record{ID: "recMid", CreatedTime: "2024-02-01T08:00:00.000Z", Fields: map[string]any{}})
	s := newAirtableStore(t, f)

	routes, err := s.ListRoutes(t.Context())
	require.NoError(t, err)
	got := make([]string, len(routes))
	for i, r := range routes {
		got[i] = r.ID
	}
	assert.Equal(t, []string{"recNew", "recMid", "recOld"}, got)
}
