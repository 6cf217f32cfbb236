package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"routedesk/internal/model"
	"routedesk/internal/stats"
)

// orders returns the snapshot, loading it on first use or when refresh=1.
func (s *Server) orders(r *http.Request) ([]model.Order, error) {
	if r.URL.Query().Get("refresh") == "1" {
		return s.Orders.Refresh(r.Context())
	}
	return s.Orders.Orders(r.Context())
}

// ListOrdersHandler handles GET /v1/orders
func (s *Server) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders(r)
	if err != nil {
		writeError(w, r, "List orders failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":    orders,
		"columns":  stats.Split(orders),
		"loadedAt": s.Orders.LoadedAt().UTC().Format(time.RFC3339),
	})
}

// PatchOrderHandler handles PATCH /v1/orders/{id}. The snapshot shows the
// edit immediately and reverts it if the store write fails.
func (s *Server) PatchOrderHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req patchOrderRequest
	if !decode(w, r, &req) {
		return
	}
	patch := req.patch()
	if patch.IsEmpty() {
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid request", "no fields to update", r.URL.Path)
		return
	}
	if _, err := s.Orders.Orders(r.Context()); err != nil {
		writeError(w, r, "Load orders failed", err)
		return
	}
	o, err := s.Orders.Mutate(r.Context(), id, patch, s.Store.UpdateOrder)
	if err != nil {
		writeError(w, r, "Update order failed", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// OrderStatsHandler handles GET /v1/orders/stats
func (s *Server) OrderStatsHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders(r)
	if err != nil {
		writeError(w, r, "List orders failed", err)
		return
	}
	writeJSON(w, http.StatusOK, stats.Compute(orders, s.Scorer, s.Geo))
}

// StaleOrdersHandler handles GET /v1/orders/stale, oldest first.
func (s *Server) StaleOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders(r)
	if err != nil {
		writeError(w, r, "List orders failed", err)
		return
	}
	stale := s.Scorer.Stale(orders)
	if stale == nil {
		stale = []model.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": stale, "count": len(stale)})
}

type zoneView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Region      string `json:"region"`
	RegionLabel string `json:"regionLabel"`
	Waiting     int    `json:"waiting"`
}

// ZonesHandler handles GET /v1/orders/zones: every zone with its waiting count.
func (s *Server) ZonesHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders(r)
	if err != nil {
		writeError(w, r, "List orders failed", err)
		return
	}
	sum := stats.Compute(orders, s.Scorer, s.Geo)
	zones := s.Geo.Zones()
	out := make([]zoneView, len(zones))
	for i, z := range zones {
		out[i] = zoneView{
			ID:          z.ID,
			Name:        z.Name,
			Region:      z.Region,
			RegionLabel: s.Geo.RegionLabel(z.Region),
			Waiting:     sum.WaitingByZone[z.ID],
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"zones": out, "unzoned": sum.Unzoned})
}

// lookupOrders resolves ids against the snapshot in the given order. Unknown
// ids are returned separately.
func (s *Server) lookupOrders(r *http.Request, ids []string) ([]model.Order, []string, error) {
	all, err := s.Orders.Orders(r.Context())
	if err != nil {
		return nil, nil, err
	}
	byID := model.IndexOrders(all)
	out := make([]model.Order, 0, len(ids))
	var missing []string
	for _, id := range ids {
		o, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, o)
	}
	return out, missing, nil
}

func writeMissing(w http.ResponseWriter, r *http.Request, missing []string) {
	writeProblemBody(w, Problem{
		Title:    "Unknown orders",
		Status:   http.StatusUnprocessableEntity,
		Detail:   "orders not found in snapshot",
		Instance: r.URL.Path,
		Pending:  missing,
	})
}
