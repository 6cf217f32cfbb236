package api

import (
	"bytes"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"routedesk/internal/export"
	"routedesk/internal/model"
	"routedesk/internal/navlink"
	"routedesk/internal/routing"
)

// ListRoutesHandler handles GET /v1/routes, newest first.
func (s *Server) ListRoutesHandler(w http.ResponseWriter, r *http.Request) {
	routes, err := s.Store.ListRoutes(r.Context())
	if err != nil {
		writeError(w, r, "List routes failed", err)
		return
	}
	if routes == nil {
		routes = []model.ApprovedRoute{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": routes})
}

// GetRouteHandler handles GET /v1/routes/{id}
func (s *Server) GetRouteHandler(w http.ResponseWriter, r *http.Request) {
	rt, err := s.Store.GetRoute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "Get route failed", err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

// ApproveRouteHandler handles POST /v1/routes: persist the route in the
// given order and mark its orders scheduled.
func (s *Server) ApproveRouteHandler(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if !decode(w, r, &req) {
		return
	}
	orders, missing, err := s.lookupOrders(r, req.OrderIDs)
	if err != nil {
		writeError(w, r, "List orders failed", err)
		return
	}
	if len(missing) > 0 {
		writeMissing(w, r, missing)
		return
	}
	rt, err := s.Routes.ApproveRoute(r.Context(), routing.ApproveRequest{
		Orders:        orders,
		Driver:        model.Driver(req.Driver),
		DeliveryDate:  req.DeliveryDate,
		TotalDistance: req.TotalDistance,
		EstimatedTime: req.EstimatedTime,
		Notes:         req.Notes,
	})
	s.refresh(r)
	if err != nil {
		writeError(w, r, "Approve route failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, rt)
}

// RouteStatusHandler handles PATCH /v1/routes/{id}/status
func (s *Server) RouteStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	rt, err := s.Routes.TransitionStatus(r.Context(), chi.URLParam(r, "id"), model.RouteStatus(req.Status))
	if err != nil {
		writeError(w, r, "Status change failed", err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

// ReturnStopHandler handles POST /v1/routes/{id}/stops/{stopId}/return
func (s *Server) ReturnStopHandler(w http.ResponseWriter, r *http.Request) {
	rt, err := s.Routes.ReturnStopToQueue(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "stopId"))
	s.refresh(r)
	if err != nil {
		writeError(w, r, "Return stop failed", err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

// refresh reloads the snapshot after a write touched order statuses.
func (s *Server) refresh(r *http.Request) {
	if _, err := s.Orders.Refresh(r.Context()); err != nil {
		log.Warn().Err(err).Msg("snapshot refresh failed")
	}
}

// RouteCSVHandler handles GET /v1/routes/{id}/export.csv
func (s *Server) RouteCSVHandler(w http.ResponseWriter, r *http.Request) {
	rt, err := s.Store.GetRoute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "Get route failed", err)
		return
	}
	known, err := s.Orders.Orders(r.Context())
	if err != nil {
		writeError(w, r, "List orders failed", err)
		return
	}
	s.writeCSV(w, r, export.RouteOrders(rt, known))
}

// ExportCSVHandler handles POST /v1/export/csv for an unsaved route.
func (s *Server) ExportCSVHandler(w http.ResponseWriter, r *http.Request) {
	var req orderIDsRequest
	if !decode(w, r, &req) {
		return
	}
	orders, missing, err := s.lookupOrders(r, req.OrderIDs)
	if err != nil {
		writeError(w, r, "List orders failed", err)
		return
	}
	if len(missing) > 0 {
		writeMissing(w, r, missing)
		return
	}
	s.writeCSV(w, r, orders)
}

func (s *Server) writeCSV(w http.ResponseWriter, r *http.Request, orders []model.Order) {
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, s.Scorer, orders); err != nil {
		writeError(w, r, "Export failed", err)
		return
	}
	now := time.Now()
	if s.Scorer.Now != nil {
		now = s.Scorer.Now()
	}
	name := export.DefaultFilename(now, "csv")
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// RouteNavlinkHandler handles GET /v1/routes/{id}/navlink?origin=
func (s *Server) RouteNavlinkHandler(w http.ResponseWriter, r *http.Request) {
	rt, err := s.Store.GetRoute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "Get route failed", err)
		return
	}
	s.writeNavlink(w, r, navlink.Places(rt.Stops), r.URL.Query().Get("origin"))
}

// NavlinkHandler handles POST /v1/navlink for an unsaved route.
func (s *Server) NavlinkHandler(w http.ResponseWriter, r *http.Request) {
	var req navlinkRequest
	if !decode(w, r, &req) {
		return
	}
	orders, missing, err := s.lookupOrders(r, req.OrderIDs)
	if err != nil {
		writeError(w, r, "List orders failed", err)
		return
	}
	if len(missing) > 0 {
		writeMissing(w, r, missing)
		return
	}
	s.writeNavlink(w, r, navlink.OrderPlaces(orders), req.Origin)
}

func (s *Server) writeNavlink(w http.ResponseWriter, r *http.Request, places []string, origin string) {
	link := navlink.Directions(places, origin)
	if link.URL == "" {
		writeProblem(w, http.StatusUnprocessableEntity, "No addresses", "no stop has an address or city", r.URL.Path)
		return
	}
	resp := map[string]any{"link": link}
	if link.Truncated {
		resp["warning"] = "route exceeds the navigation link stop limit; later stops were left out"
	}
	writeJSON(w, http.StatusOK, resp)
}
