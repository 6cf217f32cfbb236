package api

import (
	"net/http"
	"strconv"

	"routedesk/internal/opt"
	"routedesk/internal/recommend"
)

// planView adds the time estimate to a computed route.
type planView struct {
	opt.OptimizedRoute
	EstimatedTime int `json:"estimatedTime"`
}

func viewOf(p opt.OptimizedRoute) planView {
	return planView{OptimizedRoute: p, EstimatedTime: opt.EstimateMinutes(float64(p.TotalDistance), len(p.Orders))}
}

// OptimizeHandler handles POST /v1/plan/optimize over the whole snapshot.
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	var cfg opt.RouteConfig
	if !decode(w, r, &cfg) {
		return
	}
	orders, err := s.orders(r)
	if err != nil {
		writeError(w, r, "List orders failed", err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s.Planner.Optimize(orders, cfg)))
}

// BuildHandler handles POST /v1/plan/build: depot-anchored sequence of the
// chosen orders.
func (s *Server) BuildHandler(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, viewOf(s.Planner.Build(orders)))
}

// RecomputeHandler handles POST /v1/plan/recompute for a hand-ordered list.
func (s *Server) RecomputeHandler(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, viewOf(s.Planner.Recompute(orders)))
}

// RecommendationsHandler handles GET /v1/recommendations?scope=&minCluster=&top=
func (s *Server) RecommendationsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	statuses := recommend.RouteStatuses
	switch q.Get("scope") {
	case "", "routes":
	case "coordination":
		statuses = recommend.CoordinationStatuses
	default:
		writeProblem(w, http.StatusBadRequest, "Invalid scope", "scope must be routes or coordination", r.URL.Path)
		return
	}
	var opts recommend.Options
	for key, dst := range map[string]*int{"minCluster": &opts.MinClusterSize, "top": &opts.TopN} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeProblem(w, http.StatusBadRequest, "Invalid "+key, "must be a positive integer", r.URL.Path)
			return
		}
		*dst = n
	}
	orders, err := s.orders(r)
	if err != nil {
		writeError(w, r, "List orders failed", err)
		return
	}
	clusters := recommend.Recommend(s.Scorer, orders, statuses, opts)
	if clusters == nil {
		clusters = []recommend.Cluster{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"clusters": clusters})
}
