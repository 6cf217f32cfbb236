package api

import (
	"net/http"
	"time"

	"routedesk/internal/buildinfo"
)

// DebugJSON handles GET /v1/debug: build info and non-secret settings.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	loaded := ""
	if t := s.Orders.LoadedAt(); !t.IsZero() {
		loaded = t.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"APP_ENV":            s.Opts.Env,
			"STORE_BACKEND":      s.Opts.Backend,
			"DEPOT":              s.Planner.Depot,
			"DEPOT_LABEL":        s.Opts.DepotLabel,
			"REQUEST_TIMEOUT":    s.Opts.RequestTimeout.String(),
			"RATE_LIMIT_PER_MIN": s.Opts.RateLimitPerMin,
			"TWO_OPT_ITERATIONS": s.Planner.TwoOptIterations,
		},
		"snapshot": map[string]any{"loadedAt": loaded},
		"gazetteer": map[string]any{
			"cities": len(s.Geo.Cities()),
			"zones":  len(s.Geo.Zones()),
		},
	})
}
