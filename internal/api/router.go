package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/unrolled/secure"

	"routedesk/internal/metrics"
)

// Router mounts every endpoint. Streaming endpoints sit outside the request
// timeout.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)
	r.Use(s.secureHeaders())
	if s.Opts.RateLimitPerMin > 0 {
		r.Use(httprate.Limit(s.Opts.RateLimitPerMin, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeProblem(w, http.StatusTooManyRequests, "Too many requests", "", r.URL.Path)
			}),
		))
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "", r.URL.Path)
	})

	r.Get("/healthz", s.HealthHandler)
	r.Get("/readyz", s.ReadyHandler)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/docs", s.DocsHandler)

	r.Route("/v1", func(v chi.Router) {
		v.Group(func(g chi.Router) {
			g.Use(middleware.Timeout(s.Opts.RequestTimeout))
			g.Get("/debug", s.DebugJSON)
			g.Get("/openapi.yaml", s.OpenAPIHandler)
			g.Get("/openapi.json", s.OpenAPIJSONHandler)

			g.Get("/orders", s.ListOrdersHandler)
			g.Patch("/orders/{id}", s.PatchOrderHandler)
			g.Get("/orders/stats", s.OrderStatsHandler)
			g.Get("/orders/stale", s.StaleOrdersHandler)
			g.Get("/orders/zones", s.ZonesHandler)

			g.Post("/plan/optimize", s.OptimizeHandler)
			g.Post("/plan/build", s.BuildHandler)
			g.Post("/plan/recompute", s.RecomputeHandler)
			g.Get("/recommendations", s.RecommendationsHandler)

			g.Get("/routes", s.ListRoutesHandler)
			g.Post("/routes", s.ApproveRouteHandler)
			g.Get("/routes/{id}", s.GetRouteHandler)
			g.Patch("/routes/{id}/status", s.RouteStatusHandler)
			g.Post("/routes/{id}/stops/{stopId}/return", s.ReturnStopHandler)
			g.Get("/routes/{id}/export.csv", s.RouteCSVHandler)
			g.Get("/routes/{id}/navlink", s.RouteNavlinkHandler)

			g.Post("/export/csv", s.ExportCSVHandler)
			g.Post("/navlink", s.NavlinkHandler)
		})
		v.Get("/routes/{id}/events/stream", s.RouteEventsHandler)
		v.Get("/ws", s.EventsWSHandler)
	})
	return r
}

// observe writes one access log line and the HTTP metrics per request,
// labelled by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		elapsed := time.Since(start)
		code := strconv.Itoa(status)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, code).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, code).Observe(elapsed.Seconds())

		evt := log.Info()
		if status >= 500 {
			evt = log.Error()
		}
		evt.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", elapsed).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func (s *Server) secureHeaders() func(http.Handler) http.Handler {
	return secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           s.Opts.Production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !s.Opts.Production,
	}).Handler
}
