package api

import (
	"time"

	"routedesk/internal/events"
	"routedesk/internal/geo"
	"routedesk/internal/opt"
	"routedesk/internal/routing"
	"routedesk/internal/snapshot"
	"routedesk/internal/store"
	"routedesk/internal/urgency"
)

// Options are the HTTP-facing settings taken from config.
type Options struct {
	Env             string
	Backend         string
	DepotLabel      string
	RequestTimeout  time.Duration
	RateLimitPerMin int
	Production      bool
}

// Server wires the dashboard core behind HTTP.
type Server struct {
	Store   store.Store
	Orders  *snapshot.Cache
	Planner opt.Planner
	Routes  *routing.Service
	Geo     *geo.Gazetteer
	Scorer  urgency.Scorer
	Broker  events.Broker
	Opts    Options
}

// NewServer builds a Server over st. The snapshot loads from st and route
// mutations publish to broker.
func NewServer(st store.Store, g *geo.Gazetteer, broker events.Broker, planner opt.Planner, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	return &Server{
		Store:   st,
		Orders:  snapshot.New(st.ListOrders),
		Planner: planner,
		Routes: &routing.Service{
			Store:  st,
			Events: broker,
			Now:    planner.Scorer.Now,
			Loc:    planner.Scorer.Loc,
		},
		Geo:    g,
		Scorer: planner.Scorer,
		Broker: broker,
		Opts:   opts,
	}
}
