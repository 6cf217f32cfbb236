// Package opt builds single-vehicle delivery sequences from order snapshots.
package opt

import (
	"math"
	"sort"

	"routedesk/internal/geo"
	"routedesk/internal/model"
	"routedesk/internal/urgency"
)

// Resolver turns a city name into coordinates.
type Resolver interface {
	Resolve(city string) (geo.Coordinates, bool)
}

// RouteConfig is the wizard input for Optimize.
type RouteConfig struct {
	TargetCount     int    `json:"targetCount" validate:"required,gt=0,lte=200"`
	StartingAddress string `json:"startingAddress,omitempty" validate:"max=200"`
}

// OptimizedRoute is a computed, unsaved route.
type OptimizedRoute struct {
	Orders        []model.Order `json:"orders"`
	TotalDistance int           `json:"totalDistance"`
	HasGeocoding  bool          `json:"hasGeocoding"`
	// Unmapped lists considered orders whose city could not be resolved.
	Unmapped []model.Order `json:"unmapped"`
}

// Plan run kinds reported to the observer.
const (
	KindOptimize  = "optimize"
	KindBuild     = "build"
	KindRecompute = "recompute"
)

// Planner holds the collaborators shared by every route computation. It keeps
// no state between calls.
type Planner struct {
	Geo    Resolver
	Scorer urgency.Scorer
	Depot  geo.Coordinates
	// TwoOptIterations enables a 2-opt pass on depot-anchored builds.
	TwoOptIterations int
	// Observe, when set, is told the kind and outcome of every run.
	Observe func(kind, outcome string)
}

func (p Planner) report(kind, outcome string) {
	if p.Observe != nil {
		p.Observe(kind, outcome)
	}
}

// Eligible reports whether an order can be planned: waiting for coordination
// with both address and city filled in.
func Eligible(o model.Order) bool {
	return o.OrderStatus == model.OrderWaiting && o.Deliverable()
}

// Optimize picks up to cfg.TargetCount eligible orders and sequences them.
//
// Eligible orders are ranked by urgency score, the top 2*TargetCount form the
// candidate pool, and the geocoded part of the pool is sequenced greedily from
// the highest-scored candidate. With fewer than two geocoded candidates the
// top TargetCount by score are returned unsequenced.
func (p Planner) Optimize(orders []model.Order, cfg RouteConfig) OptimizedRoute {
	// TODO: cfg.StartingAddress is accepted but not used; wire it in as the
	// seed once it is decided whether it should anchor the first leg.
	empty := OptimizedRoute{Orders: []model.Order{}, Unmapped: []model.Order{}}
	if cfg.TargetCount <= 0 {
		p.report(KindOptimize, "empty")
		return empty
	}

	var ranked []Stop
	for _, o := range orders {
		if Eligible(o) {
			ranked = append(ranked, Stop{Order: o, Score: p.Scorer.OrderScore(o)})
		}
	}
	if len(ranked) == 0 {
		p.report(KindOptimize, "empty")
		return empty
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	poolSize := len(ranked)
	if cfg.TargetCount <= poolSize/2 {
		poolSize = 2 * cfg.TargetCount
	}
	pool := ranked[:poolSize]
	mapped, unmapped := p.geocode(pool)

	if len(mapped) < 2 {
		top := pool[:min(cfg.TargetCount, len(pool))]
		out := OptimizedRoute{Orders: ordersOf(top), Unmapped: unmapped}
		p.report(KindOptimize, "fallback")
		return out
	}

	seq := Sequence(mapped, Plan{Seed: SeedHighestScore, Cap: cfg.TargetCount})
	p.report(KindOptimize, "ok")
	return OptimizedRoute{
		Orders:        ordersOf(seq.Stops),
		TotalDistance: roundKm(seq.DistanceKm),
		HasGeocoding:  true,
		Unmapped:      unmapped,
	}
}

// Build sequences every given order from the depot with no cap. Orders whose
// city cannot be resolved are returned in Unmapped, in input order.
func (p Planner) Build(orders []model.Order) OptimizedRoute {
	mapped, unmapped := p.geocode(toStops(orders))
	if len(mapped) == 0 {
		p.report(KindBuild, "empty")
		return OptimizedRoute{Orders: []model.Order{}, Unmapped: unmapped}
	}
	seq := Sequence(mapped, Plan{Seed: SeedDepot, Depot: p.Depot})
	if p.TwoOptIterations > 0 {
		seq.Stops = ImproveTwoOpt(p.Depot, seq.Stops, p.TwoOptIterations)
		seq.DistanceKm = PathKm(p.Depot, seq.Stops)
	}
	p.report(KindBuild, "ok")
	return OptimizedRoute{
		Orders:        ordersOf(seq.Stops),
		TotalDistance: roundKm(seq.DistanceKm),
		HasGeocoding:  true,
		Unmapped:      unmapped,
	}
}

// Recompute measures a caller-ordered sequence: depot to the first geocoded
// stop, then between consecutive geocoded stops. The order is kept as given.
func (p Planner) Recompute(sequence []model.Order) OptimizedRoute {
	mapped, unmapped := p.geocode(toStops(sequence))
	p.report(KindRecompute, "ok")
	return OptimizedRoute{
		Orders:        append([]model.Order{}, sequence...),
		TotalDistance: roundKm(PathKm(p.Depot, mapped)),
		HasGeocoding:  len(mapped) > 0,
		Unmapped:      unmapped,
	}
}

// EstimateMinutes is the drive-plus-service estimate: 1.5 minutes per km and
// 10 minutes per stop.
func EstimateMinutes(km float64, stops int) int {
	return int(math.Round(km*1.5 + float64(stops)*10))
}

func (p Planner) geocode(stops []Stop) (mapped []Stop, unmapped []model.Order) {
	unmapped = []model.Order{}
	for _, s := range stops {
		if p.Geo == nil {
			unmapped = append(unmapped, s.Order)
			continue
		}
		c, ok := p.Geo.Resolve(s.Order.City)
		if !ok {
			unmapped = append(unmapped, s.Order)
			continue
		}
		s.Coords = c
		mapped = append(mapped, s)
	}
	return mapped, unmapped
}

func toStops(orders []model.Order) []Stop {
	out := make([]Stop, len(orders))
	for i, o := range orders {
		out[i] = Stop{Order: o}
	}
	return out
}

func ordersOf(stops []Stop) []model.Order {
	out := make([]model.Order, len(stops))
	for i, s := range stops {
		out[i] = s.Order
	}
	return out
}

func roundKm(km float64) int {
	return int(math.Round(km))
}
