package opt

import (
	"routedesk/internal/geo"
	"routedesk/internal/model"
)

// Stop is an order with resolved coordinates and its priority score.
type Stop struct {
	Order  model.Order
	Coords geo.Coordinates
	Score  float64
}

// SeedPolicy chooses the first stop of a greedy sequence.
type SeedPolicy int

const (
	// SeedHighestScore starts at the best-scored stop; the first leg is free.
	SeedHighestScore SeedPolicy = iota
	// SeedDepot starts at the depot; the depot leg counts toward distance.
	SeedDepot
)

func (p SeedPolicy) String() string {
	if p == SeedDepot {
		return "depot"
	}
	return "highest-score"
}

// Plan parameterises Sequence.
type Plan struct {
	Seed  SeedPolicy
	Depot geo.Coordinates
	// Cap bounds the number of stops; zero means unbounded.
	Cap int
}

// Sequenced is the output of a greedy run.
type Sequenced struct {
	Stops      []Stop
	DistanceKm float64
}

// Sequence orders stops by greedy nearest neighbour. Ties on distance go to
// the stop met first in pool order; the pool is only ever shrunk by removal,
// so identical input yields an identical sequence.
func Sequence(pool []Stop, p Plan) Sequenced {
	remaining := append([]Stop(nil), pool...)
	limit := len(remaining)
	if p.Cap > 0 && p.Cap < limit {
		limit = p.Cap
	}
	out := Sequenced{Stops: make([]Stop, 0, limit)}
	if limit == 0 {
		return out
	}

	var cur geo.Coordinates
	switch p.Seed {
	case SeedDepot:
		cur = p.Depot
	default:
		best := 0
		for i := 1; i < len(remaining); i++ {
			if remaining[i].Score > remaining[best].Score {
				best = i
			}
		}
		out.Stops = append(out.Stops, remaining[best])
		cur = remaining[best].Coords
		remaining = removeAt(remaining, best)
	}

	for len(out.Stops) < limit && len(remaining) > 0 {
		next, nextDist := 0, geo.Distance(cur, remaining[0].Coords)
		for i := 1; i < len(remaining); i++ {
			if d := geo.Distance(cur, remaining[i].Coords); d < nextDist {
				next, nextDist = i, d
			}
		}
		out.Stops = append(out.Stops, remaining[next])
		out.DistanceKm += nextDist
		cur = remaining[next].Coords
		remaining = removeAt(remaining, next)
	}
	return out
}

func removeAt(s []Stop, i int) []Stop {
	return append(s[:i], s[i+1:]...)
}

// PathKm is the length of the open path start -> stops[0] -> ... -> stops[n-1].
func PathKm(start geo.Coordinates, stops []Stop) float64 {
	total := 0.0
	cur := start
	for _, s := range stops {
		total += geo.Distance(cur, s.Coords)
		cur = s.Coords
	}
	return total
}
