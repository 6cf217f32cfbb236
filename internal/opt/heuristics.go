package opt

import "routedesk/internal/geo"

// ImproveTwoOpt shortens a depot-anchored open path by reversing segments
// while that lowers total distance. The depot stays first; the last stop may
// move. At most iterations full sweeps are made.
func ImproveTwoOpt(depot geo.Coordinates, stops []Stop, iterations int) []Stop {
	if iterations <= 0 {
		iterations = 1
	}
	best := append([]Stop(nil), stops...)
	if len(best) < 3 {
		return best
	}
	bestDist := PathKm(depot, best)
	n := len(best)
	for it := 0; it < iterations; it++ {
		improved := false
		for i := 0; i < n-1; i++ {
			for k := i + 1; k < n; k++ {
				cand := twoOptSwap(best, i, k)
				d := PathKm(depot, cand)
				if d+1e-6 < bestDist {
					best = cand
					bestDist = d
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return best
}

func twoOptSwap(ord []Stop, i, k int) []Stop {
	out := make([]Stop, len(ord))
	copy(out, ord[:i])
	// reverse i..k
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = ord[j]
		pos++
	}
	copy(out[pos:], ord[k+1:])
	return out
}
